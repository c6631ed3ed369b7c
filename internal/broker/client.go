package broker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/iliyamo/seat-reservation-broker/internal/protocol"
)

// Client is a connection to a broker Server.  Every envelope received is
// passed to the handler on the client's reader goroutine, in arrival
// order.
type Client struct {
	nc      net.Conn
	enc     *protocol.Encoder
	handler func(protocol.Envelope)
	log     *slog.Logger

	done chan struct{}
	once sync.Once
	mu   sync.Mutex
	err  error
}

// Dial connects to the broker at addr.
func Dial(ctx context.Context, addr string, handler func(protocol.Envelope), logger *slog.Logger) (*Client, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial broker %s: %w", addr, err)
	}
	if handler == nil {
		handler = func(protocol.Envelope) {}
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		nc:      nc,
		enc:     protocol.NewEncoder(nc),
		handler: handler,
		log:     logger.With("component", "broker-client", "addr", addr),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Send writes env to the broker.
func (c *Client) Send(env protocol.Envelope) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	_ = c.nc.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.enc.Encode(env); err != nil {
		c.fail(err)
		return err
	}
	return nil
}

// Close closes the connection.  It is safe to call more than once.
func (c *Client) Close() error {
	c.fail(nil)
	return nil
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err returns the error that ended the connection, if any.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Client) fail(err error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
		_ = c.nc.Close()
	})
}

func (c *Client) readLoop() {
	dec := protocol.NewDecoder(c.nc)
	for {
		env, err := dec.Decode()
		if err != nil {
			if errors.Is(err, protocol.ErrMalformed) {
				c.log.Warn("dropping malformed message", "err", err)
				continue
			}
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				err = nil
			}
			c.fail(err)
			return
		}
		c.handler(env)
	}
}
