package broker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/seat-reservation-broker/internal/protocol"
)

// conn is one client connection.  It moves through connected, subscribed,
// closing and closed; Close may be called any number of times.
type conn struct {
	id     string
	nc     net.Conn
	srv    *Server
	out    chan []byte
	done   chan struct{}
	once   sync.Once
	userID atomic.Uint64
	log    *slog.Logger
}

func newConn(s *Server, nc net.Conn) *conn {
	id := uuid.NewString()
	return &conn{
		id:   id,
		nc:   nc,
		srv:  s,
		out:  make(chan []byte, outboundQueue),
		done: make(chan struct{}),
		log:  s.log.With("conn", id),
	}
}

func (c *conn) ID() string { return c.id }

// Deliver queues line for the writer without blocking.
func (c *conn) Deliver(line []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.out <- line:
		return nil
	default:
		return ErrBackpressure
	}
}

// Close deregisters the connection and closes the socket.
func (c *conn) Close() error {
	c.once.Do(func() {
		close(c.done)
		c.srv.forget(c)
		_ = c.nc.Close()
	})
	return nil
}

func (c *conn) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case line := <-c.out:
			_ = c.nc.SetWriteDeadline(time.Now().Add(writeTimeout))
			if _, err := c.nc.Write(line); err != nil {
				c.log.Debug("write failed", "err", err)
				c.Close()
				return
			}
		}
	}
}

func (c *conn) readLoop(ctx context.Context) {
	defer c.Close()
	dec := protocol.NewDecoder(c.nc)
	for {
		env, err := dec.Decode()
		if err != nil {
			if errors.Is(err, protocol.ErrMalformed) {
				c.log.Warn("dropping malformed message", "err", err)
				continue
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				c.log.Debug("read failed", "err", err)
			}
			return
		}
		c.dispatch(ctx, env)
	}
}

func (c *conn) dispatch(ctx context.Context, env protocol.Envelope) {
	reg := c.srv.reg
	switch env.Kind {
	case protocol.KindSubscribeSeatTopic:
		topic, _ := env.Topic()
		reg.Subscribe(topic, c)
		c.sendSeatState(ctx, *env.TopicKey)
	case protocol.KindSubscribeChat, protocol.KindSubscribeTyping:
		topic, _ := env.Topic()
		reg.Subscribe(topic, c)
	case protocol.KindUnsubscribeSeatTopic, protocol.KindUnsubscribeChat, protocol.KindUnsubscribeTyping:
		topic, _ := env.Topic()
		reg.Unsubscribe(topic, c)
	case protocol.KindIdentify:
		var p protocol.IdentifyPayload
		if err := env.DecodePayload(&p); err != nil {
			c.reply(protocol.Error("identify: "+err.Error(), nil, time.Now()))
			return
		}
		c.userID.Store(p.UserID)
		c.log.Debug("client identified", "user_id", p.UserID)
	case protocol.KindSeatQuery:
		c.sendSeatState(ctx, *env.TopicKey)
	case protocol.KindSeatEvent, protocol.KindChatEvent, protocol.KindTypingEvent:
		reg.Publish(env)
	case protocol.KindError:
		c.log.Debug("client reported error", "payload", string(env.Payload))
	}
}

// sendSeatState replies to this connection only with the screening's
// current seat map.
func (c *conn) sendSeatState(ctx context.Context, screeningID uint64) {
	if c.srv.querier == nil {
		c.reply(protocol.Error("seat state unavailable", protocol.Key(screeningID), time.Now()))
		return
	}
	env, err := c.srv.querier.SeatStateEnvelope(ctx, screeningID)
	if err != nil {
		c.reply(protocol.Error(err.Error(), protocol.Key(screeningID), time.Now()))
		return
	}
	c.reply(env)
}

func (c *conn) reply(env protocol.Envelope) {
	line, err := protocol.Marshal(env)
	if err != nil {
		c.log.Error("encode reply", "err", err)
		return
	}
	if err := c.Deliver(line); err != nil {
		c.Close()
	}
}
