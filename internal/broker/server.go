package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/iliyamo/seat-reservation-broker/internal/protocol"
)

const (
	// DefaultAddr is the broker's listen address when none is configured.
	DefaultAddr = ":8888"

	writeTimeout = 10 * time.Second
	// outboundQueue bounds the lines buffered for one connection.
	outboundQueue = 256
)

// SeatQuerier answers seat_state requests.
type SeatQuerier interface {
	SeatStateEnvelope(ctx context.Context, screeningID uint64) (protocol.Envelope, error)
}

// Server accepts broadcast clients.  Each connection gets a reader
// goroutine that decodes and dispatches requests and a writer goroutine
// that drains its outbound queue.
type Server struct {
	reg     *Registry
	querier SeatQuerier
	log     *slog.Logger

	mu    sync.Mutex
	conns map[string]*conn

	activeConnections sync.WaitGroup
}

// NewServer returns a server fanning out through reg.  querier may be nil,
// in which case seat subscriptions get no initial snapshot and seat_query
// is answered with an error.
func NewServer(reg *Registry, querier SeatQuerier, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		reg:     reg,
		querier: querier,
		log:     logger.With("component", "broker"),
		conns:   make(map[string]*conn),
	}
}

// ListenAndServe listens on addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then closes every
// connection and waits for their goroutines.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	s.log.Info("broker listening", "addr", ln.Addr().String())

	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.log.Error("accept failed", "err", err)
			continue
		}
		c := newConn(s, nc)
		s.track(c)
		s.activeConnections.Add(2)
		go func() {
			defer s.activeConnections.Done()
			c.writeLoop()
		}()
		go func() {
			defer s.activeConnections.Done()
			c.readLoop(ctx)
		}()
	}

	s.mu.Lock()
	open := make([]*conn, 0, len(s.conns))
	for _, c := range s.conns {
		open = append(open, c)
	}
	s.mu.Unlock()
	for _, c := range open {
		c.Close()
	}
	s.activeConnections.Wait()
	return nil
}

// Connections returns the number of open connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) track(c *conn) {
	s.mu.Lock()
	s.conns[c.id] = c
	s.mu.Unlock()
	s.log.Debug("client connected", "conn", c.id, "remote", c.nc.RemoteAddr().String())
}

// forget deregisters c from every topic.  Holds owned by its user are
// left to expire.
func (s *Server) forget(c *conn) {
	s.reg.RemoveAll(c)
	s.mu.Lock()
	_, ok := s.conns[c.id]
	delete(s.conns, c.id)
	s.mu.Unlock()
	if ok {
		s.log.Debug("client disconnected", "conn", c.id, "user_id", c.userID.Load())
	}
}
