// Package notify is the client-side entry point to the broadcast system.
// A Facade publishes and subscribes through a broker connection when one
// is available and falls back to in-process delivery when it is not, so
// callers never see broker outages.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/iliyamo/seat-reservation-broker/internal/broker"
	"github.com/iliyamo/seat-reservation-broker/internal/protocol"
	"github.com/iliyamo/seat-reservation-broker/internal/repository"
)

// Config controls how a Facade reaches the broker.
type Config struct {
	// BrokerAddr is host:port of the broker.  Empty means local-only.
	BrokerAddr string
	// UserID is announced with an identify message after each connect.
	UserID        uint64
	DialTimeout   time.Duration
	ReconnectMin  time.Duration
	ReconnectMax  time.Duration
	TypingTimeout time.Duration
}

func (c *Config) setDefaults() {
	if c.DialTimeout <= 0 {
		c.DialTimeout = 2 * time.Second
	}
	if c.ReconnectMin <= 0 {
		c.ReconnectMin = time.Second
	}
	if c.ReconnectMax <= 0 {
		c.ReconnectMax = 30 * time.Second
	}
	if c.TypingTimeout <= 0 {
		c.TypingTimeout = 3 * time.Second
	}
}

// Option customizes a Facade.
type Option func(*Facade)

// WithClock replaces the wall clock used for timestamps and timeouts.
func WithClock(c clockwork.Clock) Option { return func(f *Facade) { f.clock = c } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(f *Facade) { f.log = l } }

// WithMessageStore persists chat messages before they are broadcast.
func WithMessageStore(s repository.MessageStore) Option { return func(f *Facade) { f.messages = s } }

// Observer receives envelopes for a topic.
type Observer func(protocol.Envelope)

// Facade routes envelopes between the application and the broker.
type Facade struct {
	cfg      Config
	clock    clockwork.Clock
	log      *slog.Logger
	messages repository.MessageStore

	mu        sync.Mutex
	client    *broker.Client
	observers map[protocol.Topic]map[uint64]Observer
	nextID    uint64

	typingMu sync.Mutex
	typing   map[typingKey]time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New returns a Facade.  Call Start to connect.
func New(cfg Config, opts ...Option) *Facade {
	cfg.setDefaults()
	f := &Facade{
		cfg:       cfg,
		clock:     clockwork.NewRealClock(),
		log:       slog.Default(),
		observers: make(map[protocol.Topic]map[uint64]Observer),
		typing:    make(map[typingKey]time.Time),
	}
	for _, o := range opts {
		o(f)
	}
	f.log = f.log.With("component", "notify")
	return f
}

// Start makes one connection attempt and then keeps the connection alive
// in the background until Close.  A failed first attempt leaves the
// Facade in local-only mode; it never returns an error.
func (f *Facade) Start(ctx context.Context) {
	ctx, f.cancel = context.WithCancel(ctx)
	if f.cfg.BrokerAddr != "" {
		if err := f.connect(ctx); err != nil {
			f.log.Warn("broker unreachable; delivering locally", "addr", f.cfg.BrokerAddr, "err", err)
		}
		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			f.maintain(ctx)
		}()
	}
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.runTypingSweep(ctx)
	}()
}

// Close stops background work and closes the broker connection.
func (f *Facade) Close() {
	if f.cancel != nil {
		f.cancel()
	}
	f.mu.Lock()
	c := f.client
	f.client = nil
	f.mu.Unlock()
	if c != nil {
		c.Close()
	}
	f.wg.Wait()
}

// Connected reports whether envelopes currently go through the broker.
func (f *Facade) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.client != nil
}

// Publish sends env to the broker, or to local observers when the broker
// is unavailable.  It never fails from the caller's point of view.
func (f *Facade) Publish(env protocol.Envelope) {
	f.mu.Lock()
	c := f.client
	f.mu.Unlock()
	if c != nil {
		if err := c.Send(env); err == nil {
			return
		}
		f.degrade(c)
	}
	f.deliverLocal(env)
}

func (f *Facade) deliverLocal(env protocol.Envelope) {
	topic, ok := env.Topic()
	if !ok {
		if env.Kind == protocol.KindError {
			f.log.Debug("broker reported error", "payload", string(env.Payload))
		}
		return
	}
	f.mu.Lock()
	obs := make([]Observer, 0, len(f.observers[topic]))
	for _, o := range f.observers[topic] {
		obs = append(obs, o)
	}
	f.mu.Unlock()
	for _, o := range obs {
		o(env)
	}
}
