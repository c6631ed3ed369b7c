// Package broker is the broadcast side of the system: a topic registry
// that fans envelopes out to subscribers, a TCP server speaking the
// newline-delimited JSON protocol, and a client for that server.
package broker

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/iliyamo/seat-reservation-broker/internal/protocol"
)

var (
	// ErrClosed is returned when delivering to a closed subscriber.
	ErrClosed = errors.New("broker: subscriber closed")
	// ErrBackpressure is returned when a subscriber's outbound queue is
	// full.  The registry treats it like any other delivery failure.
	ErrBackpressure = errors.New("broker: subscriber queue full")
)

// Subscriber receives encoded envelope lines.  Deliver must not block;
// an error means the subscriber is unusable and will be removed from
// every topic and closed.
type Subscriber interface {
	ID() string
	Deliver(line []byte) error
	Close() error
}

// Registry maps topics to their subscribers.  It is the single owner of
// membership; a subscriber can be on any number of topics.
type Registry struct {
	mu     sync.RWMutex
	topics map[protocol.Topic]map[string]Subscriber
	log    *slog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		topics: make(map[protocol.Topic]map[string]Subscriber),
		log:    logger.With("component", "registry"),
	}
}

// Subscribe adds sub to topic.  Subscribing twice is a no-op.
func (r *Registry) Subscribe(topic protocol.Topic, sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs, ok := r.topics[topic]
	if !ok {
		subs = make(map[string]Subscriber)
		r.topics[topic] = subs
	}
	subs[sub.ID()] = sub
}

// Unsubscribe removes sub from topic.
func (r *Registry) Unsubscribe(topic protocol.Topic, sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(topic, sub.ID())
}

// RemoveAll removes sub from every topic.
func (r *Registry) RemoveAll(sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for topic := range r.topics {
		r.removeLocked(topic, sub.ID())
	}
}

func (r *Registry) removeLocked(topic protocol.Topic, id string) {
	subs, ok := r.topics[topic]
	if !ok {
		return
	}
	delete(subs, id)
	if len(subs) == 0 {
		delete(r.topics, topic)
	}
}

// Count returns the number of subscribers on topic.
func (r *Registry) Count(topic protocol.Topic) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics[topic])
}

// Publish encodes env once and delivers it to every subscriber of the
// envelope's topic.  Envelopes without a topic are dropped.
func (r *Registry) Publish(env protocol.Envelope) {
	topic, ok := env.Topic()
	if !ok {
		r.log.Warn("dropping envelope without topic", "kind", env.Kind)
		return
	}
	line, err := protocol.Marshal(env)
	if err != nil {
		r.log.Error("encode envelope", "kind", env.Kind, "err", err)
		return
	}
	r.Broadcast(topic, line)
}

// Broadcast delivers an encoded line to every subscriber of topic and
// returns how many accepted it.  A subscriber that fails is removed from
// all topics and closed; the others still receive the line.
func (r *Registry) Broadcast(topic protocol.Topic, line []byte) int {
	r.mu.RLock()
	subs := make([]Subscriber, 0, len(r.topics[topic]))
	for _, s := range r.topics[topic] {
		subs = append(subs, s)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, s := range subs {
		if err := s.Deliver(line); err != nil {
			r.log.Warn("dropping subscriber", "subscriber", s.ID(), "topic", topic.String(), "err", err)
			r.RemoveAll(s)
			_ = s.Close()
			continue
		}
		delivered++
	}
	return delivered
}
