package notify

import (
	"sync"

	"github.com/iliyamo/seat-reservation-broker/internal/protocol"
)

// Subscription is a registered observer.  Unsubscribe is idempotent.
type Subscription struct {
	f     *Facade
	topic protocol.Topic
	id    uint64
	once  sync.Once
}

// Topic returns the topic the subscription listens on.
func (s *Subscription) Topic() protocol.Topic { return s.topic }

// Unsubscribe stops delivery to the observer.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() { s.f.unsubscribe(s) })
}

// SubscribeSeatTopic observes seat events of one screening.
func (f *Facade) SubscribeSeatTopic(screeningID uint64, fn Observer) *Subscription {
	return f.subscribe(protocol.SeatTopic(screeningID), fn)
}

// SubscribeChat observes chat events.
func (f *Facade) SubscribeChat(fn Observer) *Subscription {
	return f.subscribe(protocol.ChatTopic, fn)
}

// SubscribeTyping observes typing events.
func (f *Facade) SubscribeTyping(fn Observer) *Subscription {
	return f.subscribe(protocol.TypingTopic, fn)
}

// RequestSeatState asks the broker for a seat_state snapshot, delivered to
// the screening's seat observers.  It does nothing in local-only mode.
func (f *Facade) RequestSeatState(screeningID uint64) {
	f.sendControl(protocol.Control(protocol.KindSeatQuery, protocol.Key(screeningID), f.clock.Now()))
}

func (f *Facade) subscribe(topic protocol.Topic, fn Observer) *Subscription {
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	obs, ok := f.observers[topic]
	if !ok {
		obs = make(map[uint64]Observer)
		f.observers[topic] = obs
	}
	obs[id] = fn
	first := !ok
	f.mu.Unlock()

	if first {
		f.sendControl(subscribeEnvelope(topic, f.clock.Now()))
	}
	return &Subscription{f: f, topic: topic, id: id}
}

func (f *Facade) unsubscribe(s *Subscription) {
	f.mu.Lock()
	obs := f.observers[s.topic]
	delete(obs, s.id)
	last := len(obs) == 0
	if last {
		delete(f.observers, s.topic)
	}
	f.mu.Unlock()

	if last {
		f.sendControl(unsubscribeEnvelope(s.topic, f.clock.Now()))
	}
}
