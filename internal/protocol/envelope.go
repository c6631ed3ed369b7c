// Package protocol defines the newline-delimited JSON envelope exchanged
// between broadcast clients and the broker.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMalformed marks a line that could not be turned into an Envelope.
	// The stream itself is still usable.
	ErrMalformed = errors.New("malformed envelope")
	// ErrUnknownKind is returned for a kind outside the closed set.
	ErrUnknownKind = errors.New("unknown kind")
	// ErrUnknownEvent is returned for an event kind outside the closed set.
	ErrUnknownEvent = errors.New("unknown event kind")
	// ErrMismatchedEvent is returned when an event kind is sent under the
	// wrong kind, e.g. typing_started inside a seat_event.
	ErrMismatchedEvent = errors.New("event kind does not match kind")
	// ErrMissingTopic is returned when a seat kind carries no topic key.
	ErrMissingTopic = errors.New("missing topic key")
)

// Envelope is the unit of the wire protocol.
type Envelope struct {
	Kind      Kind            `json:"kind"`
	Event     EventKind       `json:"eventKind,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	TopicKey  *uint64         `json:"topicKey,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// New builds an envelope with payload p marshalled to JSON.
func New(kind Kind, event EventKind, topicKey *uint64, p any, now time.Time) (Envelope, error) {
	env := Envelope{Kind: kind, Event: event, TopicKey: topicKey, Timestamp: now.UnixMilli()}
	if p != nil {
		raw, err := json.Marshal(p)
		if err != nil {
			return Envelope{}, fmt.Errorf("marshal payload: %w", err)
		}
		env.Payload = raw
	}
	return env, nil
}

// Key returns a pointer to a copy of id for use as a TopicKey.
func Key(id uint64) *uint64 { return &id }

// SeatEvent builds a seat_event envelope on the screening's seat topic.
func SeatEvent(event EventKind, p SeatEventPayload, now time.Time) Envelope {
	env, _ := New(KindSeatEvent, event, Key(p.ScreeningID), p, now)
	return env
}

// SeatState builds a seat_event/seat_state envelope.
func SeatState(p SeatStatePayload, now time.Time) Envelope {
	env, _ := New(KindSeatEvent, EventSeatState, Key(p.ScreeningID), p, now)
	return env
}

// ChatEvent builds a chat_event envelope.
func ChatEvent(event EventKind, p any, now time.Time) Envelope {
	env, _ := New(KindChatEvent, event, nil, p, now)
	return env
}

// TypingEvent builds a typing_event envelope.
func TypingEvent(event EventKind, p TypingPayload, now time.Time) Envelope {
	env, _ := New(KindTypingEvent, event, nil, p, now)
	return env
}

// Control builds a subscription or query envelope.  topicKey is only
// used for seat kinds.
func Control(kind Kind, topicKey *uint64, now time.Time) Envelope {
	return Envelope{Kind: kind, TopicKey: topicKey, Timestamp: now.UnixMilli()}
}

// Error builds an error envelope carrying msg.
func Error(msg string, topicKey *uint64, now time.Time) Envelope {
	env, _ := New(KindError, "", topicKey, ErrorPayload{Message: msg}, now)
	return env
}

// Time returns the envelope timestamp as a time.Time.
func (e Envelope) Time() time.Time { return time.UnixMilli(e.Timestamp) }

// DecodePayload unmarshals the payload into v.
func (e Envelope) DecodePayload(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%w: empty payload", ErrMalformed)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("%w: payload: %w", ErrMalformed, err)
	}
	return nil
}

// Validate checks the kind and event kind against the closed sets.
func (e Envelope) Validate() error {
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: %w %q", ErrMalformed, ErrUnknownKind, e.Kind)
	}
	if e.Kind.IsEvent() {
		if !e.Event.Valid() {
			return fmt.Errorf("%w: %w %q", ErrMalformed, ErrUnknownEvent, e.Event)
		}
		if e.Event.Family() != e.Kind {
			return fmt.Errorf("%w: %w: %s/%s", ErrMalformed, ErrMismatchedEvent, e.Kind, e.Event)
		}
	}
	switch e.Kind {
	case KindSubscribeSeatTopic, KindUnsubscribeSeatTopic, KindSeatQuery, KindSeatEvent:
		if e.TopicKey == nil {
			return fmt.Errorf("%w: %w for %s", ErrMalformed, ErrMissingTopic, e.Kind)
		}
	}
	return nil
}
