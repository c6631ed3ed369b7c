package broker

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/seat-reservation-broker/internal/protocol"
)

type fakeSub struct {
	id     string
	fail   error
	mu     sync.Mutex
	lines  [][]byte
	closed bool
}

func (f *fakeSub) ID() string { return f.id }

func (f *fakeSub) Deliver(line []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.lines = append(f.lines, line)
	return nil
}

func (f *fakeSub) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeSub) received(t *testing.T) []protocol.Envelope {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]protocol.Envelope, 0, len(f.lines))
	for _, l := range f.lines {
		env, err := protocol.Unmarshal(l)
		if err != nil {
			t.Fatalf("unmarshal delivered line: %v", err)
		}
		out = append(out, env)
	}
	return out
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func seatLocked(screening uint64, seat string) protocol.Envelope {
	return protocol.SeatEvent(protocol.EventSeatLocked, protocol.SeatEventPayload{ScreeningID: screening, SeatNumber: seat, HolderID: 1}, time.Now())
}

func TestPublishRoutesByTopic(t *testing.T) {
	r := NewRegistry(quietLogger())
	seven, eight, chat := &fakeSub{id: "seven"}, &fakeSub{id: "eight"}, &fakeSub{id: "chat"}
	r.Subscribe(protocol.SeatTopic(7), seven)
	r.Subscribe(protocol.SeatTopic(8), eight)
	r.Subscribe(protocol.ChatTopic, chat)

	r.Publish(seatLocked(7, "A1"))
	r.Publish(protocol.ChatEvent(protocol.EventMessageSent, protocol.ChatPayload{MessageID: 1, Content: "hi"}, time.Now()))

	if got := seven.received(t); len(got) != 1 || got[0].Event != protocol.EventSeatLocked {
		t.Fatalf("seat:7 got %+v", got)
	}
	if got := eight.received(t); len(got) != 0 {
		t.Fatalf("seat:8 got %+v", got)
	}
	if got := chat.received(t); len(got) != 1 || got[0].Event != protocol.EventMessageSent {
		t.Fatalf("chat got %+v", got)
	}
}

func TestFailedSubscriberIsRemovedEverywhere(t *testing.T) {
	r := NewRegistry(quietLogger())
	good := &fakeSub{id: "good"}
	bad := &fakeSub{id: "bad", fail: errors.New("broken pipe")}
	r.Subscribe(protocol.SeatTopic(7), bad)
	r.Subscribe(protocol.ChatTopic, bad)
	r.Subscribe(protocol.SeatTopic(7), good)

	line, err := protocol.Marshal(seatLocked(7, "A1"))
	if err != nil {
		t.Fatal(err)
	}
	if n := r.Broadcast(protocol.SeatTopic(7), line); n != 1 {
		t.Fatalf("delivered = %d, want 1", n)
	}
	if r.Count(protocol.SeatTopic(7)) != 1 || r.Count(protocol.ChatTopic) != 0 {
		t.Fatalf("bad subscriber still registered: seat=%d chat=%d", r.Count(protocol.SeatTopic(7)), r.Count(protocol.ChatTopic))
	}
	if !bad.closed {
		t.Fatal("bad subscriber not closed")
	}

	r.Publish(seatLocked(7, "A2"))
	if got := good.received(t); len(got) != 2 {
		t.Fatalf("good subscriber got %d envelopes, want 2", len(got))
	}
}

func TestPublisherOrderIsPreserved(t *testing.T) {
	r := NewRegistry(quietLogger())
	sub := &fakeSub{id: "s"}
	r.Subscribe(protocol.SeatTopic(7), sub)
	seats := []string{"A1", "A2", "A3", "A4", "A5"}
	for _, s := range seats {
		r.Publish(seatLocked(7, s))
	}
	got := sub.received(t)
	for i, env := range got {
		var p protocol.SeatEventPayload
		if err := env.DecodePayload(&p); err != nil {
			t.Fatal(err)
		}
		if p.SeatNumber != seats[i] {
			t.Fatalf("position %d = %s, want %s", i, p.SeatNumber, seats[i])
		}
	}
}

func TestUnsubscribeAndDropWithoutTopic(t *testing.T) {
	r := NewRegistry(quietLogger())
	sub := &fakeSub{id: "s"}
	r.Subscribe(protocol.TypingTopic, sub)
	r.Subscribe(protocol.TypingTopic, sub)
	if r.Count(protocol.TypingTopic) != 1 {
		t.Fatalf("count = %d after double subscribe", r.Count(protocol.TypingTopic))
	}
	r.Publish(protocol.Control(protocol.KindIdentify, nil, time.Now()))
	r.Unsubscribe(protocol.TypingTopic, sub)
	r.Publish(protocol.TypingEvent(protocol.EventTypingStarted, protocol.TypingPayload{UserID: 1, PeerID: 2}, time.Now()))
	if got := sub.received(t); len(got) != 0 {
		t.Fatalf("got %+v after unsubscribe", got)
	}
}
