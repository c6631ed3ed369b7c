package notify

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/iliyamo/seat-reservation-broker/internal/broker"
	"github.com/iliyamo/seat-reservation-broker/internal/protocol"
	"github.com/iliyamo/seat-reservation-broker/internal/repository"
	"github.com/iliyamo/seat-reservation-broker/internal/testutil"
)

const wait = 3 * time.Second

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// freeAddr returns a loopback address nothing is listening on.
func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

type brokerHarness struct {
	reg  *broker.Registry
	stop func()
}

func startBroker(t *testing.T, addr string) *brokerHarness {
	t.Helper()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	reg := broker.NewRegistry(quietLogger())
	srv := broker.NewServer(reg, nil, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = srv.Serve(ctx, ln)
		close(done)
	}()
	h := &brokerHarness{reg: reg}
	h.stop = func() {
		cancel()
		testutil.RequireClosed(t, done, wait, "broker did not stop")
	}
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

func newFacade(t *testing.T, cfg Config, opts ...Option) *Facade {
	t.Helper()
	f := New(cfg, append([]Option{WithLogger(quietLogger())}, opts...)...)
	f.Start(context.Background())
	t.Cleanup(f.Close)
	return f
}

func collect(ch chan protocol.Envelope) Observer {
	return func(env protocol.Envelope) { ch <- env }
}

func TestDegradedModeDeliversLocally(t *testing.T) {
	store := repository.NewMemoryStore()
	f := newFacade(t, Config{BrokerAddr: freeAddr(t), ReconnectMin: time.Hour}, WithMessageStore(store))
	if f.Connected() {
		t.Fatal("facade connected to nothing")
	}

	inbox := make(chan protocol.Envelope, 8)
	f.SubscribeChat(collect(inbox))
	msg, err := f.PublishChatMessage(context.Background(), 1, 2, "two seats left in row C")
	if err != nil {
		t.Fatal(err)
	}
	if msg.ID == 0 {
		t.Fatal("message was not persisted")
	}
	env := testutil.RequireReceive(t, inbox, wait, "local chat delivery")
	var p protocol.ChatPayload
	if err := env.DecodePayload(&p); err != nil || p.MessageID != msg.ID {
		t.Fatalf("payload = %+v, %v", p, err)
	}

	if n, err := f.MarkMessagesRead(context.Background(), 2, 1); err != nil || n != 1 {
		t.Fatalf("MarkMessagesRead = %d, %v", n, err)
	}
	env = testutil.RequireReceive(t, inbox, wait, "message_read")
	if env.Event != protocol.EventMessageRead {
		t.Fatalf("event = %s", env.Event)
	}
}

func TestLocalOnlyFacadeWithoutBroker(t *testing.T) {
	f := newFacade(t, Config{})
	seats := make(chan protocol.Envelope, 4)
	sub := f.SubscribeSeatTopic(7, collect(seats))
	f.Publish(protocol.SeatEvent(protocol.EventSeatBooked, protocol.SeatEventPayload{ScreeningID: 7, SeatNumber: "A1"}, time.Now()))
	f.Publish(protocol.SeatEvent(protocol.EventSeatBooked, protocol.SeatEventPayload{ScreeningID: 8, SeatNumber: "A1"}, time.Now()))
	testutil.RequireReceive(t, seats, wait, "seat:7 event")
	testutil.RequireNoReceive(t, seats, 50*time.Millisecond, "seat:8 event leaked")

	sub.Unsubscribe()
	sub.Unsubscribe()
	f.Publish(protocol.SeatEvent(protocol.EventSeatBooked, protocol.SeatEventPayload{ScreeningID: 7, SeatNumber: "A2"}, time.Now()))
	testutil.RequireNoReceive(t, seats, 50*time.Millisecond, "event after unsubscribe")
}

func TestConnectedFacadesShareEvents(t *testing.T) {
	addr := freeAddr(t)
	b := startBroker(t, addr)
	alice := newFacade(t, Config{BrokerAddr: addr, UserID: 1})
	bob := newFacade(t, Config{BrokerAddr: addr, UserID: 2})
	if !alice.Connected() || !bob.Connected() {
		t.Fatal("facades not connected")
	}

	typing := make(chan protocol.Envelope, 4)
	alice.SubscribeTyping(collect(typing))
	testutil.Eventually(t, wait, func() bool { return b.reg.Count(protocol.TypingTopic) == 1 }, "typing subscription")

	bob.PublishTypingStarted(2, 1)
	env := testutil.RequireReceive(t, typing, wait, "typing_started via broker")
	if env.Event != protocol.EventTypingStarted {
		t.Fatalf("event = %s", env.Event)
	}
}

func TestReconnectResubscribes(t *testing.T) {
	addr := freeAddr(t)
	f := newFacade(t, Config{BrokerAddr: addr, ReconnectMin: 20 * time.Millisecond, ReconnectMax: 50 * time.Millisecond})
	chat := make(chan protocol.Envelope, 4)
	f.SubscribeChat(collect(chat))
	if f.Connected() {
		t.Fatal("connected before broker started")
	}

	b := startBroker(t, addr)
	testutil.Eventually(t, wait, f.Connected, "facade did not reconnect")
	testutil.Eventually(t, wait, func() bool { return b.reg.Count(protocol.ChatTopic) == 1 }, "chat topic not resubscribed")

	f.Publish(protocol.ChatEvent(protocol.EventMessageSent, protocol.ChatPayload{MessageID: 1, Content: "back"}, time.Now()))
	testutil.RequireReceive(t, chat, wait, "echo through broker")

	b.stop()
	testutil.Eventually(t, wait, func() bool { return !f.Connected() }, "facade did not notice broker loss")
	f.Publish(protocol.ChatEvent(protocol.EventMessageSent, protocol.ChatPayload{MessageID: 2, Content: "still here"}, time.Now()))
	env := testutil.RequireReceive(t, chat, wait, "local delivery after broker loss")
	var p protocol.ChatPayload
	if err := env.DecodePayload(&p); err != nil || p.MessageID != 2 {
		t.Fatalf("payload = %+v, %v", p, err)
	}
}

func TestTypingIndicatorTimesOut(t *testing.T) {
	clock := clockwork.NewFakeClock()
	f := New(Config{TypingTimeout: 3 * time.Second}, WithClock(clock), WithLogger(quietLogger()))
	typing := make(chan protocol.Envelope, 4)
	f.SubscribeTyping(collect(typing))

	f.PublishTypingStarted(1, 2)
	testutil.RequireReceive(t, typing, wait, "typing_started")

	clock.Advance(2 * time.Second)
	if n := f.expireTyping(); n != 0 {
		t.Fatalf("expired %d indicators before timeout", n)
	}
	clock.Advance(time.Second)
	if n := f.expireTyping(); n != 1 {
		t.Fatalf("expired %d indicators at timeout, want 1", n)
	}
	env := testutil.RequireReceive(t, typing, wait, "automatic typing_stopped")
	var p protocol.TypingPayload
	if err := env.DecodePayload(&p); err != nil || env.Event != protocol.EventTypingStopped || p.UserID != 1 || p.PeerID != 2 {
		t.Fatalf("got %s %+v, %v", env.Event, p, err)
	}

	f.PublishTypingStarted(1, 2)
	if _, err := f.PublishChatMessage(context.Background(), 1, 2, "done typing"); err != nil {
		t.Fatal(err)
	}
	clock.Advance(5 * time.Second)
	if n := f.expireTyping(); n != 0 {
		t.Fatalf("sending a message must clear the indicator, expired %d", n)
	}
}
