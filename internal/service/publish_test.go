package service

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/iliyamo/seat-reservation-broker/internal/notify"
	"github.com/iliyamo/seat-reservation-broker/internal/protocol"
	"github.com/iliyamo/seat-reservation-broker/internal/repository"
	"github.com/iliyamo/seat-reservation-broker/internal/testutil"
)

// unreachableAddr returns a loopback address nothing is listening on.
func unreachableAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func newFacadeService(t *testing.T, cfg notify.Config) (*SeatService, *notify.Facade) {
	t.Helper()
	store := repository.NewMemoryStore()
	store.AddScreening(7, "Heat", 100)
	f := notify.New(cfg, notify.WithLogger(quietLogger()))
	f.Start(context.Background())
	t.Cleanup(f.Close)
	svc := NewSeatService(store, f, Options{Clock: clockwork.NewFakeClockAt(t0), Logger: quietLogger()})
	return svc, f
}

func TestObserverMayCallBackIntoService(t *testing.T) {
	ctx := context.Background()
	svc, f := newFacadeService(t, notify.Config{})

	var mu sync.Mutex
	var seen []protocol.EventKind
	f.SubscribeSeatTopic(7, func(env protocol.Envelope) {
		mu.Lock()
		seen = append(seen, env.Event)
		mu.Unlock()
		if env.Event == protocol.EventSeatLocked {
			if _, err := svc.Release(ctx, 7, 1); err != nil {
				t.Errorf("release from observer: %v", err)
			}
		}
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := svc.Acquire(ctx, 7, 1, []string{"A1"}); err != nil {
			t.Errorf("acquire: %v", err)
		}
	}()
	testutil.RequireClosed(t, done, 2*time.Second, "acquire blocked on a re-entrant observer")

	mu.Lock()
	defer mu.Unlock()
	want := []protocol.EventKind{protocol.EventSeatLocked, protocol.EventSeatUnlocked, protocol.EventSeatState}
	if len(seen) != len(want) {
		t.Fatalf("events = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("events = %v, want %v", seen, want)
		}
	}
}

func TestUnreachableBrokerStillDeliversSeatEvents(t *testing.T) {
	ctx := context.Background()
	svc, f := newFacadeService(t, notify.Config{BrokerAddr: unreachableAddr(t), ReconnectMin: time.Hour})
	if f.Connected() {
		t.Fatal("facade connected to a closed port")
	}

	got := make(chan protocol.Envelope, 8)
	sub := f.SubscribeSeatTopic(7, func(env protocol.Envelope) { got <- env })
	defer sub.Unsubscribe()

	if _, err := svc.Acquire(ctx, 7, 3, []string{"C1", "C2"}); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"C1", "C2"} {
		env := testutil.RequireReceive(t, got, 2*time.Second, "seat_locked for %s", want)
		var p protocol.SeatEventPayload
		if err := env.DecodePayload(&p); err != nil {
			t.Fatal(err)
		}
		if env.Event != protocol.EventSeatLocked || p.SeatNumber != want || p.HolderID != 3 {
			t.Fatalf("envelope = %s %+v, want seat_locked %s", env.Event, p, want)
		}
	}
}
