package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/iliyamo/seat-reservation-broker/internal/testutil"
)

const wait = 3 * time.Second

type fakeSource struct {
	up       atomic.Bool
	polled   chan bool
	requests chan uint64
}

func (s *fakeSource) Connected() bool {
	v := s.up.Load()
	s.polled <- v
	return v
}

func (s *fakeSource) RequestSeatState(id uint64) { s.requests <- id }

func TestRefreshOnReconnect(t *testing.T) {
	src := &fakeSource{polled: make(chan bool, 16), requests: make(chan uint64, 16)}
	clock := clockwork.NewFakeClock()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		refreshOnReconnect(ctx, src, 7, clock, time.Second)
	}()
	testutil.RequireReceive(t, src.polled, wait, "initial poll")
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatal(err)
	}

	step := func(up bool) {
		t.Helper()
		src.up.Store(up)
		clock.Advance(time.Second)
		testutil.RequireReceive(t, src.polled, wait, "poll")
	}

	step(true)
	if id := testutil.RequireReceive(t, src.requests, wait, "request after reconnect"); id != 7 {
		t.Fatalf("requested screening %d, want 7", id)
	}
	step(true)
	testutil.RequireNoReceive(t, src.requests, 50*time.Millisecond, "request while connection stayed up")
	step(false)
	step(true)
	testutil.RequireReceive(t, src.requests, wait, "request after second reconnect")

	cancel()
	testutil.RequireClosed(t, done, wait, "refresh loop did not stop")
}
