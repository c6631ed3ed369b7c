// Package service implements the hold table and the booking transaction on
// top of a repository.Store and announces every seat change through a
// Publisher.
package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/iliyamo/seat-reservation-broker/internal/model"
	"github.com/iliyamo/seat-reservation-broker/internal/protocol"
	"github.com/iliyamo/seat-reservation-broker/internal/repository"
)

// DefaultHoldTTL is how long a hold lives when no TTL is configured.
const DefaultHoldTTL = 2 * time.Minute

// Publisher receives every envelope the service emits.  Publish must not
// block on slow subscribers.
type Publisher interface {
	Publish(env protocol.Envelope)
}

// BookingNotifier is told about every confirmed booking after commit.
type BookingNotifier interface {
	NotifyBookingConfirmed(ctx context.Context, b *model.Booking, screening *model.Screening) error
}

// Options tunes a SeatService.  Zero values select the defaults.
type Options struct {
	HoldTTL time.Duration
	// CancelReleasesSeats returns the seats of a cancelled booking to the
	// pool.  When false a cancelled booking keeps its seats booked.
	CancelReleasesSeats bool
	Clock               clockwork.Clock
	Logger              *slog.Logger
	Notifier            BookingNotifier
}

// SeatService owns hold and booking mutations.  Acquire, Unlock, Release,
// Commit, Cancel and SweepExpired run under one mutex so that, within a
// process, a multi-seat operation is never interleaved with another; the
// store transaction provides the same guarantee across processes.
//
// Events are queued while the mutex is held and handed to the Publisher
// after it is released, so a subscriber may call back into the service.
// One caller at a time drains the queue, which keeps commit order; a call
// made while another goroutine is draining returns once its events are
// queued.
type SeatService struct {
	mu              sync.Mutex
	store           repository.Store
	pub             Publisher
	notifier        BookingNotifier
	clock           clockwork.Clock
	ttl             time.Duration
	releaseOnCancel bool
	log             *slog.Logger

	qmu      sync.Mutex
	pending  []protocol.Envelope
	draining bool
}

// NewSeatService wires a service.  pub may be nil, in which case events
// are dropped.
func NewSeatService(store repository.Store, pub Publisher, opts Options) *SeatService {
	s := &SeatService{
		store:           store,
		pub:             pub,
		notifier:        opts.Notifier,
		clock:           opts.Clock,
		ttl:             opts.HoldTTL,
		releaseOnCancel: opts.CancelReleasesSeats,
		log:             opts.Logger,
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.ttl <= 0 {
		s.ttl = DefaultHoldTTL
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.log = s.log.With("component", "seat-service")
	return s
}

// HoldTTL returns the configured hold lifetime.
func (s *SeatService) HoldTTL() time.Duration { return s.ttl }

// SeatState returns the full seat map of a screening.  Holds whose expiry
// has passed are reported as available even before the sweep runs.
func (s *SeatService) SeatState(ctx context.Context, screeningID uint64) (*model.SeatMap, error) {
	return s.store.SeatMap(ctx, screeningID, s.clock.Now())
}

// SeatStateEnvelope returns the seat map of a screening as a seat_state
// envelope.
func (s *SeatService) SeatStateEnvelope(ctx context.Context, screeningID uint64) (protocol.Envelope, error) {
	m, err := s.SeatState(ctx, screeningID)
	if err != nil {
		return protocol.Envelope{}, err
	}
	return protocol.SeatState(SeatStatePayload(m), s.clock.Now()), nil
}

// SeatStatePayload converts a seat map into its wire form.
func SeatStatePayload(m *model.SeatMap) protocol.SeatStatePayload {
	p := protocol.SeatStatePayload{
		ScreeningID:    m.ScreeningID,
		TotalSeats:     m.TotalSeats,
		AvailableSeats: m.AvailableSeats,
		Seats:          make([]protocol.SeatStatus, 0, len(m.Seats)),
	}
	for _, seat := range m.Seats {
		st := protocol.SeatStatus{SeatNumber: seat.SeatNumber, State: string(seat.State), HolderID: seat.HolderID}
		if !seat.ExpiresAt.IsZero() {
			st.ExpiresAt = seat.ExpiresAt.UnixMilli()
		}
		p.Seats = append(p.Seats, st)
	}
	return p
}

// enqueue appends env to the outbound queue.  Callers hold s.mu so the
// queue follows commit order.
func (s *SeatService) enqueue(env protocol.Envelope) {
	if s.pub == nil {
		return
	}
	s.qmu.Lock()
	s.pending = append(s.pending, env)
	s.qmu.Unlock()
}

func (s *SeatService) publishSeat(event protocol.EventKind, p protocol.SeatEventPayload, now time.Time) {
	s.enqueue(protocol.SeatEvent(event, p, now))
}

// publishSeatState queues a seat_state snapshot of the screening.  Callers
// hold s.mu.
func (s *SeatService) publishSeatState(ctx context.Context, screeningID uint64, now time.Time) {
	if s.pub == nil {
		return
	}
	m, err := s.store.SeatMap(ctx, screeningID, now)
	if err != nil {
		s.log.Warn("seat state snapshot failed", "screening_id", screeningID, "err", err)
		return
	}
	s.enqueue(protocol.SeatState(SeatStatePayload(m), now))
}

// flush delivers queued envelopes.  It must be called without s.mu held.
func (s *SeatService) flush() {
	s.qmu.Lock()
	if s.draining {
		s.qmu.Unlock()
		return
	}
	s.draining = true
	for len(s.pending) > 0 {
		batch := s.pending
		s.pending = nil
		s.qmu.Unlock()
		for _, env := range batch {
			s.pub.Publish(env)
		}
		s.qmu.Lock()
	}
	s.draining = false
	s.qmu.Unlock()
}

// normalizeSeats upper-cases and trims seat numbers, dropping blanks and
// duplicates while keeping the caller's order.
func normalizeSeats(seats []string) []string {
	out := make([]string, 0, len(seats))
	seen := make(map[string]struct{}, len(seats))
	for _, raw := range seats {
		num := strings.ToUpper(strings.TrimSpace(raw))
		if num == "" {
			continue
		}
		if _, ok := seen[num]; ok {
			continue
		}
		seen[num] = struct{}{}
		out = append(out, num)
	}
	return out
}
