package service

import (
	"context"

	"github.com/iliyamo/seat-reservation-broker/internal/model"
	"github.com/iliyamo/seat-reservation-broker/internal/protocol"
	"github.com/iliyamo/seat-reservation-broker/internal/repository"
)

// Acquire holds seats for holderID on a screening.  The set is taken
// atomically: on conflict nothing changes and a *repository.ConflictError
// names the blocking seats.  A successful acquire replaces every hold the
// holder had on the screening; seats dropped that way are announced with
// seat_unlocked before the new seat_locked events.
func (s *SeatService) Acquire(ctx context.Context, screeningID, holderID uint64, seats []string) ([]model.Hold, error) {
	seats = normalizeSeats(seats)
	if len(seats) == 0 || holderID == 0 {
		return nil, repository.ErrInvalidRequest
	}

	defer s.flush()
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	res, err := s.store.AcquireHolds(ctx, screeningID, holderID, seats, now.Add(s.ttl), now)
	if err != nil {
		s.log.Debug("acquire failed", "screening_id", screeningID, "holder_id", holderID, "err", err)
		return nil, err
	}
	for _, num := range res.Replaced {
		s.publishSeat(protocol.EventSeatUnlocked, protocol.SeatEventPayload{ScreeningID: screeningID, SeatNumber: num, HolderID: holderID}, now)
	}
	for _, h := range res.Holds {
		s.publishSeat(protocol.EventSeatLocked, protocol.SeatEventPayload{
			ScreeningID: screeningID,
			SeatNumber:  h.SeatNumber,
			HolderID:    holderID,
			ExpiresAt:   h.ExpiresAt.UnixMilli(),
		}, now)
	}
	s.log.Info("seats held", "screening_id", screeningID, "holder_id", holderID, "seats", seats)
	return res.Holds, nil
}

// Release drops every hold holderID has on the screening and follows the
// seat_unlocked events with a seat_state snapshot.  It is idempotent:
// releasing nothing succeeds and publishes nothing.
func (s *SeatService) Release(ctx context.Context, screeningID, holderID uint64) ([]string, error) {
	defer s.flush()
	s.mu.Lock()
	defer s.mu.Unlock()

	released, err := s.store.ReleaseHolds(ctx, screeningID, holderID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	for _, num := range released {
		s.publishSeat(protocol.EventSeatUnlocked, protocol.SeatEventPayload{ScreeningID: screeningID, SeatNumber: num, HolderID: holderID}, now)
	}
	if len(released) > 0 {
		s.publishSeatState(ctx, screeningID, now)
		s.log.Info("holds released", "screening_id", screeningID, "holder_id", holderID, "seats", released)
	}
	return released, nil
}

// SweepExpired deletes every hold whose expiry is at or before now,
// announces each freed seat and then the new state of every screening it
// touched.  It returns the number of holds removed.
func (s *SeatService) SweepExpired(ctx context.Context) (int, error) {
	defer s.flush()
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	expired, err := s.store.DeleteExpiredHolds(ctx, now)
	if err != nil {
		return 0, err
	}
	var touched []uint64
	seen := make(map[uint64]bool)
	for _, h := range expired {
		s.publishSeat(protocol.EventSeatUnlocked, protocol.SeatEventPayload{ScreeningID: h.ScreeningID, SeatNumber: h.SeatNumber, HolderID: h.HolderID}, now)
		if !seen[h.ScreeningID] {
			seen[h.ScreeningID] = true
			touched = append(touched, h.ScreeningID)
		}
	}
	for _, id := range touched {
		s.publishSeatState(ctx, id, now)
	}
	if len(expired) > 0 {
		s.log.Info("expired holds swept", "count", len(expired), "screenings", len(touched))
	}
	return len(expired), nil
}

// Unlock drops a single hold of holderID.  The seat_unlocked event is
// queued in the same critical section as the delete.  It reports whether a
// hold was removed; unlocking a seat the holder does not hold is a no-op.
func (s *SeatService) Unlock(ctx context.Context, screeningID, holderID uint64, seat string) (bool, error) {
	seats := normalizeSeats([]string{seat})
	if len(seats) == 0 || holderID == 0 {
		return false, repository.ErrInvalidRequest
	}

	defer s.flush()
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.store.ReleaseHold(ctx, screeningID, holderID, seats[0])
	if err != nil || !ok {
		return false, err
	}
	s.publishSeat(protocol.EventSeatUnlocked, protocol.SeatEventPayload{ScreeningID: screeningID, SeatNumber: seats[0], HolderID: holderID}, s.clock.Now())
	s.log.Info("hold released", "screening_id", screeningID, "holder_id", holderID, "seat", seats[0])
	return true, nil
}
