package service

import (
	"context"
	"errors"

	"github.com/iliyamo/seat-reservation-broker/internal/model"
	"github.com/iliyamo/seat-reservation-broker/internal/protocol"
	"github.com/iliyamo/seat-reservation-broker/internal/repository"
)

// Commit turns holderID's holds on seats into a confirmed booking.  The
// store checks, in order, that every seat is held by holderID and not
// expired, that none is booked, and that the screening has room; any
// failure leaves state untouched and returns a *repository.RejectedError.
// On success one seat_booked event is published per seat and the booking
// notifier, if any, is told afterwards.
func (s *SeatService) Commit(ctx context.Context, screeningID, holderID uint64, seats []string, amountCents uint32) (*model.Booking, error) {
	seats = normalizeSeats(seats)
	if len(seats) == 0 || holderID == 0 {
		return nil, repository.ErrInvalidRequest
	}

	b, err := s.commitLocked(ctx, screeningID, holderID, seats, amountCents)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, b)
	return b, nil
}

func (s *SeatService) commitLocked(ctx context.Context, screeningID, holderID uint64, seats []string, amountCents uint32) (*model.Booking, error) {
	defer s.flush()
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	b, err := s.store.CommitBooking(ctx, screeningID, holderID, seats, amountCents, now)
	if err != nil {
		if reason, ok := repository.RejectReasonOf(err); ok {
			s.log.Info("booking rejected", "screening_id", screeningID, "holder_id", holderID, "reason", reason)
		}
		return nil, err
	}
	for _, num := range b.SeatNumbers {
		s.publishSeat(protocol.EventSeatBooked, protocol.SeatEventPayload{
			ScreeningID: screeningID,
			SeatNumber:  num,
			HolderID:    holderID,
			BookingID:   b.ID,
		}, now)
	}
	s.log.Info("booking confirmed", "booking_id", b.ID, "screening_id", screeningID, "holder_id", holderID, "seats", b.SeatNumbers)
	return b, nil
}

func (s *SeatService) notify(ctx context.Context, b *model.Booking) {
	if s.notifier == nil {
		return
	}
	sc, err := s.store.Screening(ctx, b.ScreeningID)
	if err != nil {
		sc = nil
	}
	if err := s.notifier.NotifyBookingConfirmed(ctx, b, sc); err != nil {
		s.log.Warn("booking notification failed", "booking_id", b.ID, "err", err)
	}
}

// Cancel moves a confirmed booking to cancelled.  Whether its seats return
// to the pool follows Options.CancelReleasesSeats; released seats are
// announced with seat_unlocked.
func (s *SeatService) Cancel(ctx context.Context, bookingID uint64) (*model.Booking, error) {
	defer s.flush()
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.store.CancelBooking(ctx, bookingID, s.releaseOnCancel)
	if err != nil {
		if !errors.Is(err, repository.ErrBookingNotFound) && !errors.Is(err, repository.ErrBookingNotCancellable) {
			s.log.Error("cancel failed", "booking_id", bookingID, "err", err)
		}
		return nil, err
	}
	if s.releaseOnCancel {
		now := s.clock.Now()
		for _, num := range b.SeatNumbers {
			s.publishSeat(protocol.EventSeatUnlocked, protocol.SeatEventPayload{ScreeningID: b.ScreeningID, SeatNumber: num, BookingID: b.ID}, now)
		}
	}
	s.log.Info("booking cancelled", "booking_id", b.ID, "seats_released", s.releaseOnCancel)
	return b, nil
}

// Booking returns a booking by id.
func (s *SeatService) Booking(ctx context.Context, id uint64) (*model.Booking, error) {
	return s.store.Booking(ctx, id)
}
