package repository

import (
	"context"
	"time"

	"github.com/iliyamo/seat-reservation-broker/internal/model"
)

// AcquireResult describes a successful acquire.  Replaced lists seats the
// holder held before on the same screening that are not part of the new
// selection and are therefore free again.
type AcquireResult struct {
	Holds    []model.Hold
	Replaced []string
}

// Store is the persistence contract of the seat service.  Every mutating
// method runs in a single transaction: it either applies all of its
// changes or none.  Time is always supplied by the caller so expiry
// decisions follow one clock.
type Store interface {
	Screening(ctx context.Context, id uint64) (*model.Screening, error)
	SeatMap(ctx context.Context, screeningID uint64, now time.Time) (*model.SeatMap, error)

	AcquireHolds(ctx context.Context, screeningID, holderID uint64, seats []string, expiresAt, now time.Time) (*AcquireResult, error)
	ReleaseHolds(ctx context.Context, screeningID, holderID uint64) ([]string, error)
	// ReleaseHold removes holderID's hold on one seat and reports whether
	// there was one.
	ReleaseHold(ctx context.Context, screeningID, holderID uint64, seat string) (bool, error)
	DeleteExpiredHolds(ctx context.Context, now time.Time) ([]model.Hold, error)

	CommitBooking(ctx context.Context, screeningID, holderID uint64, seats []string, amountCents uint32, now time.Time) (*model.Booking, error)
	CancelBooking(ctx context.Context, bookingID uint64, releaseSeats bool) (*model.Booking, error)
	Booking(ctx context.Context, id uint64) (*model.Booking, error)
}

// MessageStore persists chat messages.
type MessageStore interface {
	SaveMessage(ctx context.Context, msg *model.ChatMessage) error
	MarkMessagesRead(ctx context.Context, receiverID, senderID uint64) (int64, error)
}
