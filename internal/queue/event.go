// Package queue carries booking notifications over RabbitMQ: a publisher
// used by the seat service after a commit and a consumer that appends
// every confirmation to a booking log.
package queue

import (
	"time"

	"github.com/iliyamo/seat-reservation-broker/internal/model"
)

// BookingConfirmedEvent is published when a booking is successfully
// committed.  It contains enough information for downstream consumers to
// log or notify without querying the primary database.
type BookingConfirmedEvent struct {
	BookingID        uint64   `json:"booking_id"`
	HolderID         uint64   `json:"holder_id"`
	ScreeningID      uint64   `json:"screening_id"`
	ScreeningTitle   string   `json:"screening_title"`
	SeatNumbers      []string `json:"seats"`
	TotalAmountCents uint32   `json:"total_amount_cents"`
	ConfirmedAt      string   `json:"confirmed_at"`
}

// NewBookingConfirmedEvent builds the event for b.  screening may be nil
// when only the id is known.
func NewBookingConfirmedEvent(b *model.Booking, screening *model.Screening) BookingConfirmedEvent {
	ev := BookingConfirmedEvent{
		BookingID:        b.ID,
		HolderID:         b.HolderID,
		ScreeningID:      b.ScreeningID,
		SeatNumbers:      b.SeatNumbers,
		TotalAmountCents: b.TotalAmountCents,
		ConfirmedAt:      b.CreatedAt.UTC().Format(time.RFC3339),
	}
	if screening != nil {
		ev.ScreeningTitle = screening.Title
	}
	return ev
}
