package model

import "time"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking records the seats a holder bought on a screening.  The seat
// list is immutable once the booking is confirmed.
//
// Fields:
//	ID               – primary key identifier.
//	HolderID         – holder who made the booking.
//	ScreeningID      – screening being booked.
//	SeatNumbers      – seats consumed by the booking.
//	TotalAmountCents – total price in cents for all seats.
//	Status           – pending, confirmed or cancelled.
//	CreatedAt        – creation timestamp.
type Booking struct {
	ID               uint64        `json:"id"`                 // bookings.id
	HolderID         uint64        `json:"holder_id"`          // bookings.holder_id
	ScreeningID      uint64        `json:"screening_id"`       // bookings.screening_id
	SeatNumbers      []string      `json:"seat_numbers"`       // bookings.seat_numbers (comma separated)
	TotalAmountCents uint32        `json:"total_amount_cents"` // bookings.total_amount_cents
	Status           BookingStatus `json:"status"`             // bookings.status
	CreatedAt        time.Time     `json:"created_at"`         // bookings.created_at
}
