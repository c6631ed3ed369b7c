package model

import "time"

// SeatState is the derived state of a single seat on a screening.
type SeatState string

const (
	SeatAvailable SeatState = "available"
	SeatHeld      SeatState = "held"
	SeatBooked    SeatState = "booked"
)

// Seat describes one seat of a screening as seen at a point in time.
// A seat is booked once a booking containing it has been confirmed; a
// seat is held when an unexpired hold exists for it.  HolderID and
// ExpiresAt are only meaningful for held seats.
//
// Fields:
//	ScreeningID – screening to which this seat belongs.
//	SeatNumber  – row letter followed by the position, e.g. "A1".
//	RowLabel    – row letter(s) of the seat.
//	State       – available, held or booked.
//	HolderID    – holder of the current hold, zero otherwise.
//	ExpiresAt   – expiry of the current hold, zero otherwise.
type Seat struct {
	ScreeningID uint64    `json:"screening_id"` // seats.screening_id
	SeatNumber  string    `json:"seat_number"`  // seats.seat_number
	RowLabel    string    `json:"row_label"`    // seats.row_label
	State       SeatState `json:"state"`
	HolderID    uint64    `json:"holder_id,omitempty"`  // seat_holds.holder_id
	ExpiresAt   time.Time `json:"expires_at,omitempty"` // seat_holds.expires_at
}

// SeatMap is the full seat state of a screening.
type SeatMap struct {
	ScreeningID    uint64 `json:"screening_id"`
	TotalSeats     int    `json:"total_seats"`
	AvailableSeats int    `json:"available_seats"`
	Seats          []Seat `json:"seats"`
}

// Count returns how many seats of the map are in state s.
func (m *SeatMap) Count(s SeatState) int {
	n := 0
	for _, seat := range m.Seats {
		if seat.State == s {
			n++
		}
	}
	return n
}
