package model

import "time"

// Hold is a time-bounded claim by one holder on one seat of a screening.
// At most one unexpired hold exists per seat.  A hold whose ExpiresAt is
// not after the current time is void even if it has not been swept yet.
//
// Fields:
//	ScreeningID – screening on which the seat is held.
//	SeatNumber  – seat being held.
//	HolderID    – opaque identifier of the client that owns the hold.
//	Token       – random token identifying this hold row.
//	ExpiresAt   – when the hold lapses.
type Hold struct {
	ScreeningID uint64    // seat_holds.screening_id
	SeatNumber  string    // seat_holds.seat_number
	HolderID    uint64    // seat_holds.holder_id
	Token       string    // seat_holds.hold_token
	ExpiresAt   time.Time // seat_holds.expires_at
}

// Expired reports whether the hold is void at now.
func (h Hold) Expired(now time.Time) bool {
	return !h.ExpiresAt.After(now)
}

// Active reports whether the hold is unexpired and owned by holderID.
func (h Hold) Active(holderID uint64, now time.Time) bool {
	return h.HolderID == holderID && !h.Expired(now)
}
