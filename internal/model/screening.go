package model

// Screening is a showing whose seats are sold.  AvailableSeats equals
// TotalSeats minus the seats consumed by confirmed bookings.
type Screening struct {
	ID             uint64 `json:"id"`              // screenings.id
	Title          string `json:"title"`           // screenings.title
	TotalSeats     int    `json:"total_seats"`     // screenings.total_seats
	AvailableSeats int    `json:"available_seats"` // screenings.available_seats
}
