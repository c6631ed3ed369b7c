package protocol

// SeatEventPayload accompanies seat_locked, seat_unlocked and seat_booked.
type SeatEventPayload struct {
	ScreeningID uint64 `json:"screeningId"`
	SeatNumber  string `json:"seatNumber"`
	HolderID    uint64 `json:"holderId,omitempty"`
	ExpiresAt   int64  `json:"expiresAt,omitempty"` // epoch millis, seat_locked only
	BookingID   uint64 `json:"bookingId,omitempty"` // seat_booked only
}

// SeatStatus is one entry of a seat_state snapshot.
type SeatStatus struct {
	SeatNumber string `json:"seatNumber"`
	State      string `json:"state"`
	HolderID   uint64 `json:"holderId,omitempty"`
	ExpiresAt  int64  `json:"expiresAt,omitempty"`
}

// SeatStatePayload is the authoritative snapshot of a screening.
type SeatStatePayload struct {
	ScreeningID    uint64       `json:"screeningId"`
	TotalSeats     int          `json:"totalSeats"`
	AvailableSeats int          `json:"availableSeats"`
	Seats          []SeatStatus `json:"seats"`
}

// ChatPayload accompanies message_sent.
type ChatPayload struct {
	MessageID  uint64 `json:"messageId"`
	SenderID   uint64 `json:"senderId"`
	ReceiverID uint64 `json:"receiverId"`
	Content    string `json:"content"`
	SentAt     int64  `json:"sentAt"`
}

// MessageReadPayload accompanies message_read.  MessageID zero means every
// message from SenderID to ReaderID was marked read.
type MessageReadPayload struct {
	MessageID uint64 `json:"messageId"`
	ReaderID  uint64 `json:"readerId"`
	SenderID  uint64 `json:"senderId"`
}

// TypingPayload accompanies typing_started and typing_stopped.
type TypingPayload struct {
	UserID uint64 `json:"userId"`
	PeerID uint64 `json:"peerId"`
}

// IdentifyPayload binds a user id to a connection.
type IdentifyPayload struct {
	UserID uint64 `json:"userId"`
}

// ErrorPayload is sent by the server when a request cannot be served.
type ErrorPayload struct {
	Message string `json:"message"`
}
