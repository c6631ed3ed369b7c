package model

import "time"

// ChatMessage is a direct message between two users.
type ChatMessage struct {
	ID         uint64    `json:"id"`          // messages.id
	SenderID   uint64    `json:"sender_id"`   // messages.sender_id
	ReceiverID uint64    `json:"receiver_id"` // messages.receiver_id
	Content    string    `json:"content"`     // messages.content
	Read       bool      `json:"read"`        // messages.is_read
	SentAt     time.Time `json:"sent_at"`     // messages.sent_at
}
