package repository

import (
	"context"
	"time"

	"github.com/iliyamo/seat-reservation-broker/internal/model"
)

// SaveMessage inserts msg and sets its ID.  A zero SentAt is replaced by
// the current time.
func (s *MySQLStore) SaveMessage(ctx context.Context, msg *model.ChatMessage) error {
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (sender_id, receiver_id, content, is_read, sent_at) VALUES (?, ?, ?, 0, ?)`,
		msg.SenderID, msg.ReceiverID, msg.Content, msg.SentAt.UTC())
	if err != nil {
		return storageErr("insert message", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return storageErr("insert message", err)
	}
	msg.ID = uint64(id)
	return nil
}

// MarkMessagesRead marks every unread message from senderID to receiverID
// as read and returns how many changed.
func (s *MySQLStore) MarkMessagesRead(ctx context.Context, receiverID, senderID uint64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET is_read = 1 WHERE receiver_id = ? AND sender_id = ? AND is_read = 0`,
		receiverID, senderID)
	if err != nil {
		return 0, storageErr("mark read", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr("mark read", err)
	}
	return n, nil
}
