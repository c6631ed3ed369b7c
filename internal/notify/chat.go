package notify

import (
	"context"
	"fmt"

	"github.com/iliyamo/seat-reservation-broker/internal/model"
	"github.com/iliyamo/seat-reservation-broker/internal/protocol"
	"github.com/iliyamo/seat-reservation-broker/internal/repository"
)

// PublishChatMessage stores a message, when a message store is
// configured, and broadcasts message_sent.  Sending a message also ends
// the sender's typing indicator towards the receiver.
func (f *Facade) PublishChatMessage(ctx context.Context, senderID, receiverID uint64, content string) (*model.ChatMessage, error) {
	if senderID == 0 || receiverID == 0 || content == "" {
		return nil, repository.ErrInvalidRequest
	}
	msg := &model.ChatMessage{SenderID: senderID, ReceiverID: receiverID, Content: content, SentAt: f.clock.Now().UTC()}
	if f.messages != nil {
		if err := f.messages.SaveMessage(ctx, msg); err != nil {
			return nil, fmt.Errorf("save message: %w", err)
		}
	}
	f.clearTyping(senderID, receiverID)
	f.Publish(protocol.ChatEvent(protocol.EventMessageSent, protocol.ChatPayload{
		MessageID:  msg.ID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Content:    msg.Content,
		SentAt:     msg.SentAt.UnixMilli(),
	}, f.clock.Now()))
	return msg, nil
}

// MarkMessagesRead marks every message from senderID to receiverID as read
// and broadcasts one message_read with message id zero.
func (f *Facade) MarkMessagesRead(ctx context.Context, receiverID, senderID uint64) (int64, error) {
	var n int64
	if f.messages != nil {
		var err error
		n, err = f.messages.MarkMessagesRead(ctx, receiverID, senderID)
		if err != nil {
			return 0, fmt.Errorf("mark read: %w", err)
		}
	}
	f.Publish(protocol.ChatEvent(protocol.EventMessageRead, protocol.MessageReadPayload{
		ReaderID: receiverID,
		SenderID: senderID,
	}, f.clock.Now()))
	return n, nil
}
