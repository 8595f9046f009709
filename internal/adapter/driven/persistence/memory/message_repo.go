package memory

import (
	"context"
	"sync"

	"github.com/veliq/telecall/internal/core/domain"
)

// MessageRepository keeps conversation history in process memory, ordered by
// append time per conversation.
type MessageRepository struct {
	mu            sync.Mutex
	conversations map[string][]domain.ChatMessage
}

func NewMessageRepository() *MessageRepository {
	return &MessageRepository{
		conversations: make(map[string][]domain.ChatMessage),
	}
}

func (r *MessageRepository) Append(ctx context.Context, msg domain.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conversations[msg.ConversationID] = append(r.conversations[msg.ConversationID], msg)
	return nil
}

func (r *MessageRepository) History(ctx context.Context, conversationID string) ([]domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.conversations[conversationID]
	out := make([]domain.ChatMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

// MarkRead flags every message addressed to the reader as read.
func (r *MessageRepository) MarkRead(ctx context.Context, conversationID string, reader domain.ParticipantID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.conversations[conversationID]
	for i := range msgs {
		if msgs[i].ReceiverID == reader {
			msgs[i].Read = true
		}
	}
	return nil
}
