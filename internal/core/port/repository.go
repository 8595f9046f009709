package port

import (
	"context"

	"github.com/veliq/telecall/internal/core/domain"
)

type MessageRepository interface {
	Append(ctx context.Context, msg domain.ChatMessage) error
	History(ctx context.Context, conversationID string) ([]domain.ChatMessage, error)
	MarkRead(ctx context.Context, conversationID string, reader domain.ParticipantID) error
}
