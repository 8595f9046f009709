package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/veliq/telecall/internal/core/domain"
	"github.com/veliq/telecall/internal/core/port"
)

// ChatService covers the slice of chat the call layer touches: persisting a
// message, echoing it to both sides, serving history and read receipts.
type ChatService struct {
	repo     port.MessageRepository
	registry *Registry
}

func NewChatService(repo port.MessageRepository, registry *Registry) *ChatService {
	return &ChatService{
		repo:     repo,
		registry: registry,
	}
}

func (s *ChatService) SendMessage(ctx context.Context, req domain.SendMessage) error {
	msg, err := domain.NewChatMessage(
		domain.ParticipantID(req.SenderID),
		domain.ParticipantID(req.ReceiverID),
		req.SenderKind,
		req.Text,
	)
	if err != nil {
		return err
	}
	if err := s.repo.Append(ctx, *msg); err != nil {
		return err
	}

	env, err := domain.NewEnvelope(domain.EventNewMessage, domain.NewMessage{
		ConversationID: msg.ConversationID,
		Message:        *msg,
	})
	if err != nil {
		return err
	}
	s.deliver(msg.SenderID, env)
	s.deliver(msg.ReceiverID, env)
	return nil
}

func (s *ChatService) History(ctx context.Context, requester domain.ParticipantID, conversationID string) error {
	msgs, err := s.repo.History(ctx, conversationID)
	if err != nil {
		return err
	}
	env, err := domain.NewEnvelope(domain.EventChatHistory, domain.ChatHistory{
		ConversationID: conversationID,
		Messages:       msgs,
	})
	if err != nil {
		return err
	}
	s.deliver(requester, env)
	return nil
}

// MarkRead records the receipt and notifies both conversation members.
func (s *ChatService) MarkRead(ctx context.Context, req domain.MarkMessagesRead) error {
	reader := domain.ParticipantID(req.UserID)
	if err := s.repo.MarkRead(ctx, req.ConversationID, reader); err != nil {
		return err
	}
	env, err := domain.NewEnvelope(domain.EventMessagesRead, domain.MessagesRead{
		ConversationID: req.ConversationID,
		UserID:         req.UserID,
	})
	if err != nil {
		return err
	}
	a, b, ok := domain.ConversationMembers(req.ConversationID)
	if !ok {
		s.deliver(reader, env)
		return nil
	}
	s.deliver(a, env)
	s.deliver(b, env)
	return nil
}

func (s *ChatService) deliver(id domain.ParticipantID, env domain.Envelope) {
	client, ok := s.registry.Lookup(id)
	if !ok {
		return
	}
	if err := client.Send(env); err != nil {
		log.Error().Err(err).Str("participant", id.String()).Msg("Error delivering chat event")
	}
}
