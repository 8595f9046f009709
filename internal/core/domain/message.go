package domain

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

type MessageID uuid.UUID

func NewMessageID() MessageID {
	return MessageID(uuid.New())
}

func (id MessageID) String() string {
	return uuid.UUID(id).String()
}

func (id MessageID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *MessageID) UnmarshalText(b []byte) error {
	parsed, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = MessageID(parsed)
	return nil
}

// ChatMessage is one entry in a conversation between two participants.
type ChatMessage struct {
	ID             MessageID     `json:"id"`
	ConversationID string        `json:"conversationId"`
	SenderID       ParticipantID `json:"senderId"`
	ReceiverID     ParticipantID `json:"receiverId"`
	SenderKind     Kind          `json:"senderKind"`
	Text           string        `json:"text"`
	SentAt         time.Time     `json:"sentAt"`
	Read           bool          `json:"read"`
}

func NewChatMessage(sender, receiver ParticipantID, kind Kind, text string) (*ChatMessage, error) {
	if text == "" {
		return nil, errors.New("message text cannot be empty")
	}
	return &ChatMessage{
		ID:             NewMessageID(),
		ConversationID: ConversationKey(sender, receiver),
		SenderID:       sender,
		ReceiverID:     receiver,
		SenderKind:     kind,
		Text:           text,
		SentAt:         time.Now().UTC(),
	}, nil
}

// ConversationKey derives a stable conversation id from the participant pair,
// independent of who writes first.
func ConversationKey(a, b ParticipantID) string {
	ids := []string{a.String(), b.String()}
	sort.Strings(ids)
	return strings.Join(ids, ":")
}

// ConversationMembers recovers the pair from a conversation key.
func ConversationMembers(key string) (ParticipantID, ParticipantID, bool) {
	a, b, ok := strings.Cut(key, ":")
	if !ok || a == "" || b == "" {
		return "", "", false
	}
	return ParticipantID(a), ParticipantID(b), true
}
