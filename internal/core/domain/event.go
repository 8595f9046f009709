package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventType discriminates the wire envelope. One constant per message the
// transport carries.
type EventType string

const (
	EventUserConnect      EventType = "user-connect"
	EventUserStatusChange EventType = "user-status-change"

	EventInitiateCall  EventType = "initiate-call"
	EventIncomingCall  EventType = "incoming-call"
	EventCallInitiated EventType = "call-initiated"
	EventUserOffline   EventType = "user-offline"
	EventUserBusy      EventType = "user-busy"
	EventCallTimeout   EventType = "call-timeout"

	EventCallOffer    EventType = "call-offer"
	EventCallAnswer   EventType = "call-answer"
	EventIceCandidate EventType = "ice-candidate"
	EventCallAccepted EventType = "call-accepted"
	EventCallRejected EventType = "call-rejected"
	EventCallEnded    EventType = "call-ended"

	EventSendMessage      EventType = "send-message"
	EventNewMessage       EventType = "new-message"
	EventGetChatHistory   EventType = "get-chat-history"
	EventChatHistory      EventType = "chat-history"
	EventMarkMessagesRead EventType = "mark-messages-read"
	EventMessagesRead     EventType = "messages-read"

	EventError EventType = "error"
)

var ErrBadEnvelope = errors.New("malformed envelope")

// Envelope is the wire-level message. Payload stays raw until the boundary
// decodes it into the variant matching Type.
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope wraps a typed payload. Marshal failure is a programming error
// for our payload structs, so it is returned rather than swallowed.
func NewEnvelope(t EventType, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", t, err)
	}
	return Envelope{Type: t, Payload: raw}, nil
}

type validatable interface {
	Validate() error
}

// Decode unmarshals the payload into the given variant and validates it.
func (e Envelope) Decode(into any) error {
	if err := json.Unmarshal(e.Payload, into); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBadEnvelope, e.Type, err)
	}
	if v, ok := into.(validatable); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrBadEnvelope, e.Type, err)
		}
	}
	return nil
}

// Routing is the minimal slice of a relayed payload the server reads. The
// rest of the payload is passed through untouched.
type Routing struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (r Routing) Validate() error {
	if r.From == "" || r.To == "" {
		return errors.New("from and to are required")
	}
	return nil
}

type UserConnect struct {
	UserID      string `json:"userId"`
	Kind        Kind   `json:"kind"`
	DisplayName string `json:"displayName,omitempty"`
}

func (p UserConnect) Validate() error {
	if p.UserID == "" {
		return errors.New("userId is required")
	}
	if !p.Kind.Valid() {
		return fmt.Errorf("invalid kind %q", p.Kind)
	}
	return nil
}

type UserStatusChange struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}

type InitiateCall struct {
	From     string `json:"from"`
	FromKind Kind   `json:"fromKind"`
	To       string `json:"to"`
	ToKind   Kind   `json:"toKind"`
}

func (p InitiateCall) Validate() error {
	if p.From == "" || p.To == "" {
		return errors.New("from and to are required")
	}
	if p.From == p.To {
		return errors.New("cannot call yourself")
	}
	return nil
}

type IncomingCall struct {
	From            string `json:"from"`
	FromKind        Kind   `json:"fromKind"`
	FromDisplayName string `json:"fromDisplayName"`
}

type CallInitiated struct {
	To     string `json:"to"`
	ToKind Kind   `json:"toKind"`
}

type UserOffline struct {
	UserID string `json:"userId"`
}

type UserBusy struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type CallTimeout struct {
	CounterpartID string `json:"counterpartId"`
}

// CallOffer and CallAnswer carry the session description as an opaque blob:
// the relay reads only from/to.
type CallOffer struct {
	From  string          `json:"from"`
	To    string          `json:"to"`
	Offer json.RawMessage `json:"offer"`
}

type CallAnswer struct {
	From   string          `json:"from"`
	To     string          `json:"to"`
	Answer json.RawMessage `json:"answer"`
}

type IceCandidate struct {
	From      string          `json:"from"`
	To        string          `json:"to"`
	Candidate json.RawMessage `json:"candidate"`
}

type CallAccepted struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type CallRejected struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason"`
}

type CallEnded struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type SendMessage struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	SenderKind Kind   `json:"senderKind"`
	Text       string `json:"text"`
}

func (p SendMessage) Validate() error {
	if p.SenderID == "" || p.ReceiverID == "" {
		return errors.New("senderId and receiverId are required")
	}
	if p.Text == "" {
		return errors.New("text is required")
	}
	return nil
}

type NewMessage struct {
	ConversationID string      `json:"conversationId"`
	Message        ChatMessage `json:"message"`
}

type GetChatHistory struct {
	ConversationID string `json:"conversationId"`
}

func (p GetChatHistory) Validate() error {
	if p.ConversationID == "" {
		return errors.New("conversationId is required")
	}
	return nil
}

type ChatHistory struct {
	ConversationID string        `json:"conversationId"`
	Messages       []ChatMessage `json:"messages"`
}

type MarkMessagesRead struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

func (p MarkMessagesRead) Validate() error {
	if p.ConversationID == "" || p.UserID == "" {
		return errors.New("conversationId and userId are required")
	}
	return nil
}

type MessagesRead struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

type ErrorNotice struct {
	Message string `json:"message"`
}
