package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veliq/telecall/internal/adapter/driven/persistence/memory"
	"github.com/veliq/telecall/internal/core/domain"
)

func newTestChat(t *testing.T) (*ChatService, *Registry, *memory.MessageRepository) {
	t.Helper()
	repo := memory.NewMessageRepository()
	registry := NewRegistry()
	return NewChatService(repo, registry), registry, repo
}

func TestSendMessagePersistsAndDeliversToBoth(t *testing.T) {
	chat, registry, repo := newTestChat(t)
	alice := register(registry, "alice", domain.KindPatient)
	bob := register(registry, "bob", domain.KindPractitioner)

	require.NoError(t, chat.SendMessage(context.Background(), domain.SendMessage{
		SenderID:   "alice",
		ReceiverID: "bob",
		SenderKind: domain.KindPatient,
		Text:       "hello",
	}))

	key := domain.ConversationKey("alice", "bob")
	msgs, err := repo.History(context.Background(), key)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Text)

	for _, client := range []*fakeClient{alice, bob} {
		env, ok := client.received(domain.EventNewMessage)
		require.True(t, ok)
		var payload domain.NewMessage
		require.NoError(t, env.Decode(&payload))
		assert.Equal(t, key, payload.ConversationID)
		assert.Equal(t, "hello", payload.Message.Text)
	}
}

func TestSendMessageToOfflineReceiverStillPersists(t *testing.T) {
	chat, registry, repo := newTestChat(t)
	register(registry, "alice", domain.KindPatient)

	require.NoError(t, chat.SendMessage(context.Background(), domain.SendMessage{
		SenderID:   "alice",
		ReceiverID: "bob",
		SenderKind: domain.KindPatient,
		Text:       "see you at 3pm",
	}))

	msgs, err := repo.History(context.Background(), domain.ConversationKey("alice", "bob"))
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestHistoryDeliversToRequester(t *testing.T) {
	chat, registry, _ := newTestChat(t)
	alice := register(registry, "alice", domain.KindPatient)
	register(registry, "bob", domain.KindPractitioner)

	require.NoError(t, chat.SendMessage(context.Background(), domain.SendMessage{
		SenderID:   "bob",
		ReceiverID: "alice",
		SenderKind: domain.KindPractitioner,
		Text:       "first",
	}))

	key := domain.ConversationKey("alice", "bob")
	require.NoError(t, chat.History(context.Background(), "alice", key))

	env, ok := alice.received(domain.EventChatHistory)
	require.True(t, ok)
	var payload domain.ChatHistory
	require.NoError(t, env.Decode(&payload))
	require.Len(t, payload.Messages, 1)
	assert.Equal(t, "first", payload.Messages[0].Text)
}

func TestMarkReadNotifiesBothMembers(t *testing.T) {
	chat, registry, repo := newTestChat(t)
	alice := register(registry, "alice", domain.KindPatient)
	bob := register(registry, "bob", domain.KindPractitioner)

	require.NoError(t, chat.SendMessage(context.Background(), domain.SendMessage{
		SenderID:   "bob",
		ReceiverID: "alice",
		SenderKind: domain.KindPractitioner,
		Text:       "hello",
	}))

	key := domain.ConversationKey("alice", "bob")
	require.NoError(t, chat.MarkRead(context.Background(), domain.MarkMessagesRead{
		ConversationID: key,
		UserID:         "alice",
	}))

	msgs, err := repo.History(context.Background(), key)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].Read)

	for _, client := range []*fakeClient{alice, bob} {
		env, ok := client.received(domain.EventMessagesRead)
		require.True(t, ok)
		var payload domain.MessagesRead
		require.NoError(t, env.Decode(&payload))
		assert.Equal(t, "alice", payload.UserID)
	}
}
