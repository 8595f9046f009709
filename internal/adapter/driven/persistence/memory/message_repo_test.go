package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veliq/telecall/internal/core/domain"
)

func mustMessage(t *testing.T, sender, receiver domain.ParticipantID, text string) domain.ChatMessage {
	t.Helper()
	msg, err := domain.NewChatMessage(sender, receiver, domain.KindPatient, text)
	require.NoError(t, err)
	return *msg
}

func TestAppendAndHistory(t *testing.T) {
	repo := NewMessageRepository()
	ctx := context.Background()

	first := mustMessage(t, "alice", "bob", "first")
	second := mustMessage(t, "bob", "alice", "second")
	require.NoError(t, repo.Append(ctx, first))
	require.NoError(t, repo.Append(ctx, second))

	msgs, err := repo.History(ctx, first.ConversationID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Text)
	assert.Equal(t, "second", msgs[1].Text)

	empty, err := repo.History(ctx, "nobody:nowhere")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestHistoryReturnsCopy(t *testing.T) {
	repo := NewMessageRepository()
	ctx := context.Background()
	msg := mustMessage(t, "alice", "bob", "original")
	require.NoError(t, repo.Append(ctx, msg))

	msgs, err := repo.History(ctx, msg.ConversationID)
	require.NoError(t, err)
	msgs[0].Text = "mutated"

	again, err := repo.History(ctx, msg.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "original", again[0].Text)
}

func TestMarkReadFlagsOnlyReaderMessages(t *testing.T) {
	repo := NewMessageRepository()
	ctx := context.Background()

	toAlice := mustMessage(t, "bob", "alice", "for alice")
	toBob := mustMessage(t, "alice", "bob", "for bob")
	require.NoError(t, repo.Append(ctx, toAlice))
	require.NoError(t, repo.Append(ctx, toBob))

	require.NoError(t, repo.MarkRead(ctx, toAlice.ConversationID, "alice"))

	msgs, err := repo.History(ctx, toAlice.ConversationID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	for _, m := range msgs {
		if m.ReceiverID == "alice" {
			assert.True(t, m.Read)
		} else {
			assert.False(t, m.Read, "the reader's own outgoing messages stay unread")
		}
	}
}
