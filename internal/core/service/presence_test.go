package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veliq/telecall/internal/core/domain"
)

func TestRegisterAndLookup(t *testing.T) {
	registry := NewRegistry()
	c := newFakeClient("conn-1")
	registry.Register(domain.Participant{ID: "alice", Kind: domain.KindPatient, DisplayName: "Alice"}, c)

	got, ok := registry.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, "conn-1", got.ID())

	p, ok := registry.Participant("alice")
	require.True(t, ok)
	assert.Equal(t, "Alice", p.DisplayName)

	id, ok := registry.ParticipantForClient(c)
	require.True(t, ok)
	assert.Equal(t, domain.ParticipantID("alice"), id)

	_, ok = registry.Lookup("bob")
	assert.False(t, ok)
}

func TestReRegisterClosesStaleConnection(t *testing.T) {
	registry := NewRegistry()
	stale := newFakeClient("conn-1")
	fresh := newFakeClient("conn-2")
	p := domain.Participant{ID: "alice", Kind: domain.KindPatient}

	registry.Register(p, stale)
	registry.Register(p, fresh)

	assert.True(t, stale.isClosed())
	got, ok := registry.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, "conn-2", got.ID())

	_, ok = registry.ParticipantForClient(stale)
	assert.False(t, ok, "stale connection must be unbound")
}

func TestUnregisterStaleConnectionKeepsFreshEntry(t *testing.T) {
	registry := NewRegistry()
	stale := newFakeClient("conn-1")
	fresh := newFakeClient("conn-2")
	p := domain.Participant{ID: "alice", Kind: domain.KindPatient}

	registry.Register(p, stale)
	registry.Register(p, fresh)

	// The stale connection's deferred disconnect fires after the reconnect.
	_, ok := registry.UnregisterClient(stale)
	assert.False(t, ok)

	_, ok = registry.Lookup("alice")
	assert.True(t, ok, "fresh registration must survive the stale disconnect")
}

func TestUnregisterRemovesEntry(t *testing.T) {
	registry := NewRegistry()
	c := newFakeClient("conn-1")
	registry.Register(domain.Participant{ID: "alice", Kind: domain.KindPatient}, c)

	id, ok := registry.UnregisterClient(c)
	require.True(t, ok)
	assert.Equal(t, domain.ParticipantID("alice"), id)

	_, ok = registry.Lookup("alice")
	assert.False(t, ok)
	assert.Empty(t, registry.Online())
}

func TestStatusChangeBroadcast(t *testing.T) {
	registry := NewRegistry()
	alice := newFakeClient("conn-1")
	registry.Register(domain.Participant{ID: "alice", Kind: domain.KindPatient}, alice)

	bob := newFakeClient("conn-2")
	registry.Register(domain.Participant{ID: "bob", Kind: domain.KindPractitioner}, bob)

	statusFor := func(id string) (domain.UserStatusChange, bool) {
		for _, env := range alice.all(domain.EventUserStatusChange) {
			var status domain.UserStatusChange
			if err := env.Decode(&status); err == nil && status.UserID == id {
				return status, true
			}
		}
		return domain.UserStatusChange{}, false
	}

	status, ok := statusFor("bob")
	require.True(t, ok)
	assert.True(t, status.IsOnline)

	registry.UnregisterClient(bob)
	statuses := alice.all(domain.EventUserStatusChange)
	var last domain.UserStatusChange
	require.NoError(t, statuses[len(statuses)-1].Decode(&last))
	assert.Equal(t, "bob", last.UserID)
	assert.False(t, last.IsOnline)
}

func TestOnlineListsParticipants(t *testing.T) {
	registry := NewRegistry()
	registry.Register(domain.Participant{ID: "alice", Kind: domain.KindPatient}, newFakeClient("conn-1"))
	registry.Register(domain.Participant{ID: "bob", Kind: domain.KindPractitioner}, newFakeClient("conn-2"))

	online := registry.Online()
	ids := make([]domain.ParticipantID, 0, len(online))
	for _, p := range online {
		ids = append(ids, p.ID)
	}
	assert.ElementsMatch(t, []domain.ParticipantID{"alice", "bob"}, ids)
}
