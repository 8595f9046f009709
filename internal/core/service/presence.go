package service

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/veliq/telecall/internal/core/domain"
	"github.com/veliq/telecall/internal/core/port"
)

type presenceEntry struct {
	participant domain.Participant
	client      port.Client
}

// Registry is the single source of truth for which participants are
// reachable and over which transport. Pure in-memory runtime cache: entries
// live only as long as the process and are rebuilt from client reconnects.
type Registry struct {
	mu       sync.Mutex
	entries  map[domain.ParticipantID]*presenceEntry
	byClient map[string]domain.ParticipantID
}

func NewRegistry() *Registry {
	return &Registry{
		entries:  make(map[domain.ParticipantID]*presenceEntry),
		byClient: make(map[string]domain.ParticipantID),
	}
}

// Register associates the participant with the given transport. Idempotent:
// a re-register after a reconnect-without-clean-disconnect replaces the stale
// entry and closes its transport. Broadcasts the online status change.
func (r *Registry) Register(p domain.Participant, c port.Client) {
	r.mu.Lock()
	if prev, ok := r.entries[p.ID]; ok && prev.client.ID() != c.ID() {
		delete(r.byClient, prev.client.ID())
		if err := prev.client.Close(); err != nil {
			log.Debug().Err(err).Str("participant", p.ID.String()).Msg("closing stale connection")
		}
	}
	r.entries[p.ID] = &presenceEntry{participant: p, client: c}
	r.byClient[c.ID()] = p.ID
	r.mu.Unlock()

	log.Info().Str("participant", p.ID.String()).Str("kind", string(p.Kind)).Msg("Participant online")
	r.broadcastStatus(p.ID, true)
}

func (r *Registry) Lookup(id domain.ParticipantID) (port.Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return e.client, true
}

func (r *Registry) Participant(id domain.ParticipantID) (domain.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return domain.Participant{}, false
	}
	return e.participant, true
}

// ParticipantForClient resolves the participant bound to a connection.
func (r *Registry) ParticipantForClient(c port.Client) (domain.ParticipantID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byClient[c.ID()]
	return id, ok
}

// UnregisterClient removes the entry owning the given transport. Keyed by
// connection, not participant id: disconnect events only carry the transport,
// and a stale connection must not evict a fresh re-registration.
func (r *Registry) UnregisterClient(c port.Client) (domain.ParticipantID, bool) {
	r.mu.Lock()
	id, ok := r.byClient[c.ID()]
	if !ok {
		r.mu.Unlock()
		return "", false
	}
	delete(r.byClient, c.ID())
	if e, ok := r.entries[id]; ok && e.client.ID() == c.ID() {
		delete(r.entries, id)
	}
	r.mu.Unlock()

	log.Info().Str("participant", id.String()).Msg("Participant offline")
	r.broadcastStatus(id, false)
	return id, true
}

// Broadcast sends the envelope to every connected participant. Send failures
// are logged only; the failing connection's own read loop handles cleanup.
func (r *Registry) Broadcast(env domain.Envelope) {
	r.mu.Lock()
	clients := make([]port.Client, 0, len(r.entries))
	for _, e := range r.entries {
		clients = append(clients, e.client)
	}
	r.mu.Unlock()

	for _, c := range clients {
		if err := c.Send(env); err != nil {
			log.Error().Err(err).Str("client_id", c.ID()).Msg("Error broadcasting")
		}
	}
}

// Online lists currently reachable participants.
func (r *Registry) Online() []domain.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Participant, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.participant)
	}
	return out
}

func (r *Registry) broadcastStatus(id domain.ParticipantID, online bool) {
	env, err := domain.NewEnvelope(domain.EventUserStatusChange, domain.UserStatusChange{
		UserID:   id.String(),
		IsOnline: online,
	})
	if err != nil {
		log.Error().Err(err).Msg("encode status change")
		return
	}
	r.Broadcast(env)
}
