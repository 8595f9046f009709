package memory

import (
	"context"
	"sync"

	"github.com/veliq/telecall/internal/core/domain"
)

// Directory is an in-memory participant directory, seeded from user-connect
// payloads by the transport layer.
type Directory struct {
	mu      sync.Mutex
	entries map[domain.ParticipantID]domain.Participant
}

func NewDirectory() *Directory {
	return &Directory{
		entries: make(map[domain.ParticipantID]domain.Participant),
	}
}

func (d *Directory) Put(p domain.Participant) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[p.ID] = p
}

func (d *Directory) Lookup(ctx context.Context, id domain.ParticipantID) (domain.Participant, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.entries[id]
	if !ok {
		return domain.Participant{}, domain.ErrUnknownParticipant
	}
	return p, nil
}
