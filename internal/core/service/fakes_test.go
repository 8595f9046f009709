package service

import (
	"context"
	"sync"

	"github.com/veliq/telecall/internal/core/domain"
)

// fakeClient records every envelope the server pushes at a connection.
type fakeClient struct {
	id string

	mu      sync.Mutex
	sent    []domain.Envelope
	closed  bool
	sendErr error
}

func newFakeClient(id string) *fakeClient {
	return &fakeClient{id: id}
}

func (c *fakeClient) ID() string { return c.id }

func (c *fakeClient) Send(env domain.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, env)
	return nil
}

func (c *fakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeClient) received(t domain.EventType) (domain.Envelope, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, env := range c.sent {
		if env.Type == t {
			return env, true
		}
	}
	return domain.Envelope{}, false
}

func (c *fakeClient) all(t domain.EventType) []domain.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.Envelope
	for _, env := range c.sent {
		if env.Type == t {
			out = append(out, env)
		}
	}
	return out
}

func (c *fakeClient) count(t domain.EventType) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, env := range c.sent {
		if env.Type == t {
			n++
		}
	}
	return n
}

// fakeDirectory serves display data for seeded participants only.
type fakeDirectory struct {
	mu      sync.Mutex
	entries map[domain.ParticipantID]domain.Participant
}

func newFakeDirectory(seed ...domain.Participant) *fakeDirectory {
	d := &fakeDirectory{entries: make(map[domain.ParticipantID]domain.Participant)}
	for _, p := range seed {
		d.entries[p.ID] = p
	}
	return d
}

func (d *fakeDirectory) Lookup(ctx context.Context, id domain.ParticipantID) (domain.Participant, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.entries[id]
	if !ok {
		return domain.Participant{}, domain.ErrUnknownParticipant
	}
	return p, nil
}
