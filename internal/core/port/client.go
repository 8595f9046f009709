package port

import "github.com/veliq/telecall/internal/core/domain"

// Client is one connected participant's transport handle as seen by the
// server. ID identifies the connection, not the participant: a reconnect
// yields a new Client for the same participant.
type Client interface {
	ID() string
	Send(env domain.Envelope) error
	Close() error
}
