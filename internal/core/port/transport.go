package port

import "github.com/veliq/telecall/internal/core/domain"

// ClientTransport is the client side of the persistent signaling channel.
// Receive's channel is closed when the connection drops.
type ClientTransport interface {
	Send(env domain.Envelope) error
	Receive() <-chan domain.Envelope
	Close() error
}
