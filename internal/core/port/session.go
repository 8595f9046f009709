package port

import (
	"context"

	"github.com/veliq/telecall/internal/core/domain"
)

// NegotiationSession owns one peer-to-peer media session. Implementations
// must buffer remote candidates that arrive before the remote description and
// flush them in arrival order once it is applied.
type NegotiationSession interface {
	// CreateOffer and CreateAnswer set the resulting description as the local
	// description before returning it.
	CreateOffer(ctx context.Context) (domain.Description, error)
	CreateAnswer(ctx context.Context) (domain.Description, error)
	ApplyRemoteDescription(ctx context.Context, desc domain.Description) error
	// AddRemoteCandidate never fails: pre-description candidates are buffered,
	// later apply errors are logged and swallowed.
	AddRemoteCandidate(c domain.Candidate)
	ToggleAudio() bool
	ToggleVideo() bool
	// Events yields session events until Close; the channel is closed on Close.
	Events() <-chan domain.SessionEvent
	// Close stops local tracks and closes the peer connection. Idempotent.
	Close() error
}

// SessionFactory acquires local media and builds a fresh negotiation session
// around it. Media acquisition failure is reported as domain.ErrMediaUnavailable.
type SessionFactory interface {
	NewSession(ctx context.Context) (NegotiationSession, error)
}
