package port

import (
	"context"

	"github.com/veliq/telecall/internal/core/domain"
)

// Directory resolves participant identities to display data for the
// incoming-call UI. Returns domain.ErrUnknownParticipant when absent.
type Directory interface {
	Lookup(ctx context.Context, id domain.ParticipantID) (domain.Participant, error)
}
