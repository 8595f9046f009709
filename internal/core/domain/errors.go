package domain

import "errors"

var (
	// ErrTargetOffline means the callee has no presence entry. Surfaced to the
	// initiating side; not retried automatically.
	ErrTargetOffline = errors.New("target participant is offline")

	// ErrBusy means the caller or callee already has an active call record.
	ErrBusy = errors.New("participant already in a call")

	// ErrMediaUnavailable means local camera/microphone acquisition failed.
	ErrMediaUnavailable = errors.New("local media unavailable")

	// ErrNegotiationFailed means the peer connection reached the failed state.
	ErrNegotiationFailed = errors.New("negotiation failed")

	// ErrAlreadyInCall guards a second initiate while a call is in progress.
	ErrAlreadyInCall = errors.New("a call is already in progress")

	// ErrNoPendingCall means accept/reject was requested with nothing ringing.
	ErrNoPendingCall = errors.New("no pending call")

	ErrUnknownParticipant = errors.New("unknown participant")
)
