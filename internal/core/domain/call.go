package domain

type CallState string

const (
	CallRinging   CallState = "ringing"
	CallConnected CallState = "connected"
)

// ActiveCall is the server-side record of a call being set up or live.
// A participant appears in at most one ActiveCall at any time.
type ActiveCall struct {
	Caller ParticipantID
	Callee ParticipantID
	State  CallState
}

func (c ActiveCall) Involves(id ParticipantID) bool {
	return c.Caller == id || c.Callee == id
}

func (c ActiveCall) Partner(id ParticipantID) (ParticipantID, bool) {
	switch id {
	case c.Caller:
		return c.Callee, true
	case c.Callee:
		return c.Caller, true
	}
	return "", false
}

// CallPhase is the client-side call state machine phase.
type CallPhase string

const (
	PhaseIdle       CallPhase = "idle"
	PhaseInitiating CallPhase = "initiating"
	PhaseReceiving  CallPhase = "receiving"
	PhaseInCall     CallPhase = "in_call"
)
