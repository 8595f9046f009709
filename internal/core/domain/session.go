package domain

type DescriptionKind string

const (
	DescriptionOffer  DescriptionKind = "offer"
	DescriptionAnswer DescriptionKind = "answer"
)

// Description is a session description exchanged during negotiation. The
// relay server never looks inside it.
type Description struct {
	Kind DescriptionKind `json:"type"`
	SDP  string          `json:"sdp"`
}

// Candidate is one connectivity candidate, shaped like the browser's
// RTCIceCandidateInit so web peers interoperate directly.
type Candidate struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

type ConnState string

const (
	ConnNew          ConnState = "new"
	ConnConnecting   ConnState = "connecting"
	ConnConnected    ConnState = "connected"
	ConnDisconnected ConnState = "disconnected"
	ConnFailed       ConnState = "failed"
	ConnClosed       ConnState = "closed"
)

type SessionEventKind string

const (
	SessionLocalCandidate SessionEventKind = "local_candidate"
	SessionRemoteTrack    SessionEventKind = "remote_track"
	SessionStateChange    SessionEventKind = "state_change"
)

// SessionEvent is one item on a negotiation session's event stream. The
// stream is finite per session: it ends when the session closes.
type SessionEvent struct {
	Kind      SessionEventKind
	Candidate *Candidate // set for SessionLocalCandidate
	State     ConnState  // set for SessionStateChange
	TrackKind string     // set for SessionRemoteTrack ("audio"/"video")
}
