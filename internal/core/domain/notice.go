package domain

type NoticeKind string

const (
	NoticeIncoming  NoticeKind = "incoming"
	NoticeConnected NoticeKind = "connected"
	NoticeEnded     NoticeKind = "ended"
	NoticeRejected  NoticeKind = "rejected"
	NoticeTimeout   NoticeKind = "timeout"
	NoticeOffline   NoticeKind = "offline"
	NoticeBusy      NoticeKind = "busy"
	NoticeFailed    NoticeKind = "failed"
)

// Notice is a terminal, human-readable outcome surfaced to the UI. Every
// failure path produces one, so the UI never sits in "connecting" forever.
type Notice struct {
	Kind        NoticeKind
	Counterpart ParticipantID
	Text        string
}
