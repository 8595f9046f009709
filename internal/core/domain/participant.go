package domain

// ParticipantID identifies one patient or practitioner for the lifetime of
// their session. Issued by the auth layer, opaque to this core.
type ParticipantID string

func (id ParticipantID) String() string {
	return string(id)
}

type Kind string

const (
	KindPatient      Kind = "patient"
	KindPractitioner Kind = "doctor"
)

func (k Kind) Valid() bool {
	return k == KindPatient || k == KindPractitioner
}

// FallbackName is the display name used when the directory has no entry.
func (k Kind) FallbackName() string {
	if k == KindPractitioner {
		return "Doctor"
	}
	return "Patient"
}

type Participant struct {
	ID          ParticipantID
	Kind        Kind
	DisplayName string
}

func (p Participant) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Kind.FallbackName()
}
