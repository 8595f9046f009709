package pion

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// Media is an acquired set of local capture tracks. Toggle methods flip the
// published enabled state without renegotiation and return the new state.
type Media interface {
	Tracks() []webrtc.TrackLocal
	ToggleAudio() bool
	ToggleVideo() bool
	Stop()
}

// MediaSource acquires camera and microphone capture. Acquisition can block
// arbitrarily long behind a permission prompt, hence the context.
type MediaSource interface {
	Acquire(ctx context.Context) (Media, error)
}
