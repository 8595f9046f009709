package devices

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/camera"     // registers the camera driver
	_ "github.com/pion/mediadevices/pkg/driver/microphone" // registers the microphone driver
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	pionadapter "github.com/veliq/telecall/internal/adapter/driven/media/pion"
)

// Source captures camera and microphone through pion/mediadevices. The codec
// selector and the webrtc API must share one media engine, so the Source owns
// both.
type Source struct {
	selector *mediadevices.CodecSelector
	api      *webrtc.API
}

func NewSource() (*Source, error) {
	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("vp8 params: %w", err)
	}
	vpxParams.BitRate = 500_000

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, fmt.Errorf("opus params: %w", err)
	}

	selector := mediadevices.NewCodecSelector(
		mediadevices.WithVideoEncoders(&vpxParams),
		mediadevices.WithAudioEncoders(&opusParams),
	)

	engine := webrtc.MediaEngine{}
	selector.Populate(&engine)

	return &Source{
		selector: selector,
		api:      webrtc.NewAPI(webrtc.WithMediaEngine(&engine)),
	}, nil
}

// API returns the webrtc API whose media engine matches the capture codecs.
// Peer connections carrying this source's tracks must be built from it.
func (s *Source) API() *webrtc.API {
	return s.api
}

func (s *Source) Acquire(ctx context.Context) (pionadapter.Media, error) {
	stream, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Video: func(c *mediadevices.MediaTrackConstraints) {
			c.Width = prop.Int(640)
			c.Height = prop.Int(480)
			c.FrameRate = prop.Float(30)
		},
		Audio: func(c *mediadevices.MediaTrackConstraints) {
			c.SampleRate = prop.Int(48000)
			c.ChannelCount = prop.Int(1)
		},
		Codec: s.selector,
	})
	if err != nil {
		return nil, fmt.Errorf("get user media: %w", err)
	}
	return &capture{stream: stream, audioOn: true, videoOn: true}, nil
}

// capture adapts one mediadevices stream. mediadevices has no per-track
// enabled flag, so toggles track the published state for the UI; actual
// muting happens at the application layer rendering these flags.
type capture struct {
	stream mediadevices.MediaStream

	mu      sync.Mutex
	audioOn bool
	videoOn bool
	stopped bool
}

func (c *capture) Tracks() []webrtc.TrackLocal {
	tracks := c.stream.GetTracks()
	out := make([]webrtc.TrackLocal, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, t)
	}
	return out
}

func (c *capture) ToggleAudio() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.audioOn = !c.audioOn
	return c.audioOn
}

func (c *capture) ToggleVideo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.videoOn = !c.videoOn
	return c.videoOn
}

// Stop closes every capture track, releasing the camera and microphone.
// Idempotent: a second stop is a no-op.
func (c *capture) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.mu.Unlock()

	for _, t := range c.stream.GetTracks() {
		if err := t.Close(); err != nil {
			log.Debug().Err(err).Msg("Closing capture track")
		}
	}
}
