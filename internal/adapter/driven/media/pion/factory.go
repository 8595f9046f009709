package pion

import (
	"context"
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/veliq/telecall/internal/core/domain"
	"github.com/veliq/telecall/internal/core/port"
)

// Factory builds one negotiation session per call: acquire local media, build
// the peer connection, attach the capture tracks.
type Factory struct {
	source MediaSource
	api    *webrtc.API
	config webrtc.Configuration
}

type FactoryOption func(*Factory)

// WithAPI supplies a webrtc API whose media engine matches the capture
// source's codecs. Required when the source produces encoded tracks.
func WithAPI(api *webrtc.API) FactoryOption {
	return func(f *Factory) {
		f.api = api
	}
}

func NewFactory(source MediaSource, stunURLs []string, opts ...FactoryOption) *Factory {
	f := &Factory{source: source}
	if len(stunURLs) > 0 {
		f.config.ICEServers = []webrtc.ICEServer{{URLs: stunURLs}}
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.api == nil {
		m := &webrtc.MediaEngine{}
		if err := m.RegisterDefaultCodecs(); err != nil {
			panic(err)
		}
		f.api = webrtc.NewAPI(webrtc.WithMediaEngine(m))
	}
	return f
}

func (f *Factory) NewSession(ctx context.Context) (port.NegotiationSession, error) {
	media, err := f.source.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMediaUnavailable, err)
	}

	pc, err := f.api.NewPeerConnection(f.config)
	if err != nil {
		media.Stop()
		return nil, fmt.Errorf("new peer connection: %w", err)
	}

	for _, track := range media.Tracks() {
		sender, err := pc.AddTrack(track)
		if err != nil {
			media.Stop()
			pc.Close()
			return nil, fmt.Errorf("add track: %w", err)
		}
		go drainSender(sender)
	}

	return newSession(pc, media), nil
}

// drainSender reads and discards incoming RTCP so interceptors keep running.
func drainSender(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

var _ port.SessionFactory = (*Factory)(nil)
