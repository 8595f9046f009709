package pion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/veliq/telecall/internal/core/domain"
)

// Session implements port.NegotiationSession over one pion peer connection.
// Remote candidates arriving before the remote description are buffered and
// flushed in arrival order once it is applied.
type Session struct {
	pc    *webrtc.PeerConnection
	media Media

	mu        sync.Mutex
	remoteSet bool
	pending   []webrtc.ICECandidateInit
	closed    bool

	events chan domain.SessionEvent
	done   chan struct{}
}

func newSession(pc *webrtc.PeerConnection, media Media) *Session {
	s := &Session{
		pc:     pc,
		media:  media,
		events: make(chan domain.SessionEvent, 32),
		done:   make(chan struct{}),
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		s.emit(domain.SessionEvent{
			Kind:      domain.SessionLocalCandidate,
			Candidate: candidateToDomain(init),
		})
	})

	pc.OnTrack(func(remote *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		log.Debug().Str("kind", remote.Kind().String()).Msg("Received remote track")
		s.emit(domain.SessionEvent{
			Kind:      domain.SessionRemoteTrack,
			TrackKind: remote.Kind().String(),
		})
		go s.drainTrack(remote)
		if remote.Kind() == webrtc.RTPCodecTypeVideo {
			go s.keyframeLoop(remote)
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.emit(domain.SessionEvent{
			Kind:  domain.SessionStateChange,
			State: connStateToDomain(state),
		})
	})

	return s
}

func (s *Session) Events() <-chan domain.SessionEvent {
	return s.events
}

// CreateOffer sets the offer as the local description before returning it, so
// the connection's state and the value handed to signaling never diverge.
func (s *Session) CreateOffer(ctx context.Context) (domain.Description, error) {
	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return domain.Description{}, fmt.Errorf("create offer: %w", err)
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		return domain.Description{}, fmt.Errorf("set local offer: %w", err)
	}
	return domain.Description{Kind: domain.DescriptionOffer, SDP: offer.SDP}, nil
}

func (s *Session) CreateAnswer(ctx context.Context) (domain.Description, error) {
	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return domain.Description{}, fmt.Errorf("create answer: %w", err)
	}
	if err := s.pc.SetLocalDescription(answer); err != nil {
		return domain.Description{}, fmt.Errorf("set local answer: %w", err)
	}
	return domain.Description{Kind: domain.DescriptionAnswer, SDP: answer.SDP}, nil
}

// ApplyRemoteDescription installs the remote description and flushes any
// buffered candidates in arrival order. Description errors propagate;
// candidate errors are logged and swallowed.
func (s *Session) ApplyRemoteDescription(ctx context.Context, desc domain.Description) error {
	sdpType := webrtc.SDPTypeOffer
	if desc.Kind == domain.DescriptionAnswer {
		sdpType = webrtc.SDPTypeAnswer
	}
	if err := s.pc.SetRemoteDescription(webrtc.SessionDescription{Type: sdpType, SDP: desc.SDP}); err != nil {
		return fmt.Errorf("set remote %s: %w", desc.Kind, err)
	}

	s.mu.Lock()
	s.remoteSet = true
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, c := range pending {
		if err := s.pc.AddICECandidate(c); err != nil {
			log.Warn().Err(err).Msg("Buffered candidate not applied")
		}
	}
	return nil
}

// AddRemoteCandidate buffers until the remote description exists. Transient
// candidate failures are expected and non-fatal, so apply errors are only
// logged.
func (s *Session) AddRemoteCandidate(c domain.Candidate) {
	init := candidateFromDomain(c)

	s.mu.Lock()
	if !s.remoteSet {
		s.pending = append(s.pending, init)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if err := s.pc.AddICECandidate(init); err != nil {
		log.Warn().Err(err).Msg("Candidate not applied")
	}
}

func (s *Session) ToggleAudio() bool {
	return s.media.ToggleAudio()
}

func (s *Session) ToggleVideo() bool {
	return s.media.ToggleVideo()
}

// Close stops every local track, closes the peer connection and ends the
// event stream. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
	s.media.Stop()
	err := s.pc.Close()
	close(s.events)
	return err
}

// emit drops events once closed so late pion callbacks cannot hit a closed
// channel, and drops on a full buffer so a stalled consumer cannot wedge the
// peer connection's callback goroutines.
func (s *Session) emit(ev domain.SessionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	default:
		log.Warn().Str("kind", string(ev.Kind)).Msg("Session event buffer full, dropping")
	}
}

// drainTrack keeps RTP flowing for a remote track we do not render here;
// rendering is the embedding application's concern.
func (s *Session) drainTrack(remote *webrtc.TrackRemote) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := remote.Read(buf); err != nil {
			return
		}
	}
}

// keyframeLoop requests a keyframe immediately and then every 3 seconds, so
// the remote video recovers quickly from loss.
func (s *Session) keyframeLoop(remote *webrtc.TrackRemote) {
	sendPLI := func() {
		err := s.pc.WriteRTCP([]rtcp.Packet{
			&rtcp.PictureLossIndication{MediaSSRC: uint32(remote.SSRC())},
		})
		if err != nil {
			// Benign on a closed connection.
			return
		}
	}

	sendPLI()

	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			sendPLI()
		}
	}
}

func candidateToDomain(init webrtc.ICECandidateInit) *domain.Candidate {
	return &domain.Candidate{
		Candidate:        init.Candidate,
		SDPMid:           init.SDPMid,
		SDPMLineIndex:    init.SDPMLineIndex,
		UsernameFragment: init.UsernameFragment,
	}
}

func candidateFromDomain(c domain.Candidate) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}

func connStateToDomain(state webrtc.PeerConnectionState) domain.ConnState {
	switch state {
	case webrtc.PeerConnectionStateConnecting:
		return domain.ConnConnecting
	case webrtc.PeerConnectionStateConnected:
		return domain.ConnConnected
	case webrtc.PeerConnectionStateDisconnected:
		return domain.ConnDisconnected
	case webrtc.PeerConnectionStateFailed:
		return domain.ConnFailed
	case webrtc.PeerConnectionStateClosed:
		return domain.ConnClosed
	default:
		return domain.ConnNew
	}
}
