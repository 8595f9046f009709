package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/veliq/telecall/internal/core/domain"
	"github.com/veliq/telecall/internal/core/port"
)

// Machine is the client-side call state machine: one instance per local
// participant, zero or one call at a time. It turns UI actions and signaling
// events into negotiation session calls, resolving races between the two.
// All handlers serialize on the mutex, so every check-and-transition is one
// step with no suspension in between.
type Machine struct {
	self      domain.Participant
	transport port.ClientTransport
	factory   port.SessionFactory

	mu                sync.Mutex
	phase             domain.CallPhase
	peer              domain.Participant
	session           port.NegotiationSession
	pendingOffer      *domain.Description
	pendingCandidates []domain.Candidate

	notices chan domain.Notice
}

func NewMachine(self domain.Participant, transport port.ClientTransport, factory port.SessionFactory) *Machine {
	return &Machine{
		self:      self,
		transport: transport,
		factory:   factory,
		phase:     domain.PhaseIdle,
		notices:   make(chan domain.Notice, 16),
	}
}

// Run announces presence and pumps signaling events until the transport
// closes or the context is cancelled.
func (m *Machine) Run(ctx context.Context) error {
	if err := m.sendEvent(domain.EventUserConnect, domain.UserConnect{
		UserID:      m.self.ID.String(),
		Kind:        m.self.Kind,
		DisplayName: m.self.DisplayName,
	}); err != nil {
		return fmt.Errorf("announce presence: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-m.transport.Receive():
			if !ok {
				m.teardown()
				return nil
			}
			m.handleEnvelope(ctx, env)
		}
	}
}

// Phase reports the current call phase.
func (m *Machine) Phase() domain.CallPhase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Busy is the UI-level guard: a second initiate while busy is rejected
// locally rather than sent, avoiding redundant signaling traffic.
func (m *Machine) Busy() bool {
	return m.Phase() != domain.PhaseIdle
}

// Peer is the counterpart of the current call, if any.
func (m *Machine) Peer() (domain.Participant, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peer, m.phase != domain.PhaseIdle
}

// Notices surfaces terminal outcomes for the UI. The channel is buffered;
// a slow consumer loses notices rather than stalling signaling.
func (m *Machine) Notices() <-chan domain.Notice {
	return m.notices
}

// InitiateCall acquires media, builds the peer connection, sends the
// initiate request followed by the offer. Media failure while still idle
// never reaches the coordinator; failure after the initiate was sent is
// rolled back with an explicit call-ended.
func (m *Machine) InitiateCall(ctx context.Context, target domain.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != domain.PhaseIdle {
		return domain.ErrAlreadyInCall
	}

	sess, err := m.factory.NewSession(ctx)
	if err != nil {
		m.notify(domain.NoticeFailed, target.ID, "Could not access camera or microphone")
		return fmt.Errorf("initiate: %w", err)
	}
	m.phase = domain.PhaseInitiating
	m.peer = target
	m.adoptSession(sess)

	if err := m.sendEvent(domain.EventInitiateCall, domain.InitiateCall{
		From:     m.self.ID.String(),
		FromKind: m.self.Kind,
		To:       target.ID.String(),
		ToKind:   target.Kind,
	}); err != nil {
		m.teardownLocked()
		return fmt.Errorf("initiate: %w", err)
	}

	offer, err := sess.CreateOffer(ctx)
	if err != nil {
		// The coordinator already holds a ringing record; do not leave it dangling.
		m.sendCallEndedLocked()
		m.teardownLocked()
		m.notify(domain.NoticeFailed, target.ID, "Call setup failed")
		return fmt.Errorf("%w: create offer: %v", domain.ErrNegotiationFailed, err)
	}
	if err := m.sendOffer(target.ID, offer); err != nil {
		m.sendCallEndedLocked()
		m.teardownLocked()
		return fmt.Errorf("send offer: %w", err)
	}
	return nil
}

// AcceptCall answers the ringing call: media is acquired only now, never when
// the offer arrived, so the camera permission prompt waits for user consent.
func (m *Machine) AcceptCall(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != domain.PhaseReceiving {
		return domain.ErrNoPendingCall
	}
	if m.pendingOffer == nil {
		return fmt.Errorf("%w: offer not yet received", domain.ErrNoPendingCall)
	}

	sess, err := m.factory.NewSession(ctx)
	if err != nil {
		// The coordinator holds a ringing record; reject explicitly so it is cleared.
		caller := m.peer.ID
		m.sendEventLogged(domain.EventCallRejected, domain.CallRejected{
			From:   m.self.ID.String(),
			To:     caller.String(),
			Reason: "media-unavailable",
		})
		m.teardownLocked()
		m.notify(domain.NoticeFailed, caller, "Could not access camera or microphone")
		return fmt.Errorf("accept: %w", err)
	}
	m.adoptSession(sess)

	if err := sess.ApplyRemoteDescription(ctx, *m.pendingOffer); err != nil {
		m.sendCallEndedLocked()
		m.teardownLocked()
		m.notify(domain.NoticeFailed, m.peer.ID, "Call setup failed")
		return fmt.Errorf("%w: apply offer: %v", domain.ErrNegotiationFailed, err)
	}
	m.pendingOffer = nil

	for _, c := range m.pendingCandidates {
		sess.AddRemoteCandidate(c)
	}
	m.pendingCandidates = nil

	answer, err := sess.CreateAnswer(ctx)
	if err != nil {
		m.sendCallEndedLocked()
		m.teardownLocked()
		m.notify(domain.NoticeFailed, m.peer.ID, "Call setup failed")
		return fmt.Errorf("%w: create answer: %v", domain.ErrNegotiationFailed, err)
	}
	if err := m.sendAnswer(m.peer.ID, answer); err != nil {
		m.sendCallEndedLocked()
		m.teardownLocked()
		return fmt.Errorf("send answer: %w", err)
	}
	m.sendEventLogged(domain.EventCallAccepted, domain.CallAccepted{
		From: m.self.ID.String(),
		To:   m.peer.ID.String(),
	})
	m.phase = domain.PhaseInCall
	return nil
}

// RejectCall declines the ringing call and clears caller metadata.
func (m *Machine) RejectCall(reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != domain.PhaseReceiving {
		return domain.ErrNoPendingCall
	}
	if reason == "" {
		reason = "declined"
	}
	m.sendEventLogged(domain.EventCallRejected, domain.CallRejected{
		From:   m.self.ID.String(),
		To:     m.peer.ID.String(),
		Reason: reason,
	})
	m.teardownLocked()
	return nil
}

// EndCall tears down the current call, whatever its phase, and notifies the
// coordinator. Local tracks are stopped synchronously before returning, so a
// following InitiateCall never races the device release.
func (m *Machine) EndCall() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase == domain.PhaseIdle {
		return
	}
	m.sendCallEndedLocked()
	m.teardownLocked()
}

func (m *Machine) ToggleAudio() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return false
	}
	return m.session.ToggleAudio()
}

func (m *Machine) ToggleVideo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return false
	}
	return m.session.ToggleVideo()
}

func (m *Machine) handleEnvelope(ctx context.Context, env domain.Envelope) {
	switch env.Type {
	case domain.EventIncomingCall:
		var p domain.IncomingCall
		if err := env.Decode(&p); err != nil {
			log.Error().Err(err).Msg("Bad incoming-call")
			return
		}
		m.onIncomingCall(p)

	case domain.EventCallOffer:
		var p domain.CallOffer
		if err := env.Decode(&p); err != nil {
			log.Error().Err(err).Msg("Bad call-offer")
			return
		}
		m.onOffer(p)

	case domain.EventCallAnswer:
		var p domain.CallAnswer
		if err := env.Decode(&p); err != nil {
			log.Error().Err(err).Msg("Bad call-answer")
			return
		}
		m.onAnswer(ctx, p)

	case domain.EventIceCandidate:
		var p domain.IceCandidate
		if err := env.Decode(&p); err != nil {
			log.Error().Err(err).Msg("Bad ice-candidate")
			return
		}
		m.onCandidate(p)

	case domain.EventCallAccepted:
		log.Debug().Msg("Call accepted by remote party")

	case domain.EventCallRejected:
		var p domain.CallRejected
		if err := env.Decode(&p); err != nil {
			return
		}
		m.onTerminal(domain.NoticeRejected, domain.ParticipantID(p.From), "Call rejected: "+p.Reason)

	case domain.EventCallEnded:
		var p domain.CallEnded
		if err := env.Decode(&p); err != nil {
			return
		}
		m.onTerminal(domain.NoticeEnded, domain.ParticipantID(p.From), "Call ended")

	case domain.EventCallTimeout:
		var p domain.CallTimeout
		if err := env.Decode(&p); err != nil {
			return
		}
		m.onTerminal(domain.NoticeTimeout, domain.ParticipantID(p.CounterpartID), "Call timed out")

	case domain.EventUserOffline:
		var p domain.UserOffline
		if err := env.Decode(&p); err != nil {
			return
		}
		m.onTerminal(domain.NoticeOffline, domain.ParticipantID(p.UserID), "User is offline")

	case domain.EventUserBusy:
		var p domain.UserBusy
		if err := env.Decode(&p); err != nil {
			return
		}
		m.onTerminal(domain.NoticeBusy, domain.ParticipantID(p.To), "User is in another call")

	default:
		// Presence/chat traffic is the surrounding application's concern.
		log.Debug().Str("type", string(env.Type)).Msg("Unhandled signaling event")
	}
}

func (m *Machine) onIncomingCall(p domain.IncomingCall) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != domain.PhaseIdle && m.phase != domain.PhaseReceiving {
		// The coordinator guards busy pairs; anything arriving here is stale.
		log.Warn().Str("from", p.From).Str("phase", string(m.phase)).Msg("Ignoring incoming-call while busy")
		return
	}
	m.phase = domain.PhaseReceiving
	m.peer = domain.Participant{
		ID:          domain.ParticipantID(p.From),
		Kind:        p.FromKind,
		DisplayName: p.FromDisplayName,
	}
	m.notify(domain.NoticeIncoming, m.peer.ID, m.peer.Name()+" is calling")
}

// onOffer buffers the offer until the user accepts. The offer may outrun the
// incoming-call notification (different senders, no cross-sender ordering),
// in which case it also establishes the receiving phase.
func (m *Machine) onOffer(p domain.CallOffer) {
	var desc domain.Description
	if err := json.Unmarshal(p.Offer, &desc); err != nil {
		log.Error().Err(err).Msg("Undecodable offer")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.phase {
	case domain.PhaseIdle:
		m.phase = domain.PhaseReceiving
		m.peer = domain.Participant{ID: domain.ParticipantID(p.From)}
	case domain.PhaseReceiving:
		if m.peer.ID != domain.ParticipantID(p.From) {
			log.Warn().Str("from", p.From).Msg("Offer from unexpected sender")
			return
		}
	default:
		log.Warn().Str("from", p.From).Str("phase", string(m.phase)).Msg("Ignoring offer while busy")
		return
	}
	m.pendingOffer = &desc
}

// onAnswer completes negotiation; the transition to in-call waits for the
// connection-state callback, not the answer itself.
func (m *Machine) onAnswer(ctx context.Context, p domain.CallAnswer) {
	var desc domain.Description
	if err := json.Unmarshal(p.Answer, &desc); err != nil {
		log.Error().Err(err).Msg("Undecodable answer")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != domain.PhaseInitiating || m.session == nil {
		log.Warn().Str("from", p.From).Str("phase", string(m.phase)).Msg("Ignoring unexpected answer")
		return
	}
	if err := m.session.ApplyRemoteDescription(ctx, desc); err != nil {
		log.Error().Err(err).Msg("Failed to apply answer")
		m.sendCallEndedLocked()
		m.teardownLocked()
		m.notify(domain.NoticeFailed, domain.ParticipantID(p.From), "Call setup failed")
	}
}

// onCandidate routes a remote candidate to the session, or buffers it when no
// session exists yet (the candidate relay can outrun the offer relay).
func (m *Machine) onCandidate(p domain.IceCandidate) {
	var cand domain.Candidate
	if err := json.Unmarshal(p.Candidate, &cand); err != nil {
		log.Error().Err(err).Msg("Undecodable candidate")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		m.pendingCandidates = append(m.pendingCandidates, cand)
		return
	}
	m.session.AddRemoteCandidate(cand)
}

// onTerminal handles every remote event that ends the call attempt. The
// coordinator has already cleared its record for all of these, so no
// call-ended is sent back. In the offline/busy cases no media was ever
// acquired and teardown only resets state flags.
func (m *Machine) onTerminal(kind domain.NoticeKind, counterpart domain.ParticipantID, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase == domain.PhaseIdle {
		return
	}
	m.teardownLocked()
	m.notify(kind, counterpart, text)
}

// adoptSession installs the session and starts draining its event stream.
// The pump compares the session pointer so events from a torn-down session
// never leak into a newer call.
func (m *Machine) adoptSession(sess port.NegotiationSession) {
	m.session = sess
	go func() {
		for ev := range sess.Events() {
			m.handleSessionEvent(sess, ev)
		}
	}()
}

func (m *Machine) handleSessionEvent(sess port.NegotiationSession, ev domain.SessionEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != sess {
		return
	}

	switch ev.Kind {
	case domain.SessionLocalCandidate:
		raw, err := json.Marshal(ev.Candidate)
		if err != nil {
			log.Error().Err(err).Msg("Encode local candidate")
			return
		}
		m.sendEventLogged(domain.EventIceCandidate, domain.IceCandidate{
			From:      m.self.ID.String(),
			To:        m.peer.ID.String(),
			Candidate: raw,
		})

	case domain.SessionRemoteTrack:
		log.Debug().Str("kind", ev.TrackKind).Msg("Remote track arrived")

	case domain.SessionStateChange:
		switch ev.State {
		case domain.ConnConnected:
			if m.phase == domain.PhaseInitiating || m.phase == domain.PhaseInCall {
				m.phase = domain.PhaseInCall
				m.notify(domain.NoticeConnected, m.peer.ID, "Call connected")
			}
		case domain.ConnDisconnected:
			m.sendCallEndedLocked()
			peer := m.peer.ID
			m.teardownLocked()
			m.notify(domain.NoticeEnded, peer, "Call disconnected")
		case domain.ConnFailed:
			m.sendCallEndedLocked()
			peer := m.peer.ID
			m.teardownLocked()
			m.notify(domain.NoticeFailed, peer, "Call failed")
		}
	}
}

func (m *Machine) teardown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownLocked()
}

// teardownLocked stops media synchronously and clears every per-call field.
// Track release completes before the mutex is dropped, so the next initiate
// cannot hit a device-busy error.
func (m *Machine) teardownLocked() {
	if m.session != nil {
		if err := m.session.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing session")
		}
		m.session = nil
	}
	m.pendingOffer = nil
	m.pendingCandidates = nil
	m.peer = domain.Participant{}
	m.phase = domain.PhaseIdle
}

func (m *Machine) sendCallEndedLocked() {
	if m.peer.ID == "" {
		return
	}
	m.sendEventLogged(domain.EventCallEnded, domain.CallEnded{
		From: m.self.ID.String(),
		To:   m.peer.ID.String(),
	})
}

func (m *Machine) sendOffer(to domain.ParticipantID, desc domain.Description) error {
	raw, err := json.Marshal(desc)
	if err != nil {
		return err
	}
	return m.sendEvent(domain.EventCallOffer, domain.CallOffer{From: m.self.ID.String(), To: to.String(), Offer: raw})
}

func (m *Machine) sendAnswer(to domain.ParticipantID, desc domain.Description) error {
	raw, err := json.Marshal(desc)
	if err != nil {
		return err
	}
	return m.sendEvent(domain.EventCallAnswer, domain.CallAnswer{From: m.self.ID.String(), To: to.String(), Answer: raw})
}

func (m *Machine) sendEvent(t domain.EventType, payload any) error {
	env, err := domain.NewEnvelope(t, payload)
	if err != nil {
		return err
	}
	return m.transport.Send(env)
}

func (m *Machine) sendEventLogged(t domain.EventType, payload any) {
	if err := m.sendEvent(t, payload); err != nil {
		log.Error().Err(err).Str("type", string(t)).Msg("Error sending signaling event")
	}
}

func (m *Machine) notify(kind domain.NoticeKind, counterpart domain.ParticipantID, text string) {
	select {
	case m.notices <- domain.Notice{Kind: kind, Counterpart: counterpart, Text: text}:
	default:
		log.Warn().Str("kind", string(kind)).Msg("Notice channel full, dropping")
	}
}
