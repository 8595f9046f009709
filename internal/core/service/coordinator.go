package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/veliq/telecall/internal/core/domain"
	"github.com/veliq/telecall/internal/core/port"
)

// DefaultSetupTimeout bounds how long a callee can leave a caller ringing.
const DefaultSetupTimeout = 30 * time.Second

type activeCall struct {
	caller domain.ParticipantID
	callee domain.ParticipantID
	state  domain.CallState
	timer  *time.Timer
}

// Coordinator tracks which participant pairs are in a call, enforces
// one-call-per-participant, relays signaling payloads as an opaque pipe, and
// enforces the call-setup timeout. Admission is a single check-and-set under
// the mutex, so two near-simultaneous initiations cannot both pass.
type Coordinator struct {
	registry     *Registry
	directory    port.Directory
	setupTimeout time.Duration

	mu    sync.Mutex
	calls map[domain.ParticipantID]*activeCall
}

func NewCoordinator(registry *Registry, directory port.Directory, setupTimeout time.Duration) *Coordinator {
	if setupTimeout <= 0 {
		setupTimeout = DefaultSetupTimeout
	}
	return &Coordinator{
		registry:     registry,
		directory:    directory,
		setupTimeout: setupTimeout,
		calls:        make(map[domain.ParticipantID]*activeCall),
	}
}

// Initiate admits a new call. The caller is told user-offline or user-busy on
// failure; on success the callee gets incoming-call, the caller gets the
// call-initiated ack, and the setup timer is armed.
func (c *Coordinator) Initiate(ctx context.Context, req domain.InitiateCall) error {
	from := domain.ParticipantID(req.From)
	to := domain.ParticipantID(req.To)

	target, ok := c.registry.Lookup(to)
	if !ok {
		log.Info().Str("from", req.From).Str("to", req.To).Msg("Call target offline")
		c.sendTo(from, domain.EventUserOffline, domain.UserOffline{UserID: req.To})
		return domain.ErrTargetOffline
	}

	c.mu.Lock()
	if _, busy := c.calls[from]; busy {
		c.mu.Unlock()
		c.sendTo(from, domain.EventUserBusy, domain.UserBusy{From: req.From, To: req.To})
		return domain.ErrBusy
	}
	if _, busy := c.calls[to]; busy {
		c.mu.Unlock()
		log.Info().Str("from", req.From).Str("to", req.To).Msg("Call target busy")
		c.sendTo(from, domain.EventUserBusy, domain.UserBusy{From: req.From, To: req.To})
		return domain.ErrBusy
	}

	call := &activeCall{caller: from, callee: to, state: domain.CallRinging}
	call.timer = time.AfterFunc(c.setupTimeout, func() { c.expire(from, to) })
	c.calls[from] = call
	c.calls[to] = call
	c.mu.Unlock()

	log.Info().Str("from", req.From).Str("to", req.To).Msg("Call admitted")

	caller := domain.Participant{ID: from, Kind: req.FromKind}
	if p, err := c.directory.Lookup(ctx, from); err == nil {
		caller = p
	}
	if err := c.send(target, domain.EventIncomingCall, domain.IncomingCall{
		From:            req.From,
		FromKind:        req.FromKind,
		FromDisplayName: caller.Name(),
	}); err != nil {
		log.Error().Err(err).Str("to", req.To).Msg("Failed to deliver incoming-call")
	}
	c.sendTo(from, domain.EventCallInitiated, domain.CallInitiated{To: req.To, ToKind: req.ToKind})
	return nil
}

// expire fires when the setup timer lapses. Only a call still ringing for the
// same pair is torn down; accept, reject and end all disarm the timer first,
// but the timer goroutine may already be waiting on the mutex when they do.
func (c *Coordinator) expire(caller, callee domain.ParticipantID) {
	c.mu.Lock()
	call, ok := c.calls[caller]
	if !ok || call.state != domain.CallRinging || call.callee != callee {
		c.mu.Unlock()
		return
	}
	delete(c.calls, caller)
	delete(c.calls, callee)
	c.mu.Unlock()

	log.Info().Str("caller", caller.String()).Str("callee", callee.String()).Msg("Call setup timed out")
	c.sendTo(caller, domain.EventCallTimeout, domain.CallTimeout{CounterpartID: callee.String()})
	c.sendTo(callee, domain.EventCallTimeout, domain.CallTimeout{CounterpartID: caller.String()})
}

// Relay forwards a signaling envelope to its recipient without interpreting
// the payload. An absent recipient is reported to the sender, never dropped
// silently. No retries: that is the client's concern.
func (c *Coordinator) Relay(env domain.Envelope, from, to domain.ParticipantID) error {
	target, ok := c.registry.Lookup(to)
	if !ok {
		log.Warn().Str("type", string(env.Type)).Str("to", to.String()).Msg("Relay target offline")
		c.sendTo(from, domain.EventUserOffline, domain.UserOffline{UserID: to.String()})
		return domain.ErrTargetOffline
	}
	return target.Send(env)
}

// Accept transitions the ringing call to connected and relays the acceptance
// to the caller. No timer beyond this point: liveness is the media layer's
// concern.
func (c *Coordinator) Accept(callee, caller domain.ParticipantID) error {
	c.mu.Lock()
	call, ok := c.calls[callee]
	if !ok || call.callee != callee || call.caller != caller {
		c.mu.Unlock()
		return domain.ErrNoPendingCall
	}
	call.state = domain.CallConnected
	call.timer.Stop()
	c.mu.Unlock()

	log.Info().Str("caller", caller.String()).Str("callee", callee.String()).Msg("Call accepted")
	c.sendTo(caller, domain.EventCallAccepted, domain.CallAccepted{From: callee.String(), To: caller.String()})
	return nil
}

// Reject deletes the record and passes the reason through unchanged.
func (c *Coordinator) Reject(callee, caller domain.ParticipantID, reason string) error {
	if !c.clear(callee) {
		return domain.ErrNoPendingCall
	}
	log.Info().Str("caller", caller.String()).Str("callee", callee.String()).Str("reason", reason).Msg("Call rejected")
	c.sendTo(caller, domain.EventCallRejected, domain.CallRejected{
		From:   callee.String(),
		To:     caller.String(),
		Reason: reason,
	})
	return nil
}

// End deletes the record regardless of state and notifies the other party.
func (c *Coordinator) End(from, to domain.ParticipantID) error {
	c.clear(from)
	log.Info().Str("from", from.String()).Str("to", to.String()).Msg("Call ended")
	c.sendTo(to, domain.EventCallEnded, domain.CallEnded{From: from.String(), To: to.String()})
	return nil
}

// HandleDisconnect synthesizes an end on behalf of a participant whose
// transport dropped, so the partner never sits in phantom in-call state.
func (c *Coordinator) HandleDisconnect(id domain.ParticipantID) {
	c.mu.Lock()
	call, ok := c.calls[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	partner, _ := domain.ActiveCall{Caller: call.caller, Callee: call.callee}.Partner(id)
	call.timer.Stop()
	delete(c.calls, call.caller)
	delete(c.calls, call.callee)
	c.mu.Unlock()

	log.Info().Str("participant", id.String()).Str("partner", partner.String()).Msg("Call ended by disconnect")
	c.sendTo(partner, domain.EventCallEnded, domain.CallEnded{From: id.String(), To: partner.String()})
}

// InCall reports whether the participant has an active call record.
func (c *Coordinator) InCall(id domain.ParticipantID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.calls[id]
	return ok
}

// ActiveCalls lists the distinct call records currently held.
func (c *Coordinator) ActiveCalls() []domain.ActiveCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	seen := make(map[*activeCall]bool, len(c.calls))
	out := make([]domain.ActiveCall, 0, len(c.calls)/2)
	for _, call := range c.calls {
		if seen[call] {
			continue
		}
		seen[call] = true
		out = append(out, domain.ActiveCall{Caller: call.caller, Callee: call.callee, State: call.state})
	}
	return out
}

func (c *Coordinator) clear(id domain.ParticipantID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	call, ok := c.calls[id]
	if !ok {
		return false
	}
	call.timer.Stop()
	delete(c.calls, call.caller)
	delete(c.calls, call.callee)
	return true
}

func (c *Coordinator) send(client port.Client, t domain.EventType, payload any) error {
	env, err := domain.NewEnvelope(t, payload)
	if err != nil {
		return err
	}
	return client.Send(env)
}

// sendTo delivers to a participant if present. Used for coordinator-originated
// notifications where an offline recipient simply no longer cares.
func (c *Coordinator) sendTo(id domain.ParticipantID, t domain.EventType, payload any) {
	client, ok := c.registry.Lookup(id)
	if !ok {
		return
	}
	if err := c.send(client, t, payload); err != nil {
		log.Error().Err(err).Str("participant", id.String()).Str("type", string(t)).Msg("Error sending notification")
	}
}
