package http

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/veliq/telecall/internal/core/domain"
)

// DirectoryRecorder lets the connection handler seed the participant
// directory from user-connect payloads.
type DirectoryRecorder interface {
	Put(p domain.Participant)
}

// WSClient implements port.Client over one websocket connection. The id is
// per-connection, so a participant reconnecting gets a distinct handle and
// the registry can tell stale connections from fresh ones.
type WSClient struct {
	id      string
	conn    *websocket.Conn
	writeMu sync.Mutex
	once    sync.Once
}

func (c *WSClient) ID() string {
	return c.id
}

func (c *WSClient) Send(env domain.Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(env)
}

func (c *WSClient) Close() error {
	var err error
	c.once.Do(func() { err = c.conn.Close() })
	return err
}

func (h *Handler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if h.allowedOrigins == nil {
				return true
			}
			return h.allowedOrigins[r.Header.Get("Origin")]
		},
	}
}

// ServeWS upgrades the connection and pumps signaling events until the peer
// disconnects. Disconnect tears down presence first, then any active call the
// participant was in.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	up := h.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Error while upgrading ws")
		return
	}

	client := &WSClient{
		id:   uuid.NewString(),
		conn: conn,
	}

	l := log.With().Str("conn_id", client.id).Logger()
	l.Info().Msg("New connection")

	defer func() {
		if pid, ok := h.Presence.UnregisterClient(client); ok {
			h.Coordinator.HandleDisconnect(pid)
		}
		client.Close()
		l.Info().Msg("Connection closed")
	}()

	for {
		var env domain.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				l.Error().Err(err).Msg("Unexpected close error")
			}
			return
		}
		h.dispatch(r.Context(), l, client, env)
	}
}

// dispatch decodes and validates the envelope at the boundary, then routes it
// to the owning service. Relayed negotiation payloads are forwarded untouched.
func (h *Handler) dispatch(ctx context.Context, l zerolog.Logger, client *WSClient, env domain.Envelope) {
	switch env.Type {
	case domain.EventUserConnect:
		var p domain.UserConnect
		if err := env.Decode(&p); err != nil {
			h.reject(l, client, err)
			return
		}
		participant := domain.Participant{
			ID:          domain.ParticipantID(p.UserID),
			Kind:        p.Kind,
			DisplayName: p.DisplayName,
		}
		if h.Directory != nil {
			h.Directory.Put(participant)
		}
		h.Presence.Register(participant, client)

	case domain.EventInitiateCall:
		var p domain.InitiateCall
		if err := env.Decode(&p); err != nil {
			h.reject(l, client, err)
			return
		}
		if err := h.Coordinator.Initiate(ctx, p); err != nil {
			l.Info().Err(err).Str("from", p.From).Str("to", p.To).Msg("Call not admitted")
		}

	case domain.EventCallOffer, domain.EventCallAnswer, domain.EventIceCandidate:
		var route domain.Routing
		if err := env.Decode(&route); err != nil {
			h.reject(l, client, err)
			return
		}
		if err := h.Coordinator.Relay(env, domain.ParticipantID(route.From), domain.ParticipantID(route.To)); err != nil {
			l.Warn().Err(err).Str("type", string(env.Type)).Msg("Relay failed")
		}

	case domain.EventCallAccepted:
		var p domain.CallAccepted
		if err := env.Decode(&p); err != nil {
			h.reject(l, client, err)
			return
		}
		if err := h.Coordinator.Accept(domain.ParticipantID(p.From), domain.ParticipantID(p.To)); err != nil {
			l.Warn().Err(err).Msg("Accept with no pending call")
		}

	case domain.EventCallRejected:
		var p domain.CallRejected
		if err := env.Decode(&p); err != nil {
			h.reject(l, client, err)
			return
		}
		if err := h.Coordinator.Reject(domain.ParticipantID(p.From), domain.ParticipantID(p.To), p.Reason); err != nil {
			l.Warn().Err(err).Msg("Reject with no pending call")
		}

	case domain.EventCallEnded:
		var p domain.CallEnded
		if err := env.Decode(&p); err != nil {
			h.reject(l, client, err)
			return
		}
		_ = h.Coordinator.End(domain.ParticipantID(p.From), domain.ParticipantID(p.To))

	case domain.EventSendMessage:
		var p domain.SendMessage
		if err := env.Decode(&p); err != nil {
			h.reject(l, client, err)
			return
		}
		if err := h.Chat.SendMessage(ctx, p); err != nil {
			l.Error().Err(err).Msg("Failed to send message")
			h.reject(l, client, err)
		}

	case domain.EventGetChatHistory:
		var p domain.GetChatHistory
		if err := env.Decode(&p); err != nil {
			h.reject(l, client, err)
			return
		}
		if pid, ok := h.Presence.ParticipantForClient(client); ok {
			if err := h.Chat.History(ctx, pid, p.ConversationID); err != nil {
				l.Error().Err(err).Msg("Failed to fetch history")
			}
		}

	case domain.EventMarkMessagesRead:
		var p domain.MarkMessagesRead
		if err := env.Decode(&p); err != nil {
			h.reject(l, client, err)
			return
		}
		if err := h.Chat.MarkRead(ctx, p); err != nil {
			l.Error().Err(err).Msg("Failed to mark messages read")
		}

	default:
		l.Warn().Str("type", string(env.Type)).Msg("Unknown event type")
		h.reject(l, client, domain.ErrBadEnvelope)
	}
}

func (h *Handler) reject(l zerolog.Logger, client *WSClient, err error) {
	env, encErr := domain.NewEnvelope(domain.EventError, domain.ErrorNotice{Message: err.Error()})
	if encErr != nil {
		return
	}
	if sendErr := client.Send(env); sendErr != nil {
		l.Error().Err(sendErr).Msg("Error sending error notice")
	}
}
