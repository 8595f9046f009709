package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dirmemory "github.com/veliq/telecall/internal/adapter/driven/directory/memory"
	repomemory "github.com/veliq/telecall/internal/adapter/driven/persistence/memory"
	"github.com/veliq/telecall/internal/core/domain"
	"github.com/veliq/telecall/internal/core/service"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	directory := dirmemory.NewDirectory()
	registry := service.NewRegistry()
	coordinator := service.NewCoordinator(registry, directory, time.Minute)
	chat := service.NewChatService(repomemory.NewMessageRepository(), registry)
	h := NewHandler(registry, coordinator, chat, directory, nil)

	srv := httptest.NewServer(h.NewRouter())
	t.Cleanup(srv.Close)
	return srv
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func writeEvent(t *testing.T, conn *websocket.Conn, typ domain.EventType, payload any) {
	t.Helper()
	env, err := domain.NewEnvelope(typ, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(env))
}

// readUntil skips unrelated traffic such as presence broadcasts.
func readUntil(t *testing.T, conn *websocket.Conn, typ domain.EventType) domain.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var env domain.Envelope
		require.NoError(t, conn.ReadJSON(&env))
		if env.Type == typ {
			return env
		}
	}
}

// connect announces the participant and waits for their own status broadcast,
// which proves registration completed server-side.
func connect(t *testing.T, srv *httptest.Server, id string, kind domain.Kind, name string) *websocket.Conn {
	t.Helper()
	conn := dialWS(t, srv)
	writeEvent(t, conn, domain.EventUserConnect, domain.UserConnect{
		UserID:      id,
		Kind:        kind,
		DisplayName: name,
	})
	for {
		env := readUntil(t, conn, domain.EventUserStatusChange)
		var status domain.UserStatusChange
		require.NoError(t, env.Decode(&status))
		if status.UserID == id && status.IsOnline {
			return conn
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestPresenceEndpoint(t *testing.T) {
	srv := newTestServer(t)
	connect(t, srv, "alice", domain.KindPatient, "Alice")

	resp, err := http.Get(srv.URL + "/presence")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var online []struct {
		ID   string `json:"id"`
		Kind string `json:"kind"`
		Name string `json:"name"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&online))
	require.Len(t, online, 1)
	assert.Equal(t, "alice", online[0].ID)
	assert.Equal(t, "Alice", online[0].Name)
}

func TestSignalingFlowOverWebSocket(t *testing.T) {
	srv := newTestServer(t)
	alice := connect(t, srv, "alice", domain.KindPatient, "Alice")
	bob := connect(t, srv, "bob", domain.KindPractitioner, "Dr. Bob")

	writeEvent(t, alice, domain.EventInitiateCall, domain.InitiateCall{
		From:     "alice",
		FromKind: domain.KindPatient,
		To:       "bob",
		ToKind:   domain.KindPractitioner,
	})

	env := readUntil(t, bob, domain.EventIncomingCall)
	var incoming domain.IncomingCall
	require.NoError(t, env.Decode(&incoming))
	assert.Equal(t, "alice", incoming.From)
	assert.Equal(t, "Alice", incoming.FromDisplayName)

	env = readUntil(t, alice, domain.EventCallInitiated)
	var ack domain.CallInitiated
	require.NoError(t, env.Decode(&ack))
	assert.Equal(t, "bob", ack.To)

	// Negotiation payloads must survive the relay byte-for-byte.
	offerPayload := `{"from":"alice","to":"bob","offer":{"type":"offer","sdp":"v=0","extensions":[1,2]}}`
	require.NoError(t, alice.WriteJSON(domain.Envelope{
		Type:    domain.EventCallOffer,
		Payload: json.RawMessage(offerPayload),
	}))
	env = readUntil(t, bob, domain.EventCallOffer)
	assert.JSONEq(t, offerPayload, string(env.Payload))

	writeEvent(t, bob, domain.EventCallAccepted, domain.CallAccepted{From: "bob", To: "alice"})
	env = readUntil(t, alice, domain.EventCallAccepted)
	var accepted domain.CallAccepted
	require.NoError(t, env.Decode(&accepted))
	assert.Equal(t, "bob", accepted.From)

	writeEvent(t, bob, domain.EventCallEnded, domain.CallEnded{From: "bob", To: "alice"})
	env = readUntil(t, alice, domain.EventCallEnded)
	var ended domain.CallEnded
	require.NoError(t, env.Decode(&ended))
	assert.Equal(t, "bob", ended.From)
}

func TestDisconnectEndsOngoingCall(t *testing.T) {
	srv := newTestServer(t)
	alice := connect(t, srv, "alice", domain.KindPatient, "Alice")
	bob := connect(t, srv, "bob", domain.KindPractitioner, "Dr. Bob")

	writeEvent(t, alice, domain.EventInitiateCall, domain.InitiateCall{
		From:     "alice",
		FromKind: domain.KindPatient,
		To:       "bob",
		ToKind:   domain.KindPractitioner,
	})
	readUntil(t, bob, domain.EventIncomingCall)

	require.NoError(t, alice.Close())

	env := readUntil(t, bob, domain.EventCallEnded)
	var ended domain.CallEnded
	require.NoError(t, env.Decode(&ended))
	assert.Equal(t, "alice", ended.From)
}

func TestUnknownEventGetsErrorNotice(t *testing.T) {
	srv := newTestServer(t)
	conn := dialWS(t, srv)

	require.NoError(t, conn.WriteJSON(domain.Envelope{
		Type:    "open-pod-bay-doors",
		Payload: json.RawMessage(`{}`),
	}))

	env := readUntil(t, conn, domain.EventError)
	var notice domain.ErrorNotice
	require.NoError(t, env.Decode(&notice))
	assert.Contains(t, notice.Message, "malformed envelope")
}
