package ws

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/veliq/telecall/internal/core/domain"
)

// Transport is the client side of the signaling channel. Reads are pumped
// into a channel that closes when the connection drops; writes are serialized
// by a mutex since gorilla permits one concurrent writer.
type Transport struct {
	conn    *websocket.Conn
	in      chan domain.Envelope
	writeMu sync.Mutex
	once    sync.Once
}

func Dial(ctx context.Context, url string) (*Transport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	t := &Transport{
		conn: conn,
		in:   make(chan domain.Envelope, 32),
	}
	go t.readLoop()
	return t, nil
}

func (t *Transport) readLoop() {
	defer close(t.in)
	for {
		var env domain.Envelope
		if err := t.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Msg("Signaling connection lost")
			}
			return
		}
		t.in <- env
	}
}

func (t *Transport) Send(env domain.Envelope) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteJSON(env)
}

func (t *Transport) Receive() <-chan domain.Envelope {
	return t.in
}

func (t *Transport) Close() error {
	var err error
	t.once.Do(func() { err = t.conn.Close() })
	return err
}
