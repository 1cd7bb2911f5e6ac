package ipc

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/gorilla/websocket"
)

// Transport moves whole envelopes. The host shim can reach the sidecar over a
// unix socket (length-prefixed frames) or a websocket (one text message each).
type Transport interface {
	ReadEnvelope() (Envelope, error)
	WriteEnvelope(env Envelope) error
	Close() error
}

type streamTransport struct {
	conn net.Conn
	wmu  sync.Mutex
}

// NewStreamTransport frames envelopes over a stream connection.
func NewStreamTransport(conn net.Conn) Transport {
	return &streamTransport{conn: conn}
}

func (t *streamTransport) ReadEnvelope() (Envelope, error) {
	return ReadEnvelope(t.conn)
}

func (t *streamTransport) WriteEnvelope(env Envelope) error {
	t.wmu.Lock()
	defer t.wmu.Unlock()
	return WriteEnvelope(t.conn, env)
}

func (t *streamTransport) Close() error {
	return t.conn.Close()
}

type wsTransport struct {
	conn *websocket.Conn
	wmu  sync.Mutex // gorilla allows one concurrent writer
}

// NewWebsocketTransport carries one envelope per text message.
func NewWebsocketTransport(conn *websocket.Conn) Transport {
	conn.SetReadLimit(MaxFrameSize)
	return &wsTransport{conn: conn}
}

func (t *wsTransport) ReadEnvelope() (Envelope, error) {
	for {
		msgType, payload, err := t.conn.ReadMessage()
		if err != nil {
			return Envelope{}, fmt.Errorf("read message: %w", err)
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		return unmarshalEnvelope(payload)
	}
}

func (t *wsTransport) WriteEnvelope(env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	t.wmu.Lock()
	defer t.wmu.Unlock()
	if err := t.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}
