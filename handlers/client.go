package handlers

import (
	"encoding/json"
	"sync"

	"github.com/gofiber/contrib/websocket"
)

// wireSocket is the slice of *websocket.Conn the gateway needs; tests swap in
// a fake.
type wireSocket interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (int, []byte, error)
	Close() error
}

// ClientConn serializes writes to one websocket. Outbound fan-out happens
// from session goroutines and timer callbacks concurrently, and gorilla-style
// conns allow only one writer at a time.
type ClientConn struct {
	id   string
	mu   sync.Mutex
	sock wireSocket
}

func NewClientConn(id string, sock wireSocket) *ClientConn {
	return &ClientConn{id: id, sock: sock}
}

func (c *ClientConn) ID() string { return c.id }

// Send writes one enveloped message as JSON.
func (c *ClientConn) Send(msgType string, payload interface{}) error {
	data, err := encodeEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sock.WriteMessage(websocket.TextMessage, data)
}

// CloseWithReason sends a close frame with an explanation, then closes.
func (c *ClientConn) CloseWithReason(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.sock.WriteMessage(websocket.CloseMessage, msg)
	_ = c.sock.Close()
}

func (c *ClientConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.sock.Close()
}

func encodeEnvelope(msgType string, payload interface{}) ([]byte, error) {
	env := Envelope{Type: msgType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}
