package web

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"turntable/internal/debug"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 16
)

var errClientGone = errors.New("client send buffer full or closed")

// Client is one connected WebSocket listener. Outbound payloads go
// through a buffered channel drained by writePump, so Broadcast never
// blocks on a slow socket; a full buffer counts as delivery failure.
type Client struct {
	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		closed: make(chan struct{}),
	}
}

// Send queues a payload for delivery. Returns an error when the client
// is gone or cannot keep up.
func (c *Client) Send(payload []byte) error {
	select {
	case <-c.closed:
		return errClientGone
	default:
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return errClientGone
	}
}

// Close tears the connection down once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}

// writePump drains the send channel onto the socket.
func (c *Client) writePump() {
	defer c.Close()
	for {
		select {
		case <-c.closed:
			return
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				debug.Verbose("WebSocket write failed: %v", err)
				return
			}
		}
	}
}

// readPump feeds inbound messages to handle until the connection
// drops. Malformed messages are logged and dropped; they never affect
// device state.
func (c *Client) readPump(handle func(data []byte)) {
	defer c.Close()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				debug.Verbose("WebSocket read failed: %v", err)
			}
			return
		}
		handle(data)
	}
}
