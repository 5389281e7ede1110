package websocket

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Conn is one client connection on a WebSocket endpoint
type Conn struct {
	ID       string
	Endpoint string

	ws      *websocket.Conn
	hub     *Hub
	writeMu sync.Mutex

	closeOnce sync.Once
}

func newConn(ws *websocket.Conn, endpoint string, hub *Hub) *Conn {
	return &Conn{
		ID:       uuid.NewString(),
		Endpoint: endpoint,
		ws:       ws,
		hub:      hub,
	}
}

// Send writes a text frame to the client
func (c *Conn) Send(text string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, []byte(text))
}

// Broadcast sends text to every connection on the same endpoint
func (c *Conn) Broadcast(text string) int {
	if c.hub == nil {
		return 0
	}
	return c.hub.Broadcast(c.Endpoint, text)
}

// CloseWith sends a close frame with code and reason, then closes the socket
func (c *Conn) CloseWith(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		msg := websocket.FormatCloseMessage(code, reason)
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}

// Close closes the connection normally
func (c *Conn) Close() error {
	return c.CloseWith(websocket.CloseNormalClosure, "")
}
