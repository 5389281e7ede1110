package websocket

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// ErrHubFull is returned by Register once the hub holds maxConns connections
var ErrHubFull = errors.New("websocket hub is full")

// Hub tracks the live connections of one engine instance
type Hub struct {
	conns    sync.Map // id -> *Conn
	current  atomic.Int64
	maxConns int64

	totalConns   atomic.Int64
	messageCount atomic.Int64
}

// NewHub creates an empty hub. maxConns <= 0 means unlimited.
func NewHub(maxConns int) *Hub {
	return &Hub{maxConns: int64(maxConns)}
}

// Register adds c to the hub
func (h *Hub) Register(c *Conn) error {
	if n := h.current.Add(1); h.maxConns > 0 && n > h.maxConns {
		h.current.Add(-1)
		return ErrHubFull
	}
	h.conns.Store(c.ID, c)
	h.totalConns.Add(1)
	return nil
}

// Unregister removes c from the hub
func (h *Hub) Unregister(c *Conn) {
	if _, loaded := h.conns.LoadAndDelete(c.ID); loaded {
		h.current.Add(-1)
	}
}

// Get returns the connection with the given id
func (h *Hub) Get(id string) (*Conn, bool) {
	v, ok := h.conns.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Conn), true
}

// Broadcast sends text to every connection on endpoint and returns how many
// connections accepted it
func (h *Hub) Broadcast(endpoint, text string) int {
	sent := 0
	h.conns.Range(func(_, v any) bool {
		c := v.(*Conn)
		if c.Endpoint != endpoint {
			return true
		}
		if err := c.Send(text); err == nil {
			sent++
			h.messageCount.Add(1)
		}
		return true
	})
	return sent
}

// Count returns the number of live connections
func (h *Hub) Count() int {
	return int(h.current.Load())
}

// CloseAll closes every live connection with a going-away frame
func (h *Hub) CloseAll() {
	h.conns.Range(func(k, v any) bool {
		_ = v.(*Conn).CloseWith(websocket.CloseGoingAway, "server shutting down")
		if _, loaded := h.conns.LoadAndDelete(k); loaded {
			h.current.Add(-1)
		}
		return true
	})
}

// Stats returns hub counters
func (h *Hub) Stats() map[string]any {
	return map[string]any{
		"total_conns":   h.totalConns.Load(),
		"current_conns": h.Count(),
		"messages_sent": h.messageCount.Load(),
	}
}
