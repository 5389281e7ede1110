package router

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/searchktools/hive/core/websocket"
)

// WebSocketRouter maps endpoints to their handler set. Registering an
// endpoint again replaces the previous entry.
type WebSocketRouter struct {
	mu      sync.RWMutex
	entries map[string]websocket.Entry
}

// NewWebSocketRouter creates an empty WebSocketRouter
func NewWebSocketRouter() *WebSocketRouter {
	return &WebSocketRouter{entries: make(map[string]websocket.Entry)}
}

// AddRoute stores entry for endpoint
func (w *WebSocketRouter) AddRoute(endpoint string, entry websocket.Entry) error {
	if !strings.HasPrefix(endpoint, "/") {
		return fmt.Errorf("%w: %q must begin with '/'", ErrInvalidEndpoint, endpoint)
	}
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("%s: %w", endpoint, err)
	}

	w.mu.Lock()
	w.entries[endpoint] = entry
	w.mu.Unlock()
	return nil
}

// Routes returns a copy of the endpoint map
func (w *WebSocketRouter) Routes() map[string]websocket.Entry {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return maps.Clone(w.entries)
}

// Endpoints returns the registered endpoints in sorted order
func (w *WebSocketRouter) Endpoints() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Sorted(maps.Keys(w.entries))
}
