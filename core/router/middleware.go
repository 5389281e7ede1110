package router

import (
	"fmt"
	"slices"
	"sync"

	"github.com/searchktools/hive/core/handler"
	"github.com/searchktools/hive/core/middleware"
)

// Phase re-exports the middleware phase enum
type Phase = middleware.Phase

const (
	BeforeRequest = middleware.BeforeRequest
	AfterRequest  = middleware.AfterRequest
)

// MiddlewareEntry is one entry of the middleware table. Path may be
// Wildcard to apply to every request.
type MiddlewareEntry struct {
	Phase   Phase
	Path    string
	Handler handler.Descriptor[middleware.Func]
}

// MiddlewareRouter builds the ordered middleware table. Several entries may
// target the same path; they run in registration order.
type MiddlewareRouter struct {
	mu      sync.RWMutex
	entries []MiddlewareEntry
}

// NewMiddlewareRouter creates an empty MiddlewareRouter
func NewMiddlewareRouter() *MiddlewareRouter {
	return &MiddlewareRouter{entries: make([]MiddlewareEntry, 0, 8)}
}

// AddRoute wraps h in a pass-through adapter and appends it for phase
func (m *MiddlewareRouter) AddRoute(phase Phase, path string, h any) error {
	if _, err := CompilePattern(path); err != nil {
		return err
	}

	d, err := middleware.Describe(phase, h)
	if err != nil {
		return fmt.Errorf("%s %s: %w", phase, path, err)
	}

	m.mu.Lock()
	m.entries = append(m.entries, MiddlewareEntry{Phase: phase, Path: path, Handler: d})
	m.mu.Unlock()
	return nil
}

// BeforeRequest returns a registrar that adds h as a BEFORE_REQUEST
// middleware on path
func (m *MiddlewareRouter) BeforeRequest(path string) func(h any) error {
	return func(h any) error {
		return m.AddRoute(BeforeRequest, path, h)
	}
}

// AfterRequest returns a registrar that adds h as an AFTER_REQUEST
// middleware on path
func (m *MiddlewareRouter) AfterRequest(path string) func(h any) error {
	return func(h any) error {
		return m.AddRoute(AfterRequest, path, h)
	}
}

// Routes returns a copy of the table in registration order
func (m *MiddlewareRouter) Routes() []MiddlewareEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.entries)
}
