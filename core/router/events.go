package router

import (
	"fmt"
	"sync"

	"github.com/searchktools/hive/core/handler"
)

// Event is a lifecycle event a hook can be attached to
type Event string

const (
	Startup  Event = "startup"
	Shutdown Event = "shutdown"
)

// EventTable holds at most one hook per event; the last registration wins
type EventTable struct {
	mu    sync.RWMutex
	hooks map[Event]handler.Descriptor[handler.EventFunc]
}

// NewEventTable creates an empty EventTable
func NewEventTable() *EventTable {
	return &EventTable{hooks: make(map[Event]handler.Descriptor[handler.EventFunc], 2)}
}

// Set registers h for event, replacing any previous hook
func (e *EventTable) Set(event Event, h any) error {
	if event != Startup && event != Shutdown {
		return fmt.Errorf("%w: %q", ErrInvalidEvent, event)
	}

	d, err := handler.DescribeEvent(h)
	if err != nil {
		return fmt.Errorf("%s hook: %w", event, err)
	}

	e.mu.Lock()
	e.hooks[event] = d
	e.mu.Unlock()
	return nil
}

// Get returns the hook for event
func (e *EventTable) Get(event Event) (handler.Descriptor[handler.EventFunc], bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	d, ok := e.hooks[event]
	return d, ok
}
