package process

import (
	"maps"
	"slices"

	"github.com/searchktools/hive/core/handler"
	"github.com/searchktools/hive/core/router"
	"github.com/searchktools/hive/core/websocket"
)

// Tables is everything an application registered, as handed to the pool.
// Handlers cannot cross a process boundary, so a spawned worker rebuilds
// the same Tables by running the same registration code and the manifest
// proves both sides agree.
type Tables struct {
	Directories     []router.Directory
	RequestHeaders  []router.Header
	ResponseHeaders []router.Header
	Routes          []router.Route
	Middlewares     []router.MiddlewareEntry
	Startup         *handler.Descriptor[handler.EventFunc]
	Shutdown        *handler.Descriptor[handler.EventFunc]
	WebSockets      map[string]websocket.Entry
}

// Clone returns a copy that shares no slices or maps with t
func (t Tables) Clone() Tables {
	out := Tables{
		Directories:     slices.Clone(t.Directories),
		RequestHeaders:  slices.Clone(t.RequestHeaders),
		ResponseHeaders: slices.Clone(t.ResponseHeaders),
		Routes:          slices.Clone(t.Routes),
		Middlewares:     slices.Clone(t.Middlewares),
		WebSockets:      maps.Clone(t.WebSockets),
	}
	if t.Startup != nil {
		d := *t.Startup
		out.Startup = &d
	}
	if t.Shutdown != nil {
		d := *t.Shutdown
		out.Shutdown = &d
	}
	return out
}

// WebSocketEndpoints returns the endpoints in sorted order
func (t Tables) WebSocketEndpoints() []string {
	return slices.Sorted(maps.Keys(t.WebSockets))
}
