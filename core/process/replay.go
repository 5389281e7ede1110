package process

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/searchktools/hive/core/eventloop"
	"github.com/searchktools/hive/core/handler"
	"github.com/searchktools/hive/core/middleware"
	"github.com/searchktools/hive/core/router"
	"github.com/searchktools/hive/core/websocket"
)

// Engine is the embedded serving engine a worker replays its tables into
type Engine interface {
	AddDirectory(route, root, indexFile string, showListing bool) error
	AddRequestHeader(name, value string)
	AddResponseHeader(name, value string)
	AddRoute(method router.Method, path string, d handler.Descriptor[handler.Func], isConst bool) error
	AddMiddlewareRoute(phase router.Phase, path string, d handler.Descriptor[middleware.Func]) error
	AddStartupHandler(d handler.Descriptor[handler.EventFunc])
	AddShutdownHandler(d handler.Descriptor[handler.EventFunc])
	AddWebSocketRoute(endpoint string, connect, closeFn, message handler.Descriptor[websocket.Callback]) error
	// Start begins serving on socket without blocking
	Start(socket *os.File, workers int) error
	Shutdown(ctx context.Context) error
	// Done delivers the serve loop result once it stops
	Done() <-chan error
}

// EngineFactory builds the engine of one worker around its event loop
type EngineFactory func(loop eventloop.Loop, logger *zap.Logger) Engine

// Replay issues one engine call per table entry in this fixed order:
// directories, request headers, response headers, routes, middleware
// routes, startup hook, shutdown hook, websocket routes (sorted by
// endpoint). The first failing entry aborts the replay.
func Replay(e Engine, t Tables) error {
	for i, d := range t.Directories {
		if err := e.AddDirectory(d.Route, d.Root, d.IndexFile, d.ShowListing); err != nil {
			return &ReplayError{Table: "directories", Index: i, Err: err}
		}
	}

	for _, h := range t.RequestHeaders {
		e.AddRequestHeader(h.Name, h.Value)
	}
	for _, h := range t.ResponseHeaders {
		e.AddResponseHeader(h.Name, h.Value)
	}

	for i, r := range t.Routes {
		if err := e.AddRoute(r.Method, r.Path, r.Handler, r.IsConst); err != nil {
			return &ReplayError{Table: "routes", Index: i, Err: err}
		}
	}

	for i, m := range t.Middlewares {
		if err := e.AddMiddlewareRoute(m.Phase, m.Path, m.Handler); err != nil {
			return &ReplayError{Table: "middlewares", Index: i, Err: err}
		}
	}

	if t.Startup != nil {
		e.AddStartupHandler(*t.Startup)
	}
	if t.Shutdown != nil {
		e.AddShutdownHandler(*t.Shutdown)
	}

	for i, ep := range t.WebSocketEndpoints() {
		ws := t.WebSockets[ep]
		if err := e.AddWebSocketRoute(ep, ws.Connect, ws.Close, ws.Message); err != nil {
			return &ReplayError{Table: "websockets", Index: i, Err: err}
		}
	}

	return nil
}
