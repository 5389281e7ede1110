package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/searchktools/hive/core/eventloop"
	"github.com/searchktools/hive/core/handler"
	"github.com/searchktools/hive/core/http"
	"github.com/searchktools/hive/core/middleware"
	"github.com/searchktools/hive/core/router"
	"github.com/searchktools/hive/core/websocket"
)

// recordingEngine records every replayed call in order
type recordingEngine struct {
	mu      sync.Mutex
	calls   []string
	failOn  string
	started bool
	done    chan error
}

func newRecordingEngine() *recordingEngine {
	return &recordingEngine{done: make(chan error, 1)}
}

func (e *recordingEngine) record(call string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, call)
	if call == e.failOn {
		return errors.New("rejected " + call)
	}
	return nil
}

func (e *recordingEngine) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

func (e *recordingEngine) AddDirectory(route, _, _ string, _ bool) error {
	return e.record("dir " + route)
}

func (e *recordingEngine) AddRequestHeader(name, _ string) { _ = e.record("reqheader " + name) }

func (e *recordingEngine) AddResponseHeader(name, _ string) { _ = e.record("resheader " + name) }

func (e *recordingEngine) AddRoute(method router.Method, path string, _ handler.Descriptor[handler.Func], _ bool) error {
	return e.record(fmt.Sprintf("route %s %s", method, path))
}

func (e *recordingEngine) AddMiddlewareRoute(phase router.Phase, path string, _ handler.Descriptor[middleware.Func]) error {
	return e.record(fmt.Sprintf("middleware %s %s", phase, path))
}

func (e *recordingEngine) AddStartupHandler(handler.Descriptor[handler.EventFunc]) {
	_ = e.record("startup")
}

func (e *recordingEngine) AddShutdownHandler(handler.Descriptor[handler.EventFunc]) {
	_ = e.record("shutdown")
}

func (e *recordingEngine) AddWebSocketRoute(endpoint string, _, _, _ handler.Descriptor[websocket.Callback]) error {
	return e.record("websocket " + endpoint)
}

func (e *recordingEngine) Start(*os.File, int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.started = true
	return nil
}

func (e *recordingEngine) Shutdown(context.Context) error {
	e.done <- nil
	return nil
}

func (e *recordingEngine) Done() <-chan error {
	return e.done
}

// buildTables runs the same registrations every time it is called, the
// way a re-executed worker rebuilds its tables
func buildTables() Tables {
	routes := router.New()
	_, _ = routes.GET("/ping", func() any { return "pong" })
	_, _ = routes.POST("/items/:id", func(context.Context, *http.Request) (any, error) { return "ok", nil })
	_, _ = routes.GET("/static", func() any { return "fixed" }, router.Const())

	mws := router.NewMiddlewareRouter()
	_ = mws.BeforeRequest("/items/:id")(func(*middleware.Args) {})
	_ = mws.AfterRequest("/ping")(func(context.Context, *middleware.Args) error { return nil })

	events := router.NewEventTable()
	_ = events.Set(router.Startup, func() {})
	_ = events.Set(router.Shutdown, func(context.Context) error { return nil })
	startup, _ := events.Get(router.Startup)
	shutdown, _ := events.Get(router.Shutdown)

	wss := router.NewWebSocketRouter()
	for _, ep := range []string{"/ws/b", "/ws/a"} {
		e := websocket.New()
		_ = e.On(websocket.EventConnect, func(*websocket.Conn, string) string { return "" })
		_ = e.On(websocket.EventMessage, func(_ *websocket.Conn, msg string) string { return msg })
		_ = e.On(websocket.EventClose, func(*websocket.Conn, string) string { return "" })
		_ = wss.AddRoute(ep, *e)
	}

	return Tables{
		Directories:     []router.Directory{{Route: "/assets", Root: "/srv/assets", IndexFile: "index.html"}},
		RequestHeaders:  []router.Header{{Name: "X-Req", Value: "1"}},
		ResponseHeaders: []router.Header{{Name: "X-Res", Value: "2"}, {Name: "Server", Value: "hive"}},
		Routes:          routes.Routes(),
		Middlewares:     mws.Routes(),
		Startup:         &startup,
		Shutdown:        &shutdown,
		WebSockets:      wss.Routes(),
	}
}

// fakeHandle is a worker that exits when killed or when exit is closed
type fakeHandle struct {
	index  int
	exit   chan error
	once   sync.Once
	killed bool
	mu     sync.Mutex
}

func newFakeHandle(index int) *fakeHandle {
	return &fakeHandle{index: index, exit: make(chan error, 1)}
}

func (h *fakeHandle) ID() string   { return fmt.Sprintf("fake-%d", h.index) }
func (h *fakeHandle) Index() int   { return h.index }
func (h *fakeHandle) PID() int     { return 1000 + h.index }
func (h *fakeHandle) Exited() bool { return false }

func (h *fakeHandle) Kill() error {
	h.mu.Lock()
	h.killed = true
	h.mu.Unlock()
	h.finish(ErrTerminated)
	return nil
}

func (h *fakeHandle) finish(err error) {
	h.once.Do(func() { h.exit <- err })
}

func (h *fakeHandle) Wait() error {
	err := <-h.exit
	h.exit <- err
	return err
}

func (h *fakeHandle) Killed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.killed
}

// fakeSpawner hands out fake handles and remembers the payload
type fakeSpawner struct {
	handles []*fakeHandle
	payload Manifest
}

func (s *fakeSpawner) Spawn(_ context.Context, n int, _ *Socket, payload Manifest) ([]WorkerHandle, error) {
	s.payload = payload
	out := make([]WorkerHandle, 0, n)
	for i := 0; i < n; i++ {
		h := newFakeHandle(i)
		s.handles = append(s.handles, h)
		out = append(out, h)
	}
	return out, nil
}

func recordingFactory(engines chan<- *recordingEngine) EngineFactory {
	return func(eventloop.Loop, *zap.Logger) Engine {
		e := newRecordingEngine()
		if engines != nil {
			engines <- e
		}
		return e
	}
}
