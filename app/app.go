// Package app is the application facade: it owns the registration tables
// and boots them on a process pool.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/searchktools/hive/config"
	"github.com/searchktools/hive/core"
	"github.com/searchktools/hive/core/eventloop"
	"github.com/searchktools/hive/core/process"
	"github.com/searchktools/hive/core/router"
	"github.com/searchktools/hive/core/websocket"
)

var ErrInvalidDirectory = errors.New("directory mount requires a route starting with / and a root")

// App is one application: the tables it registered and the configuration
// they are served with
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	routes      *router.Router
	middlewares *router.MiddlewareRouter
	websockets  *router.WebSocketRouter
	events      *router.EventTable

	mu              sync.Mutex
	directories     []router.Directory
	requestHeaders  []router.Header
	responseHeaders []router.Header
}

// New creates an application. A nil cfg uses config.Default and a nil
// logger discards everything.
func New(cfg *config.Config, logger *zap.Logger) *App {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &App{
		cfg:         cfg,
		logger:      logger,
		routes:      router.New(),
		middlewares: router.NewMiddlewareRouter(),
		websockets:  router.NewWebSocketRouter(),
		events:      router.NewEventTable(),
	}
}

// Config returns the application configuration
func (a *App) Config() *config.Config {
	return a.cfg
}

// AddRoute registers h for method and path
func (a *App) AddRoute(method router.Method, path string, h any, isConst bool) error {
	_, err := a.routes.AddRoute(method, path, h, isConst)
	return err
}

func (a *App) Get(path string, h any, opts ...router.RouteOption) error {
	_, err := a.routes.GET(path, h, opts...)
	return err
}

func (a *App) Post(path string, h any, opts ...router.RouteOption) error {
	_, err := a.routes.POST(path, h, opts...)
	return err
}

func (a *App) Put(path string, h any, opts ...router.RouteOption) error {
	_, err := a.routes.PUT(path, h, opts...)
	return err
}

func (a *App) Delete(path string, h any, opts ...router.RouteOption) error {
	_, err := a.routes.DELETE(path, h, opts...)
	return err
}

func (a *App) Patch(path string, h any, opts ...router.RouteOption) error {
	_, err := a.routes.PATCH(path, h, opts...)
	return err
}

func (a *App) Head(path string, h any, opts ...router.RouteOption) error {
	_, err := a.routes.HEAD(path, h, opts...)
	return err
}

func (a *App) Options(path string, h any, opts ...router.RouteOption) error {
	_, err := a.routes.OPTIONS(path, h, opts...)
	return err
}

func (a *App) Connect(path string, h any, opts ...router.RouteOption) error {
	_, err := a.routes.CONNECT(path, h, opts...)
	return err
}

func (a *App) Trace(path string, h any, opts ...router.RouteOption) error {
	_, err := a.routes.TRACE(path, h, opts...)
	return err
}

// BeforeRequest returns a registrar for middleware run before the route
// handler of path
func (a *App) BeforeRequest(path string) func(h any) error {
	return a.middlewares.BeforeRequest(path)
}

// AfterRequest returns a registrar for middleware run after the route
// handler of path
func (a *App) AfterRequest(path string) func(h any) error {
	return a.middlewares.AfterRequest(path)
}

// AddDirectory mounts root under route. indexFile, when set, is served
// for directory requests; otherwise showListing decides between a listing
// and a 404.
func (a *App) AddDirectory(route, root, indexFile string, showListing bool) error {
	if !strings.HasPrefix(route, "/") || root == "" {
		return fmt.Errorf("%w: route %q root %q", ErrInvalidDirectory, route, root)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.directories = append(a.directories, router.Directory{
		Route:       route,
		Root:        root,
		IndexFile:   indexFile,
		ShowListing: showListing,
	})
	return nil
}

// AddRequestHeader sets a header on every incoming request
func (a *App) AddRequestHeader(name, value string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requestHeaders = append(a.requestHeaders, router.Header{Name: name, Value: value})
}

// AddResponseHeader sets a header on every outgoing response
func (a *App) AddResponseHeader(name, value string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.responseHeaders = append(a.responseHeaders, router.Header{Name: name, Value: value})
}

// Startup registers the hook run by every worker before it accepts
// connections. A later registration replaces an earlier one.
func (a *App) Startup(h any) error {
	return a.events.Set(router.Startup, h)
}

// Shutdown registers the hook run by every worker on graceful shutdown
func (a *App) Shutdown(h any) error {
	return a.events.Set(router.Shutdown, h)
}

// WebSocket registers entry under endpoint, replacing any previous entry
func (a *App) WebSocket(endpoint string, entry *websocket.Entry) error {
	if entry == nil {
		return websocket.ErrIncompleteEntry
	}
	return a.websockets.AddRoute(endpoint, *entry)
}

// Tables snapshots everything registered so far
func (a *App) Tables() process.Tables {
	a.mu.Lock()
	t := process.Tables{
		Directories:     append([]router.Directory(nil), a.directories...),
		RequestHeaders:  append([]router.Header(nil), a.requestHeaders...),
		ResponseHeaders: append([]router.Header(nil), a.responseHeaders...),
	}
	a.mu.Unlock()

	t.Routes = a.routes.Routes()
	t.Middlewares = a.middlewares.Routes()
	t.WebSockets = a.websockets.Routes()
	if h, ok := a.events.Get(router.Startup); ok {
		t.Startup = &h
	}
	if h, ok := a.events.Get(router.Shutdown); ok {
		t.Shutdown = &h
	}
	return t
}

// Start serves the application until interrupted. In the parent process it
// binds the socket and spawns the workers; in a spawned worker it serves
// the inherited socket. Registration must be complete before Start, and
// must be deterministic: every worker re-runs it.
func (a *App) Start(ctx context.Context) error {
	kind, err := a.eventLoop()
	if err != nil {
		return err
	}

	if process.IsWorker() {
		return process.RunWorker(ctx, a.Tables(), process.WorkerOptions{
			Workers:         a.cfg.Server.Workers,
			EventLoop:       kind,
			Factory:         a.EngineFactory(),
			Logger:          a.logger,
			ShutdownTimeout: a.shutdownTimeout(),
		})
	}

	a.logger.Info("starting",
		zap.String("addr", a.cfg.Server.Address()),
		zap.Int("processes", a.cfg.Server.Processes),
		zap.Int("workers", a.cfg.Server.Workers))

	handles, err := process.RunProcesses(ctx, process.Options{
		Host:            a.cfg.Server.Host,
		Port:            a.cfg.Server.Port,
		Processes:       a.cfg.Server.Processes,
		Workers:         a.cfg.Server.Workers,
		EventLoop:       kind,
		Logger:          a.logger,
		Factory:         a.EngineFactory(),
		MetricsAddr:     a.cfg.Metrics.Addr,
		ShutdownTimeout: a.shutdownTimeout(),
	}, a.Tables())
	a.logger.Info("stopped", zap.Int("workers", len(handles)), zap.Error(err))
	return err
}

// EngineFactory builds the default core.Engine for each worker
func (a *App) EngineFactory() process.EngineFactory {
	read := time.Duration(a.cfg.Server.ReadTimeout) * time.Second
	write := time.Duration(a.cfg.Server.WriteTimeout) * time.Second

	return func(loop eventloop.Loop, logger *zap.Logger) process.Engine {
		return core.NewEngine(
			core.WithLoop(loop),
			core.WithLogger(logger),
			core.WithTimeouts(read, write),
		)
	}
}

func (a *App) eventLoop() (eventloop.Kind, error) {
	return eventloop.ParseKind(a.cfg.Server.EventLoop)
}

func (a *App) shutdownTimeout() time.Duration {
	return time.Duration(a.cfg.Server.ShutdownTimeout) * time.Second
}
