// Package core holds the default embedded engine: it accepts the tables a
// worker replays, serves them over a shared listening socket and runs the
// handlers on the worker's event loop or its goroutine pool.
package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	nethttp "net/http"
	"net/textproto"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/searchktools/hive/core/eventloop"
	"github.com/searchktools/hive/core/handler"
	"github.com/searchktools/hive/core/http"
	"github.com/searchktools/hive/core/middleware"
	"github.com/searchktools/hive/core/pools"
	"github.com/searchktools/hive/core/router"
	"github.com/searchktools/hive/core/websocket"
)

// Options tunes an Engine
type Options struct {
	Logger *zap.Logger
	// Loop runs synchronous handlers. Without a loop they run on the
	// request goroutine.
	Loop         eventloop.Loop
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxBodyBytes int64
	// MaxWebSocketConns caps live websocket connections; 0 is unlimited
	MaxWebSocketConns int
}

// Option configures an Engine
type Option func(*Options)

func WithLogger(l *zap.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

func WithLoop(l eventloop.Loop) Option {
	return func(o *Options) { o.Loop = l }
}

func WithTimeouts(read, write time.Duration) Option {
	return func(o *Options) {
		o.ReadTimeout = read
		o.WriteTimeout = write
	}
}

func WithMaxBodyBytes(n int64) Option {
	return func(o *Options) { o.MaxBodyBytes = n }
}

func WithMaxWebSocketConns(n int) Option {
	return func(o *Options) { o.MaxWebSocketConns = n }
}

type routeEntry struct {
	route router.Route
	cache *constCache
}

type constCache struct {
	mu   sync.Mutex
	done bool
	res  http.Response
}


type hook = handler.Descriptor[handler.EventFunc]

// Engine is the default embedded serving engine
type Engine struct {
	opts   Options
	logger *zap.Logger

	routes     *router.Matcher[router.Method, *routeEntry]
	middleware *router.Matcher[router.Phase, handler.Descriptor[middleware.Func]]
	websockets map[string]websocket.Entry
	wsHandler  *websocket.Handler
	dirs       []*directoryHandler

	headerMu        sync.RWMutex
	requestHeaders  []router.Header
	responseHeaders map[string]string

	startup, shutdown *hook

	mu      sync.Mutex
	started bool
	server  *nethttp.Server
	served  chan error
	pool    atomic.Pointer[pools.WorkerPool]

	stats engineCounters
}

// NewEngine creates a new engine instance
func NewEngine(opts ...Option) *Engine {
	o := Options{
		ReadTimeout:  defaultReadTimeout * time.Second,
		WriteTimeout: defaultWriteTimeout * time.Second,
		MaxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}

	e := &Engine{
		opts:            o,
		logger:          o.Logger.Named("engine"),
		routes:          router.NewMatcher[router.Method, *routeEntry](),
		middleware:      router.NewMatcher[router.Phase, handler.Descriptor[middleware.Func]](),
		websockets:      make(map[string]websocket.Entry),
		responseHeaders: make(map[string]string),
		served:          make(chan error, 1),
	}
	e.wsHandler = websocket.NewHandler(websocket.NewHub(o.MaxWebSocketConns), websocket.Runner(e.run), e.logger)
	return e
}

// AddDirectory mounts root under route. See router.Directory for the modes.
func (e *Engine) AddDirectory(route, root, indexFile string, showListing bool) error {
	if !strings.HasPrefix(route, "/") {
		return fmt.Errorf("%w: %q must begin with '/'", router.ErrInvalidPath, route)
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("directory %s: %w", route, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("directory %s: %s is not a directory", route, root)
	}

	d := router.Directory{Route: route, Root: root, IndexFile: indexFile, ShowListing: showListing}
	e.dirs = append(e.dirs, newDirectoryHandler(d))
	return nil
}

// AddRequestHeader adds a header to every incoming request
func (e *Engine) AddRequestHeader(name, value string) {
	e.headerMu.Lock()
	e.requestHeaders = append(e.requestHeaders, router.Header{Name: name, Value: value})
	e.headerMu.Unlock()
}

// AddResponseHeader sets a header on every response. Route headers win.
func (e *Engine) AddResponseHeader(name, value string) {
	e.headerMu.Lock()
	e.responseHeaders[textproto.CanonicalMIMEHeaderKey(name)] = value
	e.headerMu.Unlock()
}

// RemoveResponseHeader drops a global response header. Safe while serving.
func (e *Engine) RemoveResponseHeader(name string) {
	e.headerMu.Lock()
	delete(e.responseHeaders, textproto.CanonicalMIMEHeaderKey(name))
	e.headerMu.Unlock()
}

// AddRoute registers a route. Among routes matching a request the first
// one registered wins.
func (e *Engine) AddRoute(method router.Method, path string, d handler.Descriptor[handler.Func], isConst bool) error {
	if d.Fn == nil {
		return handler.ErrNilHandler
	}
	entry := &routeEntry{route: router.Route{Method: method, Path: path, Handler: d, IsConst: isConst}}
	if isConst {
		entry.cache = &constCache{}
	}
	return e.routes.Add(method, path, entry)
}

// AddMiddlewareRoute registers a middleware for phase on path
func (e *Engine) AddMiddlewareRoute(phase router.Phase, path string, d handler.Descriptor[middleware.Func]) error {
	if !phase.Valid() {
		return fmt.Errorf("%w: %q", middleware.ErrInvalidPhase, phase)
	}
	if d.Fn == nil {
		return handler.ErrNilHandler
	}
	return e.middleware.Add(phase, path, d)
}

// AddStartupHandler sets the hook run by Start before accepting
func (e *Engine) AddStartupHandler(d handler.Descriptor[handler.EventFunc]) {
	e.startup = &d
}

// AddShutdownHandler sets the hook run by Shutdown
func (e *Engine) AddShutdownHandler(d handler.Descriptor[handler.EventFunc]) {
	e.shutdown = &d
}

// AddWebSocketRoute registers the callbacks of a websocket endpoint
func (e *Engine) AddWebSocketRoute(endpoint string, connect, closeFn, message handler.Descriptor[websocket.Callback]) error {
	entry := websocket.Entry{Connect: connect, Message: message, Close: closeFn}
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	e.websockets[endpoint] = entry
	return nil
}

// Hub returns the websocket connection hub
func (e *Engine) Hub() *websocket.Hub {
	return e.wsHandler.Hub()
}

// Start runs the startup hook and begins serving on socket with a pool of
// workers goroutines for asynchronous handlers. It does not block; the
// socket may be closed by the caller once Start returns.
func (e *Engine) Start(socket *os.File, workers int) error {
	if socket == nil {
		return ErrNilSocket
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return ErrAlreadyStarted
	}

	ln, err := net.FileListener(socket)
	if err != nil {
		return fmt.Errorf("listener from socket: %w", err)
	}

	pool := pools.NewWorkerPool(workers)

	if err := e.runHook(context.Background(), e.startup); err != nil {
		ln.Close()
		pool.Close()
		return fmt.Errorf("startup hook: %w", err)
	}
	e.pool.Store(pool)

	e.server = &nethttp.Server{
		Handler:      h2c.NewHandler(e, &http2.Server{}),
		ReadTimeout:  e.opts.ReadTimeout,
		WriteTimeout: e.opts.WriteTimeout,
		ErrorLog:     zap.NewStdLog(e.logger),
	}
	e.started = true

	e.logger.Info("engine listening",
		zap.String("addr", ln.Addr().String()),
		zap.Int("workers", pool.Size()),
		zap.Int("routes", e.routes.Len()),
		zap.Int("websockets", len(e.websockets)))

	go func() {
		err := e.server.Serve(ln)
		if errors.Is(err, nethttp.ErrServerClosed) {
			err = nil
		}
		e.served <- err
	}()

	return nil
}

// Done delivers the result of the serve loop once it stops
func (e *Engine) Done() <-chan error {
	return e.served
}

// Shutdown stops accepting, closes websocket connections, runs the
// shutdown hook and releases the worker pool.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return ErrNotStarted
	}
	e.started = false

	err := e.server.Shutdown(ctx)
	e.Hub().CloseAll()

	if hookErr := e.runHook(ctx, e.shutdown); hookErr != nil {
		err = errors.Join(err, fmt.Errorf("shutdown hook: %w", hookErr))
	}

	if pool := e.pool.Swap(nil); pool != nil {
		pool.Close()
	}
	return err
}

// runHook calls a lifecycle hook on the caller's goroutine; the event loop
// is not running yet during Start and may be gone during Shutdown.
func (e *Engine) runHook(ctx context.Context, h *hook) error {
	if h == nil {
		return nil
	}
	e.logger.Debug("running lifecycle hook", zap.String("handler", h.Name))
	return h.Fn(ctx)
}

// run is the Runner handed to middleware pipelines and websocket handlers.
// Async tasks go to the worker pool, sync tasks to the event loop.
func (e *Engine) run(ctx context.Context, async bool, task func()) error {
	if async {
		if pool := e.pool.Load(); pool != nil {
			return pool.Do(ctx, task)
		}
	} else if e.opts.Loop != nil {
		return eventloop.Exec(ctx, e.opts.Loop, task)
	}

	task()
	return nil
}
