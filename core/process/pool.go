package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/searchktools/hive/core/eventloop"
)

// Options configures a Pool
type Options struct {
	Host      string
	Port      int
	Processes int
	Workers   int
	EventLoop eventloop.Kind

	Logger *zap.Logger
	// Factory builds the engine of an inline worker
	Factory EngineFactory
	// Spawner overrides the platform spawner
	Spawner Spawner
	// Platform overrides DetectPlatform
	Platform *Platform
	Metrics  *Metrics
	// MetricsAddr serves Metrics over HTTP when set
	MetricsAddr     string
	ShutdownTimeout time.Duration

	Stdout io.Writer
	Stderr io.Writer
}

// Pool binds the shared socket in the parent process and supervises the
// workers serving on it
type Pool struct {
	opts    Options
	logger  *zap.Logger
	metrics *Metrics

	mu      sync.Mutex
	socket  *Socket
	handles []WorkerHandle
}

// NewPool validates opts and returns an idle pool
func NewPool(opts Options) (*Pool, error) {
	if opts.Processes < 1 {
		return nil, fmt.Errorf("processes must be >= 1, got %d", opts.Processes)
	}
	if opts.Workers < 1 {
		return nil, fmt.Errorf("workers must be >= 1, got %d", opts.Workers)
	}
	if opts.Factory == nil && opts.Spawner == nil {
		return nil, errors.New("engine factory is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	return &Pool{
		opts:    opts,
		logger:  opts.Logger.Named("pool"),
		metrics: opts.Metrics,
	}, nil
}

// Metrics returns the pool metrics
func (p *Pool) Metrics() *Metrics {
	return p.metrics
}

// Addr returns the bound address, or "" before Spawn
func (p *Pool) Addr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.socket == nil {
		return ""
	}
	return p.socket.Addr()
}

// Spawn binds the socket and starts the workers. On a host that cannot
// spawn processes it falls back to one inline worker.
func (p *Pool) Spawn(ctx context.Context, t Tables) ([]WorkerHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.socket != nil {
		return nil, errors.New("pool already spawned")
	}

	socket, err := Bind(p.opts.Host, p.opts.Port)
	if err != nil {
		return nil, err
	}

	spawner, n := p.spawner(t)
	payload := NewManifest(t, p.opts.Workers, p.opts.EventLoop.String())

	handles, err := spawner.Spawn(ctx, n, socket, payload)
	if err != nil {
		socket.Close()
		return nil, err
	}

	for range handles {
		p.metrics.workerStarted()
	}
	p.socket = socket
	p.handles = handles

	p.logger.Info("workers started",
		zap.String("addr", socket.Addr()),
		zap.Int("processes", len(handles)),
		zap.Int("workers", p.opts.Workers))
	return handles, nil
}

func (p *Pool) spawner(t Tables) (Spawner, int) {
	if p.opts.Spawner != nil {
		return p.opts.Spawner, p.opts.Processes
	}

	platform := p.opts.Platform
	if platform == nil {
		detected := DetectPlatform()
		platform = &detected
	}

	if !platform.CanFork {
		p.logger.Warn("process spawning unavailable, running one inline worker",
			zap.String("reason", platform.Reason),
			zap.Int("requested_processes", p.opts.Processes))
		p.metrics.inline.Set(1)
		return &InlineSpawner{
			Tables: t,
			Options: WorkerOptions{
				Workers:         p.opts.Workers,
				EventLoop:       p.opts.EventLoop,
				Factory:         p.opts.Factory,
				Logger:          p.opts.Logger,
				ShutdownTimeout: p.opts.ShutdownTimeout,
			},
		}, 1
	}

	return &ExecSpawner{
		Executable: platform.Executable,
		Args:       os.Args[1:],
		Env:        os.Environ(),
		Stdout:     p.opts.Stdout,
		Stderr:     p.opts.Stderr,
		Logger:     p.opts.Logger,
	}, p.opts.Processes
}

// Supervise waits for every handle to exit. On SIGINT or SIGTERM, or when
// ctx is cancelled, it kills all workers, waits for them and returns nil.
func (p *Pool) Supervise(ctx context.Context, handles []WorkerHandle) error {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var g errgroup.Group
	for _, h := range handles {
		g.Go(func() error {
			err := h.Wait()
			p.metrics.workerExited(exitReason(err))
			if errors.Is(err, ErrTerminated) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("worker %d (pid %d): %w", h.Index(), h.PID(), err)
			}
			return nil
		})
	}

	joined := make(chan error, 1)
	go func() {
		joined <- g.Wait()
	}()

	select {
	case err := <-joined:
		return err
	case <-sigCtx.Done():
		p.logger.Info("terminating workers", zap.Int("count", len(handles)))
		if err := KillAll(handles); err != nil {
			p.logger.Warn("kill workers", zap.Error(err))
		}
		<-joined
		return nil
	}
}

// Run spawns the workers and supervises them until they exit or the
// process is interrupted. The returned handles have all exited.
//
// SIGINT and SIGTERM are captured before the first worker starts, so a
// signal delivered while spawning still kills every worker.
func (p *Pool) Run(ctx context.Context, t Tables) ([]WorkerHandle, error) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	handles, err := p.Spawn(ctx, t)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			p.logger.Info("interrupted while spawning")
			return nil, nil
		}
		return nil, err
	}
	defer p.Close()

	if p.opts.MetricsAddr != "" {
		stopMetrics := p.serveMetrics()
		defer stopMetrics()
	}

	return handles, p.Supervise(ctx, handles)
}

func (p *Pool) serveMetrics() func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", p.metrics.Handler())
	srv := &http.Server{
		Addr:              p.opts.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          zap.NewStdLog(p.logger),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("metrics server", zap.Error(err))
		}
	}()
	p.logger.Info("metrics listening", zap.String("addr", p.opts.MetricsAddr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// Close kills any live worker and releases the socket
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := KillAll(p.handles)
	if p.socket != nil {
		err = errors.Join(err, p.socket.Close())
	}
	return err
}

// RunProcesses runs the tables on a new pool until interrupted
func RunProcesses(ctx context.Context, opts Options, t Tables) ([]WorkerHandle, error) {
	pool, err := NewPool(opts)
	if err != nil {
		return nil, err
	}
	return pool.Run(ctx, t)
}
