package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/searchktools/hive/core/eventloop"
)

// WorkerState is the lifecycle of one worker
type WorkerState int32

const (
	Unstarted WorkerState = iota
	TableReplayed
	Listening
	Terminated
)

func (s WorkerState) String() string {
	switch s {
	case Unstarted:
		return "unstarted"
	case TableReplayed:
		return "table_replayed"
	case Listening:
		return "listening"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// WorkerHandle is the parent's view of one worker
type WorkerHandle interface {
	ID() string
	Index() int
	PID() int
	// Kill stops the worker immediately; killing an exited worker is a no-op
	Kill() error
	// Wait blocks until the worker has exited
	Wait() error
	Exited() bool
}

// KillAll kills every handle and reports the errors of those that failed
func KillAll(handles []WorkerHandle) error {
	var errs []error
	for _, h := range handles {
		if err := h.Kill(); err != nil {
			errs = append(errs, fmt.Errorf("worker %d (pid %d): %w", h.Index(), h.PID(), err))
		}
	}
	return errors.Join(errs...)
}

// execWorker is a worker running as a child process
type execWorker struct {
	id     string
	index  int
	cmd    *exec.Cmd
	done   chan struct{}
	err    error
	killed atomic.Bool
}

func (w *execWorker) ID() string  { return w.id }
func (w *execWorker) Index() int  { return w.index }
func (w *execWorker) PID() int    { return w.cmd.Process.Pid }
func (w *execWorker) Wait() error { <-w.done; return w.err }

func (w *execWorker) Exited() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

func (w *execWorker) Kill() error {
	if w.Exited() {
		return nil
	}
	w.killed.Store(true)
	if err := w.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// reap waits for the child and records why it stopped
func (w *execWorker) reap(onExit func(w *execWorker)) {
	err := w.cmd.Wait()
	if w.killed.Load() {
		err = ErrTerminated
	}
	w.err = err
	onExit(w)
	close(w.done)
}

// WorkerOptions configures one in-process worker run
type WorkerOptions struct {
	ID        string
	Index     int
	Workers   int
	EventLoop eventloop.Kind
	Factory   EngineFactory
	Logger    *zap.Logger
	// ShutdownTimeout bounds the graceful engine shutdown on interrupt
	ShutdownTimeout time.Duration
	// OnState observes state transitions
	OnState func(WorkerState)
}

// Serve runs one worker in the current process: select a loop, build the
// engine, replay t, start on socket and run the loop until ctx is done or
// the engine stops. socket is not closed.
func Serve(ctx context.Context, socket *os.File, t Tables, opts WorkerOptions) error {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.Int("worker", opts.Index), zap.Int("pid", os.Getpid()))

	state := func(s WorkerState) {
		logger.Debug("worker state", zap.Stringer("state", s))
		if opts.OnState != nil {
			opts.OnState(s)
		}
	}
	state(Unstarted)
	defer state(Terminated)

	loop := eventloop.Select(logger, eventloop.Prefer(opts.EventLoop))
	defer loop.Close()

	if opts.Factory == nil {
		return errors.New("worker has no engine factory")
	}
	engine := opts.Factory(loop, logger)
	if err := Replay(engine, t); err != nil {
		logger.Error("table replay failed", zap.Error(err))
		return err
	}
	state(TableReplayed)

	if err := engine.Start(socket, opts.Workers); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	state(Listening)
	logger.Info("worker listening", zap.String("loop", loop.Name()))

	loopCtx, stopLoop := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = loop.Run(loopCtx)
	}()
	defer func() {
		stopLoop()
		wg.Wait()
	}()

	select {
	case <-ctx.Done():
		timeout := opts.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		sctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := engine.Shutdown(sctx); err != nil {
			logger.Warn("engine shutdown", zap.Error(err))
		}
		return nil
	case err := <-engine.Done():
		if err != nil {
			return fmt.Errorf("engine stopped: %w", err)
		}
		return nil
	}
}

// inlineWorker runs Serve on a goroutine of the current process. It is the
// single worker used when the platform cannot spawn processes.
type inlineWorker struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func startInline(ctx context.Context, socket *os.File, t Tables, opts WorkerOptions) *inlineWorker {
	ctx, cancel := context.WithCancel(ctx)
	w := &inlineWorker{id: opts.ID, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(w.done)
		defer socket.Close()
		w.err = Serve(ctx, socket, t, opts)
	}()
	return w
}

func (w *inlineWorker) ID() string  { return w.id }
func (w *inlineWorker) Index() int  { return 0 }
func (w *inlineWorker) PID() int    { return os.Getpid() }
func (w *inlineWorker) Wait() error { <-w.done; return w.err }

func (w *inlineWorker) Exited() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

// Kill interrupts the inline worker; it closes its own loop and returns
func (w *inlineWorker) Kill() error {
	w.cancel()
	return nil
}
