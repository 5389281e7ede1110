package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Environment variables and inherited descriptors of a spawned worker
const (
	EnvWorkerID    = "HIVE_WORKER_ID"
	EnvWorkerIndex = "HIVE_WORKER_INDEX"

	socketFD   = 3 // ExtraFiles[0]
	manifestFD = 4 // ExtraFiles[1]
)

// Spawner starts n workers, each receiving its own duplicate of socket and
// a private copy of payload
type Spawner interface {
	Spawn(ctx context.Context, n int, socket *Socket, payload Manifest) ([]WorkerHandle, error)
}

// ExecSpawner re-executes a binary once per worker. The child inherits
// the socket as fd 3 and reads its manifest from fd 4.
type ExecSpawner struct {
	Executable string
	Args       []string
	Env        []string
	Stdout     io.Writer
	Stderr     io.Writer
	Logger     *zap.Logger
	// OnExit is called once a worker has been reaped
	OnExit func(h WorkerHandle, err error)
}

// Spawn starts n child processes. If one fails to start, the ones already
// running are killed.
func (s *ExecSpawner) Spawn(ctx context.Context, n int, socket *Socket, payload Manifest) ([]WorkerHandle, error) {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	handles := make([]WorkerHandle, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			_ = KillAll(handles)
			return nil, err
		}
		h, err := s.spawnOne(i, socket, payload, logger)
		if err != nil {
			_ = KillAll(handles)
			return nil, fmt.Errorf("spawn worker %d: %w", i, err)
		}
		handles = append(handles, h)
	}
	return handles, nil
}

func (s *ExecSpawner) spawnOne(index int, socket *Socket, payload Manifest, logger *zap.Logger) (*execWorker, error) {
	sock, err := socket.TryClone()
	if err != nil {
		return nil, err
	}
	defer sock.Close()

	manifestR, manifestW, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	defer manifestR.Close()

	id := uuid.NewString()
	cmd := exec.Command(s.Executable, s.Args...)
	cmd.Env = append(append([]string{}, s.Env...),
		EnvWorkerID+"="+id,
		EnvWorkerIndex+"="+strconv.Itoa(index),
	)
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr
	cmd.ExtraFiles = []*os.File{sock, manifestR}
	cmd.SysProcAttr = sysProcAttr()

	if err := cmd.Start(); err != nil {
		manifestW.Close()
		return nil, err
	}

	w := &execWorker{id: id, index: index, cmd: cmd, done: make(chan struct{})}
	go w.reap(func(w *execWorker) {
		logger.Info("worker exited", zap.Int("worker", w.index), zap.Int("pid", w.PID()), zap.Error(w.err))
		if s.OnExit != nil {
			s.OnExit(w, w.err)
		}
	})

	payload.WorkerID = id
	_, werr := payload.WriteTo(manifestW)
	cerr := manifestW.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = w.Kill()
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	logger.Info("worker spawned", zap.Int("worker", index), zap.Int("pid", cmd.Process.Pid), zap.String("id", id))
	return w, nil
}

// InlineSpawner runs a single worker inside the current process
type InlineSpawner struct {
	Tables  Tables
	Options WorkerOptions
}

// Spawn ignores n and starts exactly one inline worker
func (s *InlineSpawner) Spawn(ctx context.Context, _ int, socket *Socket, payload Manifest) ([]WorkerHandle, error) {
	sock, err := socket.TryClone()
	if err != nil {
		return nil, err
	}

	opts := s.Options
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if payload.Workers > 0 {
		opts.Workers = payload.Workers
	}
	return []WorkerHandle{startInline(ctx, sock, payload.Apply(s.Tables), opts)}, nil
}
