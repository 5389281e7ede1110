package process

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/searchktools/hive/core/eventloop"
)

// IsWorker reports whether this process was spawned by a Pool
func IsWorker() bool {
	return os.Getenv(EnvWorkerID) != ""
}

// WorkerIndex returns the index of this worker, or -1 in the parent
func WorkerIndex() int {
	i, err := strconv.Atoi(os.Getenv(EnvWorkerIndex))
	if err != nil {
		return -1
	}
	return i
}

// RunWorker is the entry point of a spawned child. local are the tables
// the child rebuilt by running the application's registration code; they
// must match the manifest the parent sent. It serves until SIGINT/SIGTERM
// or until the parent kills the process.
func RunWorker(ctx context.Context, local Tables, opts WorkerOptions) error {
	if !IsWorker() {
		return ErrNotWorker
	}

	manifestFile := os.NewFile(manifestFD, "hive-manifest")
	if manifestFile == nil {
		return fmt.Errorf("manifest descriptor %d missing", manifestFD)
	}
	m, err := ReadManifest(manifestFile)
	manifestFile.Close()
	if err != nil {
		return err
	}

	if err := m.Verify(local); err != nil {
		return err
	}

	socket := os.NewFile(socketFD, "hive-socket")
	if socket == nil {
		return fmt.Errorf("socket descriptor %d missing", socketFD)
	}
	defer socket.Close()

	opts.ID = m.WorkerID
	opts.Index = WorkerIndex()
	if m.Workers > 0 {
		opts.Workers = m.Workers
	}
	kind, err := eventloop.ParseKind(m.EventLoop)
	if err != nil {
		return &ReplayError{Table: "event_loop", Index: -1, Err: err}
	}
	opts.EventLoop = kind

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return Serve(ctx, socket, m.Apply(local), opts)
}
