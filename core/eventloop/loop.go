// Package eventloop provides the single-goroutine cooperative loop each
// worker runs. Tasks posted to a loop execute one at a time in posting
// order; a task that blocks stalls the whole loop.
package eventloop

import (
	"context"
	"errors"
)

var (
	ErrClosed = errors.New("event loop is closed")
	// ErrUnsupported marks a loop implementation the platform cannot provide
	ErrUnsupported = errors.New("event loop not supported on this platform")
)

// Loop is a cooperative scheduler
type Loop interface {
	Name() string
	// Post queues task. It never blocks on the task itself.
	Post(task func()) error
	// Run executes tasks until ctx is done or Close is called.
	Run(ctx context.Context) error
	Close() error
}

// Exec posts task to l and waits until it has run or ctx is done
func Exec(ctx context.Context, l Loop, task func()) error {
	done := make(chan struct{})
	if err := l.Post(func() {
		defer close(done)
		task()
	}); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
