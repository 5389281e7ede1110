package eventloop

import (
	"context"
	"sync"
)

// stdLoop is the portable loop: a goroutine draining a task channel
type stdLoop struct {
	tasks     chan func()
	done      chan struct{}
	closeOnce sync.Once
}

// NewStd creates the portable loop
func NewStd() Loop {
	return &stdLoop{
		tasks: make(chan func(), 1024),
		done:  make(chan struct{}),
	}
}

func (l *stdLoop) Name() string { return KindStd.String() }

func (l *stdLoop) Post(task func()) error {
	select {
	case <-l.done:
		return ErrClosed
	default:
	}

	select {
	case l.tasks <- task:
		return nil
	case <-l.done:
		return ErrClosed
	}
}

func (l *stdLoop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		case task := <-l.tasks:
			task()
		}
	}
}

func (l *stdLoop) Close() error {
	l.closeOnce.Do(func() { close(l.done) })
	return nil
}
