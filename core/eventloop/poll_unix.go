//go:build linux || darwin

package eventloop

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/searchktools/hive/core/poller"
)

// pollLoop runs tasks on one locked OS thread that sleeps in the platform
// poller. Post wakes it through a self-pipe.
type pollLoop struct {
	p        poller.Poller
	rfd, wfd int

	mu      sync.Mutex
	queue   []func()
	closed  bool
	running bool

	pending     atomic.Bool
	releaseOnce sync.Once
}

func newPoll(p poller.Poller) (Loop, error) {
	fds := make([]int, 2)
	if err := unix.Pipe(fds); err != nil {
		return nil, err
	}
	for _, fd := range fds {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(fds[0])
			unix.Close(fds[1])
			return nil, err
		}
	}
	if err := p.Add(fds[0]); err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return nil, err
	}

	return &pollLoop{p: p, rfd: fds[0], wfd: fds[1]}, nil
}

func (l *pollLoop) Name() string { return l.p.Name() }

func (l *pollLoop) Post(task func()) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.queue = append(l.queue, task)
	l.mu.Unlock()

	if l.pending.CompareAndSwap(false, true) {
		l.wake()
	}
	return nil
}

// wake writes one byte to the self-pipe. EAGAIN means the pipe is full,
// so a wakeup is already queued.
func (l *pollLoop) wake() {
	_, _ = unix.Write(l.wfd, []byte{1})
}

func (l *pollLoop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.running = true
	l.mu.Unlock()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	defer func() {
		l.mu.Lock()
		l.running = false
		closed := l.closed
		l.mu.Unlock()
		if closed {
			l.release()
		}
	}()

	stop := context.AfterFunc(ctx, l.wake)
	defer stop()

	buf := make([]byte, 64)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		l.mu.Lock()
		closed := l.closed
		l.mu.Unlock()
		if closed {
			return nil
		}

		ready, err := l.p.Wait(-1)
		if err != nil {
			return err
		}
		for _, fd := range ready {
			if fd != l.rfd {
				continue
			}
			for {
				if n, err := unix.Read(l.rfd, buf); n <= 0 || err != nil {
					break
				}
			}
		}

		l.pending.Store(false)
		l.mu.Lock()
		tasks := l.queue
		l.queue = nil
		l.mu.Unlock()

		for _, task := range tasks {
			task()
		}
	}
}

func (l *pollLoop) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	running := l.running
	l.mu.Unlock()

	if running {
		l.wake()
		return nil
	}
	return l.release()
}

func (l *pollLoop) release() error {
	var err error
	l.releaseOnce.Do(func() {
		unix.Close(l.rfd)
		unix.Close(l.wfd)
		err = l.p.Close()
	})
	return err
}
