// Package poller wraps the platform I/O multiplexers (epoll, kqueue) behind
// one small interface used by the event loop.
package poller

import "errors"

// ErrUnsupported is returned when the platform has no usable multiplexer
var ErrUnsupported = errors.New("poller not supported on this platform")

// Poller is the I/O multiplexing interface
type Poller interface {
	Name() string
	Add(fd int) error
	Remove(fd int) error
	// Wait blocks for at most timeout milliseconds (-1 blocks forever) and
	// returns the readable descriptors.
	Wait(timeout int) ([]int, error)
	Close() error
}
