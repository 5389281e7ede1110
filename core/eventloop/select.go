package eventloop

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/searchktools/hive/core/poller"
)

// Kind names a loop implementation, in order of preference
type Kind int

const (
	KindUring Kind = iota
	KindPoll
	KindStd
)

// Default starts the search at the fastest loop
const Default = KindUring

func (k Kind) String() string {
	switch k {
	case KindUring:
		return "uring"
	case KindPoll:
		return "poll"
	case KindStd:
		return "std"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind converts a loop name into a Kind. An empty name or "auto"
// means Default.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "", "auto":
		return Default, nil
	case "uring":
		return KindUring, nil
	case "poll", "epoll", "kqueue":
		return KindPoll, nil
	case "std":
		return KindStd, nil
	default:
		return 0, fmt.Errorf("unknown event loop %q", s)
	}
}

type options struct {
	preferred Kind
}

// Option tunes Select
type Option func(*options)

// Prefer starts the search at kind instead of the fastest implementation
func Prefer(kind Kind) Option {
	return func(o *options) {
		o.preferred = kind
	}
}

// Select returns the most preferred loop the platform supports. Each
// unavailable implementation is logged and the next one is tried; the std
// loop always works.
func Select(logger *zap.Logger, opts ...Option) Loop {
	if logger == nil {
		logger = zap.NewNop()
	}

	o := options{preferred: Default}
	for _, opt := range opts {
		opt(&o)
	}

	for kind := o.preferred; kind < KindStd; kind++ {
		l, err := build(kind)
		if err == nil {
			logger.Debug("event loop selected", zap.String("loop", l.Name()))
			return l
		}
		logger.Info("event loop unavailable, falling back",
			zap.Stringer("loop", kind),
			zap.Error(err))
	}

	return NewStd()
}

func build(kind Kind) (Loop, error) {
	var (
		p   poller.Poller
		err error
	)

	switch kind {
	case KindUring:
		p, err = poller.NewUringPoller()
	case KindPoll:
		p, err = poller.NewPoller()
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, kind)
	}
	if err != nil {
		if errors.Is(err, poller.ErrUnsupported) {
			return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
		}
		return nil, err
	}

	l, err := newPoll(p)
	if err != nil {
		p.Close()
		return nil, err
	}
	return l, nil
}
