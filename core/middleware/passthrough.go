package middleware

import (
	"context"
	"fmt"

	"github.com/searchktools/hive/core/handler"
)

// Passthrough adapts a user middleware to the pass-through contract: the
// inner handler observes (and may mutate) the Args, and Invoke always hands
// the very same Args to the next phase.
type Passthrough struct {
	Phase   Phase
	IsAsync bool
	inner   func(ctx context.Context, args *Args) error
}

// Invoke calls the inner handler and returns args unchanged
func (p Passthrough) Invoke(ctx context.Context, args *Args) (*Args, error) {
	if err := p.inner(ctx, args); err != nil {
		return args, err
	}
	return args, nil
}

// NewPassthrough classifies h and builds the adapter for phase.
// Supported shapes are func(*Args) and func(context.Context, *Args) error.
func NewPassthrough(phase Phase, h any) (Passthrough, error) {
	if !phase.Valid() {
		return Passthrough{}, fmt.Errorf("%w: %q", ErrInvalidPhase, phase)
	}

	switch fn := h.(type) {
	case nil:
		return Passthrough{}, handler.ErrNilHandler
	case func(*Args):
		if fn == nil {
			return Passthrough{}, handler.ErrNilHandler
		}
		return Passthrough{
			Phase: phase,
			inner: func(_ context.Context, args *Args) error {
				fn(args)
				return nil
			},
		}, nil
	case func(context.Context, *Args) error:
		if fn == nil {
			return Passthrough{}, handler.ErrNilHandler
		}
		return Passthrough{Phase: phase, IsAsync: true, inner: fn}, nil
	default:
		return Passthrough{}, fmt.Errorf("%w: middleware %T", handler.ErrUnsupportedHandler, h)
	}
}

// Describe wraps h in a Passthrough and captures it as a descriptor
func Describe(phase Phase, h any) (handler.Descriptor[Func], error) {
	p, err := NewPassthrough(phase, h)
	if err != nil {
		return handler.Descriptor[Func]{}, err
	}

	return handler.Descriptor[Func]{
		Fn:      p.Invoke,
		IsAsync: p.IsAsync,
		Arity:   1,
		Name:    handler.NameOf(h),
	}, nil
}
