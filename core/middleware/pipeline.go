// Package middleware holds the before/after request phase model: the Args
// that flow between phases, the pass-through adapter every middleware handler
// is wrapped in, and the Pipeline the engine uses to run a phase in order.
package middleware

import (
	"context"
	"errors"
	"fmt"

	"github.com/searchktools/hive/core/handler"
	"github.com/searchktools/hive/core/http"
)

// Phase is the invocation point of a middleware relative to the route handler
type Phase string

const (
	BeforeRequest Phase = "BEFORE_REQUEST"
	AfterRequest  Phase = "AFTER_REQUEST"
)

// ErrInvalidPhase is returned for a phase outside BEFORE_REQUEST/AFTER_REQUEST
var ErrInvalidPhase = errors.New("invalid middleware phase")

// Valid reports whether p is one of the two known phases
func (p Phase) Valid() bool {
	return p == BeforeRequest || p == AfterRequest
}

// ParsePhase converts a phase name into a Phase
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhase, s)
	}
	return p, nil
}

// Args is the argument set flowing through the phases. Response is nil
// during BEFORE_REQUEST.
type Args struct {
	Request  *http.Request
	Response *http.Response
}

// Func is the normalized middleware form: it must return the Args it was given
type Func func(ctx context.Context, args *Args) (*Args, error)

// Runner executes task, blocking until it is done. async tells the runner
// whether the task came from an asynchronous descriptor.
type Runner func(ctx context.Context, async bool, task func()) error

// Inline is a Runner that calls the task on the current goroutine
func Inline(_ context.Context, _ bool, task func()) error {
	task()
	return nil
}

// Pipeline runs middleware descriptors of one phase in registration order
type Pipeline struct {
	phase    Phase
	handlers []handler.Descriptor[Func]
}

// NewPipeline creates an empty pipeline for phase
func NewPipeline(phase Phase) *Pipeline {
	return &Pipeline{
		phase:    phase,
		handlers: make([]handler.Descriptor[Func], 0, 8),
	}
}

// Use appends a middleware to the pipeline
func (p *Pipeline) Use(d handler.Descriptor[Func]) *Pipeline {
	p.handlers = append(p.handlers, d)
	return p
}

// Phase returns the pipeline phase
func (p *Pipeline) Phase() Phase {
	return p.phase
}

// Len returns the number of middlewares in the pipeline
func (p *Pipeline) Len() int {
	return len(p.handlers)
}

// Execute runs every middleware in order. The first error aborts the
// remaining middlewares and is returned to the caller.
func (p *Pipeline) Execute(ctx context.Context, args *Args, run Runner) (*Args, error) {
	if run == nil {
		run = Inline
	}

	for _, d := range p.handlers {
		var (
			out     *Args
			callErr error
		)
		if err := run(ctx, d.IsAsync, func() {
			out, callErr = d.Fn(ctx, args)
		}); err != nil {
			return args, err
		}
		if callErr != nil {
			return args, callErr
		}
		if out != nil {
			args = out
		}
	}

	return args, nil
}
