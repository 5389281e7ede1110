// Package handler captures user handlers into immutable descriptors at
// registration time. Classification is an explicit type switch over the
// supported function shapes, so dispatch never needs reflection.
package handler

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime"

	"github.com/searchktools/hive/core/http"
)

var (
	ErrNilHandler         = errors.New("handler is nil")
	ErrUnsupportedHandler = errors.New("unsupported handler signature")
)

// Descriptor is the immutable record kept for every registered callable
type Descriptor[F any] struct {
	Fn      F
	IsAsync bool
	Arity   int
	Name    string
}

// Func is the normalized form every route handler is adapted into
type Func func(ctx context.Context, req *http.Request) (http.Response, error)

// EventFunc is the normalized form of startup and shutdown hooks
type EventFunc func(ctx context.Context) error

// Describe classifies a route handler and wraps it so that its result is
// normalized into an http.Response.
func Describe(h any) (Descriptor[Func], error) {
	if isNil(h) {
		return Descriptor[Func]{}, ErrNilHandler
	}

	name := NameOf(h)

	switch fn := h.(type) {
	case func() any:
		return Descriptor[Func]{
			Fn: func(_ context.Context, _ *http.Request) (http.Response, error) {
				return http.Normalize(fn())
			},
			Arity: 0,
			Name:  name,
		}, nil
	case func(*http.Request) any:
		return Descriptor[Func]{
			Fn: func(_ context.Context, req *http.Request) (http.Response, error) {
				return http.Normalize(fn(req))
			},
			Arity: 1,
			Name:  name,
		}, nil
	case func(context.Context) (any, error):
		return Descriptor[Func]{
			Fn: func(ctx context.Context, _ *http.Request) (http.Response, error) {
				v, err := fn(ctx)
				if err != nil {
					return http.Response{}, err
				}
				return http.Normalize(v)
			},
			IsAsync: true,
			Arity:   0,
			Name:    name,
		}, nil
	case func(context.Context, *http.Request) (any, error):
		return Descriptor[Func]{
			Fn: func(ctx context.Context, req *http.Request) (http.Response, error) {
				v, err := fn(ctx, req)
				if err != nil {
					return http.Response{}, err
				}
				return http.Normalize(v)
			},
			IsAsync: true,
			Arity:   1,
			Name:    name,
		}, nil
	default:
		return Descriptor[Func]{}, fmt.Errorf("%w: route handler %T", ErrUnsupportedHandler, h)
	}
}

// DescribeEvent classifies a startup/shutdown hook
func DescribeEvent(h any) (Descriptor[EventFunc], error) {
	if isNil(h) {
		return Descriptor[EventFunc]{}, ErrNilHandler
	}

	name := NameOf(h)

	switch fn := h.(type) {
	case func():
		return Descriptor[EventFunc]{
			Fn: func(context.Context) error {
				fn()
				return nil
			},
			Name: name,
		}, nil
	case func() error:
		return Descriptor[EventFunc]{
			Fn:   func(context.Context) error { return fn() },
			Name: name,
		}, nil
	case func(context.Context) error:
		return Descriptor[EventFunc]{Fn: fn, IsAsync: true, Name: name}, nil
	default:
		return Descriptor[EventFunc]{}, fmt.Errorf("%w: event handler %T", ErrUnsupportedHandler, h)
	}
}

// NameOf returns the fully qualified function name of h, or "" when h is not a func
func NameOf(h any) string {
	v := reflect.ValueOf(h)
	if v.Kind() != reflect.Func || v.IsNil() {
		return ""
	}
	if f := runtime.FuncForPC(v.Pointer()); f != nil {
		return f.Name()
	}
	return ""
}

func isNil(h any) bool {
	if h == nil {
		return true
	}
	v := reflect.ValueOf(h)
	return v.Kind() == reflect.Func && v.IsNil()
}
