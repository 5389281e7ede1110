// Package websocket models WebSocket endpoints as a set of three callbacks
// (connect, message, close) and serves them on top of gorilla/websocket.
package websocket

import (
	"context"
	"errors"
	"fmt"

	"github.com/searchktools/hive/core/handler"
)

// Event names a WebSocket lifecycle callback
type Event string

const (
	EventConnect Event = "connect"
	EventMessage Event = "message"
	EventClose   Event = "close"
)

var (
	ErrIncompleteEntry = errors.New("websocket entry requires connect, message and close handlers")
	ErrUnknownEvent    = errors.New("unknown websocket event")
)

// Callback is the normalized form of every WebSocket handler. A non-empty
// return value is sent back to the client as a text frame.
type Callback func(ctx context.Context, c *Conn, msg string) (string, error)

type descriptor = handler.Descriptor[Callback]

// Entry is the handler set of one endpoint
type Entry struct {
	Connect descriptor
	Message descriptor
	Close   descriptor
}

// New returns an empty Entry
func New() *Entry {
	return &Entry{}
}

// On registers h for event. Supported shapes are
// func(*Conn, string) string and func(context.Context, *Conn, string) (string, error).
func (e *Entry) On(event Event, h any) error {
	d, err := DescribeCallback(h)
	if err != nil {
		return fmt.Errorf("websocket %s: %w", event, err)
	}

	switch event {
	case EventConnect:
		e.Connect = d
	case EventMessage:
		e.Message = d
	case EventClose:
		e.Close = d
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
	return nil
}

// Validate reports ErrIncompleteEntry unless all three callbacks are set
func (e Entry) Validate() error {
	if e.Connect.Fn == nil || e.Message.Fn == nil || e.Close.Fn == nil {
		return ErrIncompleteEntry
	}
	return nil
}

// DescribeCallback classifies a WebSocket handler
func DescribeCallback(h any) (handler.Descriptor[Callback], error) {
	name := handler.NameOf(h)

	switch fn := h.(type) {
	case nil:
		return handler.Descriptor[Callback]{}, handler.ErrNilHandler
	case func(*Conn, string) string:
		if fn == nil {
			return handler.Descriptor[Callback]{}, handler.ErrNilHandler
		}
		return handler.Descriptor[Callback]{
			Fn: func(_ context.Context, c *Conn, msg string) (string, error) {
				return fn(c, msg), nil
			},
			Arity: 2,
			Name:  name,
		}, nil
	case func(context.Context, *Conn, string) (string, error):
		if fn == nil {
			return handler.Descriptor[Callback]{}, handler.ErrNilHandler
		}
		return handler.Descriptor[Callback]{Fn: fn, IsAsync: true, Arity: 2, Name: name}, nil
	default:
		return handler.Descriptor[Callback]{}, fmt.Errorf("%w: websocket handler %T", handler.ErrUnsupportedHandler, h)
	}
}

// Exception closes the connection with a close code and reason when a
// callback returns it
type Exception struct {
	Code   int
	Reason string
}

func (e *Exception) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Reason)
}
