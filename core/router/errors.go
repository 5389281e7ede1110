package router

import "errors"

var (
	ErrInvalidMethod   = errors.New("invalid http method")
	ErrInvalidPath     = errors.New("invalid route path")
	ErrInvalidEndpoint = errors.New("invalid websocket endpoint")
	ErrInvalidEvent    = errors.New("invalid lifecycle event")
)
