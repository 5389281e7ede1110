package core

import "errors"

// HTTP header constants
const (
	HeaderContentType   = "Content-Type"
	HeaderContentLength = "Content-Length"
	HeaderServer        = "Server"
)

const (
	defaultMaxBodyBytes = 10 << 20
	defaultReadTimeout  = 10
	defaultWriteTimeout = 30
)

// Error definitions
var (
	ErrAlreadyStarted = errors.New("engine already started")
	ErrNotStarted     = errors.New("engine not started")
	ErrNilSocket      = errors.New("listening socket is nil")
)
