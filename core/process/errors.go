package process

import (
	"errors"
	"fmt"
)

var (
	// ErrTerminated is reported by a worker killed by the parent
	ErrTerminated = errors.New("worker terminated")
	// ErrManifestMismatch means the worker rebuilt different tables than
	// the parent registered
	ErrManifestMismatch = errors.New("manifest does not match local tables")
	// ErrNotWorker is returned by RunWorker outside a spawned worker
	ErrNotWorker = errors.New("not running as a worker process")
)

// BindError reports a listening socket that could not be created. It is
// fatal: no worker is spawned.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// ReplayError reports a table entry a worker could not replay into its
// engine. It is fatal for that worker only.
type ReplayError struct {
	Table string
	Index int
	Err   error
}

func (e *ReplayError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("replay %s: %v", e.Table, e.Err)
	}
	return fmt.Sprintf("replay %s[%d]: %v", e.Table, e.Index, e.Err)
}

func (e *ReplayError) Unwrap() error {
	return e.Err
}
