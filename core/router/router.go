// Package router builds the registration tables an application declares:
// routes, middleware entries, WebSocket endpoints, lifecycle hooks and the
// flat header/directory records. Tables keep declaration order and are
// handed to the process pool as copies.
package router

import (
	"fmt"
	"slices"
	"sync"

	"github.com/searchktools/hive/core/handler"
)

// Route is one entry of the route table
type Route struct {
	Method  Method
	Path    string
	Handler handler.Descriptor[handler.Func]
	IsConst bool
}

// RouteOption tunes a route at registration
type RouteOption func(*Route)

// Const marks a route whose response does not depend on the request, so the
// engine may compute it once and reuse it.
func Const() RouteOption {
	return func(r *Route) {
		r.IsConst = true
	}
}

// Router builds the ordered route table. Identical (method, path) pairs are
// kept; the engine dispatches to the first one registered.
type Router struct {
	mu     sync.RWMutex
	routes []Route
}

// New creates an empty Router
func New() *Router {
	return &Router{routes: make([]Route, 0, 16)}
}

// AddRoute classifies h, appends it to the table and returns the wrapped
// handler whose results are normalized into an http.Response.
func (r *Router) AddRoute(method Method, path string, h any, isConst bool) (handler.Func, error) {
	if !method.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMethod, method)
	}
	if _, err := CompilePattern(path); err != nil {
		return nil, err
	}

	d, err := handler.Describe(h)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	r.mu.Lock()
	r.routes = append(r.routes, Route{Method: method, Path: path, Handler: d, IsConst: isConst})
	r.mu.Unlock()

	return d.Fn, nil
}

func (r *Router) add(method Method, path string, h any, opts []RouteOption) (handler.Func, error) {
	var probe Route
	for _, opt := range opts {
		opt(&probe)
	}
	return r.AddRoute(method, path, h, probe.IsConst)
}

func (r *Router) GET(path string, h any, opts ...RouteOption) (handler.Func, error) {
	return r.add(GET, path, h, opts)
}

func (r *Router) POST(path string, h any, opts ...RouteOption) (handler.Func, error) {
	return r.add(POST, path, h, opts)
}

func (r *Router) PUT(path string, h any, opts ...RouteOption) (handler.Func, error) {
	return r.add(PUT, path, h, opts)
}

func (r *Router) DELETE(path string, h any, opts ...RouteOption) (handler.Func, error) {
	return r.add(DELETE, path, h, opts)
}

func (r *Router) PATCH(path string, h any, opts ...RouteOption) (handler.Func, error) {
	return r.add(PATCH, path, h, opts)
}

func (r *Router) HEAD(path string, h any, opts ...RouteOption) (handler.Func, error) {
	return r.add(HEAD, path, h, opts)
}

func (r *Router) OPTIONS(path string, h any, opts ...RouteOption) (handler.Func, error) {
	return r.add(OPTIONS, path, h, opts)
}

func (r *Router) CONNECT(path string, h any, opts ...RouteOption) (handler.Func, error) {
	return r.add(CONNECT, path, h, opts)
}

func (r *Router) TRACE(path string, h any, opts ...RouteOption) (handler.Func, error) {
	return r.add(TRACE, path, h, opts)
}

// Routes returns a copy of the table in registration order
func (r *Router) Routes() []Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.routes)
}

// Len returns the number of registered routes
func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.routes)
}
