package core

import (
	"context"
	"errors"
	"io"
	"maps"
	"net"
	nethttp "net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/searchktools/hive/core/http"
	"github.com/searchktools/hive/core/middleware"
	"github.com/searchktools/hive/core/router"
)

// ServeHTTP dispatches one request: websocket endpoints, then routes in
// registration order, then directory mounts, then 404.
func (e *Engine) ServeHTTP(w nethttp.ResponseWriter, r *nethttp.Request) {
	start := time.Now()
	e.stats.requests.Add(1)

	if entry, ok := e.websockets[r.URL.Path]; ok && isUpgrade(r) {
		if err := e.wsHandler.Serve(w, r, r.URL.Path, entry); err != nil {
			e.logger.Debug("websocket ended", zap.String("path", r.URL.Path), zap.Error(err))
		}
		return
	}

	method, err := router.ParseMethod(r.Method)
	if err != nil {
		e.writeResponse(w, r, textResponse(nethttp.StatusMethodNotAllowed))
		return
	}

	entry, params, found := e.routes.Find(method, r.URL.Path)
	if !found {
		if e.serveDirectory(w, r) {
			return
		}
		e.stats.notFound.Add(1)
		e.writeResponse(w, r, textResponse(nethttp.StatusNotFound))
		return
	}

	req, err := e.buildRequest(w, r, params)
	if err != nil {
		e.writeResponse(w, r, textResponse(nethttp.StatusRequestEntityTooLarge))
		return
	}

	res, completed := e.handle(r.Context(), req, entry)
	e.writeResponse(w, r, res)

	// a task abandoned on context cancellation may still hold req
	if completed {
		http.ReleaseRequest(req)
	}

	e.logger.Debug("request",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", res.StatusCode),
		zap.Duration("took", time.Since(start)))
}

// handle runs before middleware, the route handler and after middleware.
// completed is false when a task was abandoned because ctx ended.
func (e *Engine) handle(ctx context.Context, req *http.Request, entry *routeEntry) (http.Response, bool) {
	path := req.URL.Path

	before := e.pipeline(router.BeforeRequest, path)
	if _, err := before.Execute(ctx, &middleware.Args{Request: req}, e.run); err != nil {
		return e.errorResponse(entry, err), !isContextErr(err)
	}

	res, err := e.invoke(ctx, req, entry)
	if err != nil {
		return e.errorResponse(entry, err), !isContextErr(err)
	}

	after := e.pipeline(router.AfterRequest, path)
	if _, err := after.Execute(ctx, &middleware.Args{Request: req, Response: &res}, e.run); err != nil {
		return e.errorResponse(entry, err), !isContextErr(err)
	}

	return res, true
}

func (e *Engine) pipeline(phase router.Phase, path string) *middleware.Pipeline {
	p := middleware.NewPipeline(phase)
	for _, d := range e.middleware.MatchAll(phase, path) {
		p.Use(d)
	}
	return p
}

func (e *Engine) invoke(ctx context.Context, req *http.Request, entry *routeEntry) (http.Response, error) {
	call := func(ctx context.Context) (http.Response, error) {
		var (
			res     http.Response
			callErr error
		)
		d := entry.route.Handler
		if err := e.run(ctx, d.IsAsync, func() { res, callErr = d.Fn(ctx, req) }); err != nil {
			return http.Response{}, err
		}
		return res, callErr
	}

	if entry.cache == nil {
		return call(ctx)
	}
	return entry.cache.get(ctx, call)
}

// get returns the cached response, computing it on first use. The
// computation outlives the request that triggered it and only a successful
// result is kept, so a failure is retried by the next request.
func (c *constCache) get(ctx context.Context, call func(context.Context) (http.Response, error)) (http.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.done {
		res, err := call(context.WithoutCancel(ctx))
		if err != nil {
			return http.Response{}, err
		}
		c.res, c.done = res, true
	}

	res := c.res
	// after middleware may mutate headers, so hand out a copy
	res.Headers = maps.Clone(res.Headers)
	return res, nil
}

func (e *Engine) errorResponse(entry *routeEntry, err error) http.Response {
	e.stats.failures.Add(1)

	var exc *http.Exception
	if errors.As(err, &exc) {
		return exc.Response()
	}

	e.logger.Error("handler failed",
		zap.String("method", string(entry.route.Method)),
		zap.String("path", entry.route.Path),
		zap.String("handler", entry.route.Handler.Name),
		zap.Error(err))
	return textResponse(nethttp.StatusInternalServerError)
}

func (e *Engine) buildRequest(w nethttp.ResponseWriter, r *nethttp.Request, params map[string]string) (*http.Request, error) {
	req := http.AcquireRequest()
	req.Method = r.Method
	req.URL = http.URL{Scheme: "http", Host: r.Host, Path: r.URL.Path}
	if r.TLS != nil {
		req.URL.Scheme = "https"
	}

	for k, v := range r.Header {
		req.Headers[k] = strings.Join(v, ", ")
	}
	e.headerMu.RLock()
	for _, h := range e.requestHeaders {
		req.SetHeader(h.Name, h.Value)
	}
	e.headerMu.RUnlock()

	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			req.Queries[k] = v[0]
		}
	}
	for k, v := range params {
		req.PathParams[k] = v
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		req.IPAddr = host
	} else {
		req.IPAddr = r.RemoteAddr
	}

	if r.Body != nil {
		body, err := io.ReadAll(nethttp.MaxBytesReader(w, r.Body, e.opts.MaxBodyBytes))
		if err != nil {
			http.ReleaseRequest(req)
			return nil, err
		}
		req.Body = append(req.Body, body...)
	}

	return req, nil
}

func (e *Engine) writeResponse(w nethttp.ResponseWriter, r *nethttp.Request, res http.Response) {
	h := w.Header()

	e.headerMu.RLock()
	for k, v := range e.responseHeaders {
		h.Set(k, v)
	}
	e.headerMu.RUnlock()

	for k, v := range res.Headers {
		h.Set(k, v)
	}

	body, err := res.BodyBytes()
	if err != nil {
		e.logger.Error("response body encoding failed", zap.String("path", r.URL.Path), zap.Error(err))
		res, body = textResponse(nethttp.StatusInternalServerError), []byte(nethttp.StatusText(nethttp.StatusInternalServerError))
		h.Set(HeaderContentType, http.ContentTypeText)
	}
	if h.Get(HeaderContentType) == "" && res.Body != nil {
		if _, isText := res.Body.(string); !isText {
			if _, isBytes := res.Body.([]byte); !isBytes {
				h.Set(HeaderContentType, http.ContentTypeJSON)
			}
		}
	}

	status := res.StatusCode
	if status < 100 || status > 999 {
		e.logger.Warn("invalid status code, sending 500", zap.Int("status", status), zap.String("path", r.URL.Path))
		status = nethttp.StatusInternalServerError
	}

	w.WriteHeader(status)
	if r.Method != nethttp.MethodHead {
		_, _ = w.Write(body)
	}
}

func textResponse(status int) http.Response {
	res := http.Text(nethttp.StatusText(status))
	res.StatusCode = status
	return res
}

func isUpgrade(r *nethttp.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
