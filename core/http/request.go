package http

import (
	"net/textproto"
	"sync"
)

// URL is the parsed target of a request
type URL struct {
	Scheme string
	Host   string
	Path   string
}

// Request is the value handed to route handlers and middleware.
// Header keys are stored in canonical MIME form.
type Request struct {
	Method     string
	URL        URL
	Headers    map[string]string
	Queries    map[string]string
	PathParams map[string]string
	Body       []byte
	IPAddr     string
}

var requestPool = sync.Pool{
	New: func() any {
		return &Request{
			Headers:    make(map[string]string, 8),
			Queries:    make(map[string]string),
			PathParams: make(map[string]string),
			Body:       make([]byte, 0, 1024),
		}
	},
}

// AcquireRequest returns an empty request from the pool
func AcquireRequest() *Request {
	return requestPool.Get().(*Request)
}

// ReleaseRequest resets req and returns it to the pool.
// Handlers must not retain req after they return.
func ReleaseRequest(req *Request) {
	req.Reset()
	requestPool.Put(req)
}

// NewRequest builds a standalone request, mostly useful in tests
func NewRequest(method, path string) *Request {
	return &Request{
		Method:     method,
		URL:        URL{Scheme: "http", Path: path},
		Headers:    make(map[string]string),
		Queries:    make(map[string]string),
		PathParams: make(map[string]string),
	}
}

// Reset clears the request for reuse (maps keep their buckets)
func (r *Request) Reset() {
	r.Method = ""
	r.URL = URL{}
	r.IPAddr = ""
	clear(r.Headers)
	clear(r.Queries)
	clear(r.PathParams)
	r.Body = r.Body[:0]
}

// Header gets a request header
func (r *Request) Header(key string) string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers[textproto.CanonicalMIMEHeaderKey(key)]
}

// SetHeader sets a request header, replacing any previous value
func (r *Request) SetHeader(key, value string) {
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	r.Headers[textproto.CanonicalMIMEHeaderKey(key)] = value
}

// Query gets a query parameter
func (r *Request) Query(key string) string {
	if r.Queries == nil {
		return ""
	}
	return r.Queries[key]
}

// Param gets a path parameter
func (r *Request) Param(key string) string {
	if r.PathParams == nil {
		return ""
	}
	return r.PathParams[key]
}
