package http

import (
	"fmt"
	nethttp "net/http"
)

// Exception is an error a handler returns to answer with a specific status
type Exception struct {
	StatusCode int
	Detail     string
}

// NewException creates an Exception. Detail defaults to the status text.
func NewException(statusCode int, detail ...string) *Exception {
	d := nethttp.StatusText(statusCode)
	if len(detail) > 0 && detail[0] != "" {
		d = detail[0]
	}
	return &Exception{StatusCode: statusCode, Detail: d}
}

func (e *Exception) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Detail)
}

// Response renders the exception as a text response
func (e *Exception) Response() Response {
	res := Text(e.Detail)
	res.StatusCode = e.StatusCode
	return res
}
