package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Canonical response keys
const (
	KeyStatusCode = "status_code"
	KeyHeaders    = "headers"
	KeyBody       = "body"
	KeyType       = "type"
)

const (
	HeaderContentType = "Content-Type"
	ContentTypeText   = "text/plain"
	ContentTypeJSON   = "application/json"
)

// ErrInvalidStatusCode is returned when a status_code cannot be coerced to an integer
var ErrInvalidStatusCode = errors.New("status_code is not an integer")

// Response is the canonical response shape every route handler result is
// normalized into. Extra holds caller-supplied keys outside the canonical set.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       any
	Type       string
	Extra      map[string]any
}

// Text wraps a raw value as a text/plain 200 response
func Text(body any) Response {
	return Response{
		StatusCode: 200,
		Body:       body,
		Type:       "text",
		Headers:    map[string]string{HeaderContentType: ContentTypeText},
	}
}

// Normalize converts a handler return value into a Response.
//
// Mappings (any map with string keys) are used as the base object: status_code is coerced to an int
// (default 200), headers default to empty, body defaults to "", and any other
// key is kept in Extra. Everything else is wrapped with Text.
func Normalize(v any) (Response, error) {
	switch res := v.(type) {
	case Response:
		return res.withDefaults(), nil
	case *Response:
		if res == nil {
			return Text(nil), nil
		}
		return res.withDefaults(), nil
	case map[string]any:
		return fromMap(res)
	case map[string]string:
		m := make(map[string]any, len(res))
		for k, val := range res {
			m[k] = val
		}
		return fromMap(m)
	default:
		if m, ok := stringKeyed(v); ok {
			return fromMap(m)
		}
		return Text(v), nil
	}
}

// stringKeyed converts any map with string keys, such as map[string]int
// or a named map type, into a map[string]any
func stringKeyed(v any) (map[string]any, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}

	m := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		m[iter.Key().String()] = iter.Value().Interface()
	}
	return m, true
}

func fromMap(m map[string]any) (Response, error) {
	res := Response{StatusCode: 200, Body: "", Headers: map[string]string{}}

	for key, val := range m {
		switch key {
		case KeyStatusCode:
			code, err := coerceStatus(val)
			if err != nil {
				return Response{}, err
			}
			res.StatusCode = code
		case KeyHeaders:
			res.Headers = coerceHeaders(val)
		case KeyBody:
			res.Body = val
		case KeyType:
			if s, ok := val.(string); ok {
				res.Type = s
				continue
			}
			res.setExtra(key, val)
		default:
			res.setExtra(key, val)
		}
	}

	return res, nil
}

func (r *Response) setExtra(key string, val any) {
	if r.Extra == nil {
		r.Extra = make(map[string]any)
	}
	r.Extra[key] = val
}

func (r Response) withDefaults() Response {
	if r.StatusCode == 0 {
		r.StatusCode = 200
	}
	if r.Headers == nil {
		r.Headers = map[string]string{}
	}
	if r.Body == nil {
		r.Body = ""
	}
	return r
}

func coerceStatus(v any) (int, error) {
	switch c := v.(type) {
	case int:
		return c, nil
	case int8:
		return int(c), nil
	case int16:
		return int(c), nil
	case int32:
		return int(c), nil
	case int64:
		return int(c), nil
	case uint:
		return int(c), nil
	case uint8:
		return int(c), nil
	case uint16:
		return int(c), nil
	case uint32:
		return int(c), nil
	case uint64:
		return int(c), nil
	case uintptr:
		return int(c), nil
	case float32:
		return floatStatus(float64(c))
	case float64:
		return floatStatus(c)
	case json.Number:
		i, err := c.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidStatusCode, c.String())
		}
		return int(i), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(c))
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidStatusCode, c)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("%w: %T", ErrInvalidStatusCode, v)
	}
}

func floatStatus(f float64) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidStatusCode, f)
	}
	return int(f), nil
}

func coerceHeaders(v any) map[string]string {
	switch h := v.(type) {
	case map[string]string:
		return maps.Clone(h)
	case map[string]any:
		out := make(map[string]string, len(h))
		for k, val := range h {
			out[k] = fmt.Sprint(val)
		}
		return out
	default:
		m, ok := stringKeyed(v)
		if !ok {
			return map[string]string{}
		}
		out := make(map[string]string, len(m))
		for k, val := range m {
			out[k] = fmt.Sprint(val)
		}
		return out
	}
}

// Map returns the canonical mapping form of the response
func (r Response) Map() map[string]any {
	m := make(map[string]any, 4+len(r.Extra))
	for k, v := range r.Extra {
		m[k] = v
	}
	m[KeyStatusCode] = r.StatusCode
	m[KeyHeaders] = r.Headers
	m[KeyBody] = r.Body
	if r.Type != "" {
		m[KeyType] = r.Type
	}
	return m
}

// Header returns a response header value, ignoring key case
func (r Response) Header(key string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// BodyBytes renders the body for the wire. Strings and byte slices are sent
// as-is; other values are JSON encoded.
func (r Response) BodyBytes() ([]byte, error) {
	switch b := r.Body.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(b), nil
	case []byte:
		return b, nil
	case fmt.Stringer:
		return []byte(b.String()), nil
	default:
		return json.Marshal(b)
	}
}
