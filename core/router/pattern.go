package router

import (
	"fmt"
	"strings"
)

// Wildcard is the middleware path that applies to every request
const Wildcard = "*"

type segmentKind uint8

const (
	segStatic segmentKind = iota
	segParam
	segCatchAll
)

type segment struct {
	kind  segmentKind
	value string // literal text or parameter name
}

// Pattern is a compiled route path. Segments are literal text, ":name"
// parameters or a trailing "*name" catch-all. Empty segments are ignored,
// so "/a/" and "/a" are the same pattern.
type Pattern struct {
	raw      string
	segments []segment
	static   bool
}

// CompilePattern validates and compiles path
func CompilePattern(path string) (*Pattern, error) {
	if path == Wildcard {
		path = "/*"
	}
	if path == "" || path[0] != '/' {
		return nil, fmt.Errorf("%w: %q must begin with '/'", ErrInvalidPath, path)
	}

	p := &Pattern{raw: path, static: true}
	seen := make(map[string]struct{})
	parts := splitPath(path)

	for i, part := range parts {
		switch part[0] {
		case ':':
			name := part[1:]
			if name == "" {
				return nil, fmt.Errorf("%w: %q has an unnamed parameter", ErrInvalidPath, path)
			}
			if _, dup := seen[name]; dup {
				return nil, fmt.Errorf("%w: %q repeats parameter %q", ErrInvalidPath, path, name)
			}
			seen[name] = struct{}{}
			p.segments = append(p.segments, segment{kind: segParam, value: name})
			p.static = false
		case '*':
			if i != len(parts)-1 {
				return nil, fmt.Errorf("%w: %q catch-all must be the last segment", ErrInvalidPath, path)
			}
			p.segments = append(p.segments, segment{kind: segCatchAll, value: part[1:]})
			p.static = false
		default:
			p.segments = append(p.segments, segment{kind: segStatic, value: part})
		}
	}

	return p, nil
}

// MustCompilePattern is like CompilePattern but panics on error
func MustCompilePattern(path string) *Pattern {
	p, err := CompilePattern(path)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Pattern) String() string {
	return p.raw
}

// Static reports whether the pattern has no parameters
func (p *Pattern) Static() bool {
	return p.static
}

// key is the normalized form used for static lookups
func (p *Pattern) key() string {
	return normalize(p.raw)
}

// Match reports whether path matches and returns the captured parameters.
// Static patterns return a nil map.
func (p *Pattern) Match(path string) (map[string]string, bool) {
	parts := splitPath(path)
	var params map[string]string

	for i, seg := range p.segments {
		switch seg.kind {
		case segCatchAll:
			if seg.value != "" {
				if params == nil {
					params = make(map[string]string, 1)
				}
				params[seg.value] = strings.Join(parts[min(i, len(parts)):], "/")
			}
			return params, true
		case segParam:
			if i >= len(parts) {
				return nil, false
			}
			if params == nil {
				params = make(map[string]string, 4)
			}
			params[seg.value] = parts[i]
		default:
			if i >= len(parts) || parts[i] != seg.value {
				return nil, false
			}
		}
	}

	if len(parts) != len(p.segments) {
		return nil, false
	}
	return params, true
}

func splitPath(path string) []string {
	raw := strings.Split(path, "/")
	parts := raw[:0]
	for _, s := range raw {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}

func normalize(path string) string {
	return "/" + strings.Join(splitPath(path), "/")
}
