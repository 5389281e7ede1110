package router

import (
	"cmp"
	"slices"
	"sync"
)

// Matcher dispatches requests over a compiled table keyed by K (a method or
// a middleware phase). Lookups honour registration order: the first
// registered entry that matches wins, even when a later entry is static.
// Static paths are kept in a map for O(1) lookup and static hits are cached
// under the normalized path, so the cache never outgrows the static table.
type Matcher[K comparable, T any] struct {
	static  map[string]map[K][]indexed[T] // path -> key -> entries
	dynamic []compiledEntry[K, T]
	size    int

	cache sync.Map // cacheKey -> *indexed[T]
}

type indexed[T any] struct {
	index int
	value T
}

type compiledEntry[K comparable, T any] struct {
	index   int
	key     K
	pattern *Pattern
	value   T
}

type cacheKey[K comparable] struct {
	key  K
	path string
}

// NewMatcher creates an empty matcher
func NewMatcher[K comparable, T any]() *Matcher[K, T] {
	return &Matcher[K, T]{static: make(map[string]map[K][]indexed[T])}
}

// Add compiles path and appends an entry under key
func (m *Matcher[K, T]) Add(key K, path string, value T) error {
	p, err := CompilePattern(path)
	if err != nil {
		return err
	}

	idx := m.size
	m.size++

	if p.Static() {
		k := p.key()
		if m.static[k] == nil {
			m.static[k] = make(map[K][]indexed[T])
		}
		m.static[k][key] = append(m.static[k][key], indexed[T]{index: idx, value: value})
	} else {
		m.dynamic = append(m.dynamic, compiledEntry[K, T]{index: idx, key: key, pattern: p, value: value})
	}

	m.cache.Clear()
	return nil
}

// Len returns the number of entries added
func (m *Matcher[K, T]) Len() int {
	return m.size
}

// Find returns the first registered entry under key that matches path
func (m *Matcher[K, T]) Find(key K, path string) (T, map[string]string, bool) {
	np := normalize(path)
	ck := cacheKey[K]{key: key, path: np}
	if cached, ok := m.cache.Load(ck); ok {
		return cached.(*indexed[T]).value, nil, true
	}

	var (
		best   T
		found  bool
		limit  = m.size
		static bool
	)

	if entries := m.static[np][key]; len(entries) > 0 {
		best, found, static, limit = entries[0].value, true, true, entries[0].index
	}

	for _, e := range m.dynamic {
		if e.index >= limit {
			break
		}
		if e.key != key {
			continue
		}
		if params, ok := e.pattern.Match(path); ok {
			return e.value, params, true
		}
	}

	if static {
		m.cache.Store(ck, &indexed[T]{value: best})
	}
	return best, nil, found
}

// MatchAll returns every entry under key matching path, in registration order
func (m *Matcher[K, T]) MatchAll(key K, path string) []T {
	hits := slices.Clone(m.static[normalize(path)][key])
	for _, e := range m.dynamic {
		if e.key != key {
			continue
		}
		if _, ok := e.pattern.Match(path); ok {
			hits = append(hits, indexed[T]{index: e.index, value: e.value})
		}
	}

	slices.SortFunc(hits, func(a, b indexed[T]) int { return cmp.Compare(a.index, b.index) })

	out := make([]T, len(hits))
	for i, h := range hits {
		out[i] = h.value
	}
	return out
}
