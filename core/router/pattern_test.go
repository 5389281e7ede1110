package router

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPattern_Match(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		match   bool
		params  map[string]string
	}{
		{"/", "/", true, nil},
		{"/hello", "/hello", true, nil},
		{"/hello", "/hello/", true, nil},
		{"/hello", "/hello/world", false, nil},
		{"/user/:id", "/user/42", true, map[string]string{"id": "42"}},
		{"/user/:id", "/user", false, nil},
		{"/user/:id/posts/:post", "/user/1/posts/2", true, map[string]string{"id": "1", "post": "2"}},
		{"/static/*filepath", "/static/css/app.css", true, map[string]string{"filepath": "css/app.css"}},
		{"/static/*filepath", "/static", true, map[string]string{"filepath": ""}},
		{"/static/*", "/static/a", true, nil},
		{Wildcard, "/anything/at/all", true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+" "+tt.path, func(t *testing.T) {
			p, err := CompilePattern(tt.pattern)
			require.NoError(t, err)

			params, ok := p.Match(tt.path)
			assert.Equal(t, tt.match, ok)
			if tt.match {
				assert.Equal(t, tt.params, params)
			}
		})
	}
}

func TestCompilePattern_Rejects(t *testing.T) {
	for _, path := range []string{"", "x", "/a/:", "/a/:id/:id", "/a/*rest/b"} {
		_, err := CompilePattern(path)
		assert.ErrorIs(t, err, ErrInvalidPath, path)
	}
}

func TestMatcher_FirstMatchWins(t *testing.T) {
	m := NewMatcher[Method, string]()
	require.NoError(t, m.Add(GET, "/user/:id", "param"))
	require.NoError(t, m.Add(GET, "/user/admin", "static"))
	require.NoError(t, m.Add(GET, "/about", "about-1"))
	require.NoError(t, m.Add(GET, "/about", "about-2"))
	require.NoError(t, m.Add(POST, "/user/admin", "post"))

	v, params, ok := m.Find(GET, "/user/admin")
	require.True(t, ok)
	assert.Equal(t, "param", v)
	assert.Equal(t, map[string]string{"id": "admin"}, params)

	v, _, ok = m.Find(GET, "/about")
	require.True(t, ok)
	assert.Equal(t, "about-1", v)

	// cached lookup returns the same entry
	v, _, ok = m.Find(GET, "/about")
	require.True(t, ok)
	assert.Equal(t, "about-1", v)

	v, _, ok = m.Find(POST, "/user/admin")
	require.True(t, ok)
	assert.Equal(t, "post", v)

	_, _, ok = m.Find(PUT, "/user/admin")
	assert.False(t, ok)
	assert.Equal(t, 5, m.Len())
}

func TestMatcher_StaticBeforeLaterParam(t *testing.T) {
	m := NewMatcher[Method, string]()
	require.NoError(t, m.Add(GET, "/user/admin", "static"))
	require.NoError(t, m.Add(GET, "/user/:id", "param"))

	v, params, ok := m.Find(GET, "/user/admin")
	require.True(t, ok)
	assert.Equal(t, "static", v)
	assert.Nil(t, params)

	v, _, ok = m.Find(GET, "/user/7")
	require.True(t, ok)
	assert.Equal(t, "param", v)
}

func TestMatcher_CacheBoundedBySlashVariants(t *testing.T) {
	m := NewMatcher[Method, string]()
	require.NoError(t, m.Add(GET, "/ping", "pong"))

	for i := 0; i < 1000; i++ {
		variant := "/ping" + strings.Repeat("/", i)
		v, _, ok := m.Find(GET, variant)
		require.True(t, ok, variant)
		assert.Equal(t, "pong", v)
	}

	entries := 0
	m.cache.Range(func(_, _ any) bool {
		entries++
		return true
	})
	assert.Equal(t, 1, entries)
}

func TestMatcher_MatchAll(t *testing.T) {
	m := NewMatcher[Phase, string]()
	require.NoError(t, m.Add(BeforeRequest, Wildcard, "global"))
	require.NoError(t, m.Add(BeforeRequest, "/items", "items-1"))
	require.NoError(t, m.Add(AfterRequest, "/items", "after"))
	require.NoError(t, m.Add(BeforeRequest, "/items/:id", "item"))
	require.NoError(t, m.Add(BeforeRequest, "/items", "items-2"))

	assert.Equal(t, []string{"global", "items-1", "items-2"}, m.MatchAll(BeforeRequest, "/items"))
	assert.Equal(t, []string{"global", "item"}, m.MatchAll(BeforeRequest, "/items/3"))
	assert.Equal(t, []string{"after"}, m.MatchAll(AfterRequest, "/items"))
	assert.Empty(t, m.MatchAll(AfterRequest, "/other"))
}
