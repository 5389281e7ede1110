package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchktools/hive/core/handler"
	"github.com/searchktools/hive/core/http"
	"github.com/searchktools/hive/core/middleware"
	"github.com/searchktools/hive/core/websocket"
)

func TestRouter_RoutesKeepOrder(t *testing.T) {
	r := New()

	calls := []struct {
		method  Method
		path    string
		handler any
		isConst bool
		async   bool
	}{
		{GET, "/a", func() any { return "a" }, false, false},
		{POST, "/b", func(context.Context, *http.Request) (any, error) { return "b", nil }, true, true},
		{GET, "/a", func(*http.Request) any { return "dup" }, false, false},
		{DELETE, "/c/:id", func(context.Context) (any, error) { return nil, nil }, false, true},
	}

	for _, c := range calls {
		_, err := r.AddRoute(c.method, c.path, c.handler, c.isConst)
		require.NoError(t, err)
	}

	routes := r.Routes()
	require.Len(t, routes, len(calls))
	for i, c := range calls {
		assert.Equal(t, c.method, routes[i].Method)
		assert.Equal(t, c.path, routes[i].Path)
		assert.Equal(t, c.isConst, routes[i].IsConst)
		assert.Equal(t, c.async, routes[i].Handler.IsAsync)
	}

	routes[0].Path = "/mutated"
	assert.Equal(t, "/a", r.Routes()[0].Path)
}

func TestRouter_WrappedHandlerNormalizes(t *testing.T) {
	r := New()

	fn, err := r.GET("/status", func() any {
		return map[string]any{"status_code": "404", "body": "nope"}
	})
	require.NoError(t, err)

	res, err := fn(context.Background(), http.NewRequest("GET", "/status"))
	require.NoError(t, err)
	assert.Equal(t, 404, res.StatusCode)
	assert.Equal(t, "nope", res.Body)
}

func TestRouter_VerbWrappers(t *testing.T) {
	r := New()
	h := func() any { return "x" }

	wrappers := map[Method]func(string, any, ...RouteOption) (handler.Func, error){
		GET: r.GET, POST: r.POST, PUT: r.PUT, DELETE: r.DELETE, PATCH: r.PATCH,
		HEAD: r.HEAD, OPTIONS: r.OPTIONS, CONNECT: r.CONNECT, TRACE: r.TRACE,
	}
	for _, m := range Methods() {
		_, err := wrappers[m]("/"+string(m), h)
		require.NoError(t, err)
	}

	_, err := r.GET("/const", h, Const())
	require.NoError(t, err)

	routes := r.Routes()
	require.Len(t, routes, 10)
	for i, m := range Methods() {
		assert.Equal(t, m, routes[i].Method)
		assert.False(t, routes[i].IsConst)
	}
	assert.True(t, routes[9].IsConst)
}

func TestRouter_Rejects(t *testing.T) {
	r := New()
	h := func() any { return nil }

	_, err := r.AddRoute("FETCH", "/", h, false)
	assert.ErrorIs(t, err, ErrInvalidMethod)

	_, err = r.AddRoute(GET, "", h, false)
	assert.ErrorIs(t, err, ErrInvalidPath)

	_, err = r.AddRoute(GET, "users", h, false)
	assert.ErrorIs(t, err, ErrInvalidPath)

	_, err = r.AddRoute(GET, "/users/:", h, false)
	assert.ErrorIs(t, err, ErrInvalidPath)

	_, err = r.AddRoute(GET, "/users", func() {}, false)
	assert.ErrorIs(t, err, handler.ErrUnsupportedHandler)

	assert.Zero(t, r.Len())
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("patch")
	require.NoError(t, err)
	assert.Equal(t, PATCH, m)

	_, err = ParseMethod("BREW")
	assert.ErrorIs(t, err, ErrInvalidMethod)
}

func TestMiddlewareRouter(t *testing.T) {
	m := NewMiddlewareRouter()

	require.NoError(t, m.BeforeRequest("/items")(func(*middleware.Args) {}))
	require.NoError(t, m.AfterRequest(Wildcard)(func(context.Context, *middleware.Args) error { return nil }))
	require.NoError(t, m.BeforeRequest("/items")(func(*middleware.Args) {}))

	entries := m.Routes()
	require.Len(t, entries, 3)
	assert.Equal(t, BeforeRequest, entries[0].Phase)
	assert.Equal(t, AfterRequest, entries[1].Phase)
	assert.Equal(t, Wildcard, entries[1].Path)
	assert.True(t, entries[1].Handler.IsAsync)
	assert.Equal(t, "/items", entries[2].Path)

	err := m.AddRoute("AROUND", "/", func(*middleware.Args) {})
	assert.ErrorIs(t, err, middleware.ErrInvalidPhase)

	err = m.BeforeRequest("nope")(func(*middleware.Args) {})
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func wsEntry(t *testing.T, greeting string) websocket.Entry {
	t.Helper()
	e := websocket.New()
	require.NoError(t, e.On(websocket.EventConnect, func(*websocket.Conn, string) string { return greeting }))
	require.NoError(t, e.On(websocket.EventMessage, func(*websocket.Conn, string) string { return "" }))
	require.NoError(t, e.On(websocket.EventClose, func(*websocket.Conn, string) string { return "" }))
	return *e
}

func TestWebSocketRouter_Overwrite(t *testing.T) {
	w := NewWebSocketRouter()

	require.NoError(t, w.AddRoute("/ws", wsEntry(t, "first")))
	require.NoError(t, w.AddRoute("/chat", wsEntry(t, "chat")))
	require.NoError(t, w.AddRoute("/ws", wsEntry(t, "second")))

	routes := w.Routes()
	require.Len(t, routes, 2)

	got, err := routes["/ws"].Connect.Fn(context.Background(), nil, "")
	require.NoError(t, err)
	assert.Equal(t, "second", got)
	assert.Equal(t, []string{"/chat", "/ws"}, w.Endpoints())
}

func TestWebSocketRouter_Rejects(t *testing.T) {
	w := NewWebSocketRouter()

	err := w.AddRoute("/ws", *websocket.New())
	assert.ErrorIs(t, err, websocket.ErrIncompleteEntry)

	err = w.AddRoute("ws", wsEntry(t, ""))
	assert.ErrorIs(t, err, ErrInvalidEndpoint)
	assert.Empty(t, w.Routes())
}

func TestEventTable_LastWins(t *testing.T) {
	e := NewEventTable()
	var calls []string

	require.NoError(t, e.Set(Startup, func() { calls = append(calls, "first") }))
	require.NoError(t, e.Set(Startup, func() { calls = append(calls, "second") }))

	d, ok := e.Get(Startup)
	require.True(t, ok)
	require.NoError(t, d.Fn(context.Background()))
	assert.Equal(t, []string{"second"}, calls)

	_, ok = e.Get(Shutdown)
	assert.False(t, ok)

	assert.ErrorIs(t, e.Set("reload", func() {}), ErrInvalidEvent)
}
