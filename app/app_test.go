package app

import (
	"context"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/searchktools/hive/config"
	"github.com/searchktools/hive/core/eventloop"
	"github.com/searchktools/hive/core/http"
	"github.com/searchktools/hive/core/middleware"
	"github.com/searchktools/hive/core/process"
	"github.com/searchktools/hive/core/router"
	"github.com/searchktools/hive/core/websocket"
)

func echoEntry(t *testing.T) *websocket.Entry {
	e := websocket.New()
	require.NoError(t, e.On(websocket.EventConnect, func(*websocket.Conn, string) string { return "" }))
	require.NoError(t, e.On(websocket.EventMessage, func(_ *websocket.Conn, msg string) string { return msg }))
	require.NoError(t, e.On(websocket.EventClose, func(*websocket.Conn, string) string { return "" }))
	return e
}

func TestTables(t *testing.T) {
	a := New(nil, nil)

	require.NoError(t, a.Get("/a", func() any { return "a" }))
	require.NoError(t, a.Post("/b", func(*http.Request) any { return "b" }, router.Const()))
	require.NoError(t, a.AddRoute(router.DELETE, "/c", func(context.Context) (any, error) { return "c", nil }, false))
	require.NoError(t, a.BeforeRequest("/a")(func(*middleware.Args) {}))
	require.NoError(t, a.AfterRequest("/a")(func(*middleware.Args) {}))
	require.NoError(t, a.AddDirectory("/static", "/srv", "index.html", false))
	a.AddRequestHeader("X-Req", "1")
	a.AddResponseHeader("X-Res", "2")
	require.NoError(t, a.Startup(func() {}))
	require.NoError(t, a.Shutdown(func(context.Context) error { return nil }))
	require.NoError(t, a.WebSocket("/ws", echoEntry(t)))

	tables := a.Tables()

	require.Len(t, tables.Routes, 3)
	assert.Equal(t, router.GET, tables.Routes[0].Method)
	assert.True(t, tables.Routes[1].IsConst)
	assert.True(t, tables.Routes[2].Handler.IsAsync)

	require.Len(t, tables.Middlewares, 2)
	assert.Equal(t, router.BeforeRequest, tables.Middlewares[0].Phase)
	assert.Equal(t, router.AfterRequest, tables.Middlewares[1].Phase)

	assert.Equal(t, []router.Directory{{Route: "/static", Root: "/srv", IndexFile: "index.html"}}, tables.Directories)
	assert.Equal(t, []router.Header{{Name: "X-Req", Value: "1"}}, tables.RequestHeaders)
	assert.Equal(t, []router.Header{{Name: "X-Res", Value: "2"}}, tables.ResponseHeaders)
	require.NotNil(t, tables.Startup)
	require.NotNil(t, tables.Shutdown)
	assert.True(t, tables.Shutdown.IsAsync)
	assert.Contains(t, tables.WebSockets, "/ws")

	// snapshots are independent of later registrations
	a.AddResponseHeader("X-Late", "3")
	assert.Len(t, tables.ResponseHeaders, 1)
}

func TestRegistrationErrors(t *testing.T) {
	a := New(nil, nil)

	assert.ErrorIs(t, a.Get("no-slash", func() any { return "" }), router.ErrInvalidPath)
	assert.Error(t, a.Get("/x", func() string { return "" }))
	assert.ErrorIs(t, a.AddDirectory("static", "/srv", "", false), ErrInvalidDirectory)
	assert.ErrorIs(t, a.AddDirectory("/static", "", "", false), ErrInvalidDirectory)
	assert.ErrorIs(t, a.WebSocket("/ws", nil), websocket.ErrIncompleteEntry)
	assert.ErrorIs(t, a.WebSocket("/ws", websocket.New()), websocket.ErrIncompleteEntry)

	assert.Empty(t, a.Tables().Routes)
}

func TestStartupLastWins(t *testing.T) {
	a := New(nil, nil)
	require.NoError(t, a.Startup(func() {}))
	require.NoError(t, a.Startup(func(context.Context) error { return nil }))

	assert.True(t, a.Tables().Startup.IsAsync)
}

// TestEngineFactory replays the tables into the default engine and serves
// them
func TestEngineFactory(t *testing.T) {
	a := New(nil, nil)
	require.NoError(t, a.Get("/ping", func() any { return "pong" }))
	require.NoError(t, a.Get("/users/:id", func(req *http.Request) any {
		return map[string]any{"status_code": 201, "body": req.Param("id")}
	}))
	a.AddResponseHeader("Server", "hive")

	loop := eventloop.NewStd()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = loop.Run(ctx) }()

	engine := a.EngineFactory()(loop, zaptest.NewLogger(t))
	require.NoError(t, process.Replay(engine, a.Tables()))

	srv := httptest.NewServer(engine.(nethttp.Handler))
	defer srv.Close()

	res, err := nethttp.Get(srv.URL + "/ping")
	require.NoError(t, err)
	body, _ := io.ReadAll(res.Body)
	res.Body.Close()
	assert.Equal(t, 200, res.StatusCode)
	assert.Equal(t, "pong", string(body))
	assert.Equal(t, "hive", res.Header.Get("Server"))

	res, err = nethttp.Get(srv.URL + "/users/7")
	require.NoError(t, err)
	body, _ = io.ReadAll(res.Body)
	res.Body.Close()
	assert.Equal(t, 201, res.StatusCode)
	assert.Equal(t, "7", string(body))
}

func TestStartRejectsUnknownEventLoop(t *testing.T) {
	cfg := config.Default()
	cfg.Server.EventLoop = "fibers"

	err := New(cfg, nil).Start(context.Background())
	assert.Error(t, err)
}

func TestEventLoopDefault(t *testing.T) {
	cfg := config.Default()
	kind, err := New(cfg, nil).eventLoop()
	require.NoError(t, err)
	assert.Equal(t, eventloop.Default, kind)

	cfg.Server.EventLoop = "std"
	kind, err = New(cfg, nil).eventLoop()
	require.NoError(t, err)
	assert.Equal(t, eventloop.KindStd, kind)
}
