package main

import (
	"context"
	"errors"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/searchktools/hive/app"
	"github.com/searchktools/hive/core/http"
	"github.com/searchktools/hive/core/middleware"
	"github.com/searchktools/hive/core/router"
	"github.com/searchktools/hive/core/websocket"
)

// registerDemo declares the demo application. It must register the same
// tables in every process.
func registerDemo(a *app.App, logger *zap.Logger, staticDir string) error {
	var errs []error
	add := func(err error) { errs = append(errs, err) }

	a.AddResponseHeader("Server", "hive")

	add(a.Get("/", func() any { return "Welcome to hive!" }, router.Const()))
	add(a.Get("/ping", func() any { return "pong" }))

	add(a.Get("/api/status", func() any {
		return map[string]any{
			"status_code": 200,
			"headers":     map[string]string{"Content-Type": "application/json"},
			"body": map[string]any{
				"status":  "ok",
				"version": version,
				"pid":     os.Getpid(),
			},
		}
	}))

	add(a.Get("/api/users/:id", func(req *http.Request) any {
		return map[string]any{
			"body": map[string]string{"user_id": req.Param("id")},
		}
	}))

	add(a.Get("/api/search", func(ctx context.Context, req *http.Request) (any, error) {
		q := req.Query("q")
		if q == "" {
			return nil, http.NewException(400, "missing q")
		}
		return map[string]any{
			"body": map[string]string{"query": q, "page": req.Query("page")},
		}, nil
	}))

	add(a.Post("/api/users", func(req *http.Request) any {
		return map[string]any{
			"status_code": 201,
			"body":        map[string]string{"message": "user created", "size": strconv.Itoa(len(req.Body))},
		}
	}))

	add(a.BeforeRequest("/api/users/:id")(func(args *middleware.Args) {
		args.Request.SetHeader("X-Seen-By", "hive")
	}))
	add(a.AfterRequest("/api/users/:id")(func(args *middleware.Args) {
		args.Response.Headers["X-Request-Path"] = args.Request.URL.Path
	}))

	add(a.Startup(func() { logger.Info("worker ready", zap.Int("pid", os.Getpid())) }))
	add(a.Shutdown(func(context.Context) error {
		logger.Info("worker stopping", zap.Int("pid", os.Getpid()))
		return logger.Sync()
	}))

	echo := websocket.New()
	add(echo.On(websocket.EventConnect, func(c *websocket.Conn, _ string) string { return "connected " + c.ID }))
	add(echo.On(websocket.EventMessage, func(_ *websocket.Conn, msg string) string { return msg }))
	add(echo.On(websocket.EventClose, func(*websocket.Conn, string) string { return "" }))
	add(a.WebSocket("/ws", echo))

	if staticDir != "" {
		add(a.AddDirectory("/static", staticDir, "index.html", true))
	}

	return errors.Join(errs...)
}
