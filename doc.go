/*
Package hive is a multi-process HTTP and WebSocket server framework.

Applications declare routes, before/after middleware, websocket endpoints,
static directory mounts, global request and response headers, and
startup/shutdown hooks. hive binds one listening socket in the parent
process, re-executes the binary once per worker, hands every worker a
duplicate of the socket, and replays the declared tables into each
worker's embedded engine.

Quick Start

	package main

	import (
	    "context"

	    "github.com/searchktools/hive/app"
	    "github.com/searchktools/hive/config"
	    "github.com/searchktools/hive/core/http"
	)

	func main() {
	    cfg := config.Default()
	    cfg.Server.Processes = 4

	    a := app.New(cfg, nil)
	    a.Get("/ping", func() any { return "pong" })
	    a.Get("/users/:id", func(req *http.Request) any {
	        return map[string]any{"status_code": 200, "body": req.Param("id")}
	    })

	    if err := a.Start(context.Background()); err != nil {
	        panic(err)
	    }
	}

Registration runs again in every worker, so it must be deterministic: the
parent sends a manifest of its tables and a worker refuses to serve when
its own tables differ.

Modules

  - app: application facade owning the tables
  - config: YAML and HIVE_* environment configuration
  - core: the embedded engine a worker replays its tables into
  - core/http: request, response normalization and HTTP exceptions
  - core/handler: registration-time handler classification
  - core/router: route, middleware, websocket and event tables; path patterns
  - core/middleware: before/after request pipelines
  - core/websocket: endpoint callbacks, connections and the hub
  - core/process: shared socket, worker spawning, manifest, replay and signals
  - core/eventloop: per-worker event loops and their selection
  - core/poller: epoll and kqueue multiplexers
  - core/pools: work-stealing worker pool for asynchronous handlers
  - core/logging: zap logger construction

Processes and signals

SIGINT or SIGTERM in the parent kills every worker immediately. A worker
runs its shutdown hook only on a graceful stop: a signal delivered to the
worker itself, or cancellation of the inline worker used where process
spawning is unavailable.
*/
package hive
