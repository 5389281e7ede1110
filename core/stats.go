package core

import (
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/searchktools/hive/core/pools"
)

type engineCounters struct {
	requests atomic.Uint64
	failures atomic.Uint64
	notFound atomic.Uint64
}

// Stats is a snapshot of one engine's counters
type Stats struct {
	Requests  uint64                `json:"requests"`
	Failures  uint64                `json:"failures"`
	NotFound  uint64                `json:"not_found"`
	Pool      pools.WorkerPoolStats `json:"pool"`
	WebSocket map[string]any        `json:"websocket"`
}

// Stats returns the engine counters. Pool is zero before Start.
func (e *Engine) Stats() Stats {
	s := Stats{
		Requests:  e.stats.requests.Load(),
		Failures:  e.stats.failures.Load(),
		NotFound:  e.stats.notFound.Load(),
		WebSocket: e.wsHandler.Hub().Stats(),
	}
	if p := e.pool.Load(); p != nil {
		s.Pool = p.Stats()
	}
	return s
}

// StatsJSON returns Stats as indented JSON
func (e *Engine) StatsJSON() string {
	data, _ := json.MarshalIndent(e.Stats(), "", "  ")
	return string(data)
}

// StatsText returns Stats as human-readable text
func (e *Engine) StatsText() string {
	s := e.Stats()
	return fmt.Sprintf(`Engine Statistics
=================

Requests:  %d
Failures:  %d
Not found: %d

Worker Pool:
  Workers:   %d
  Submitted: %d
  Completed: %d
  Inline:    %d

WebSocket:
  Current: %v
  Total:   %v
`,
		s.Requests, s.Failures, s.NotFound,
		s.Pool.NumWorkers, s.Pool.TasksSubmitted, s.Pool.TasksCompleted, s.Pool.InlineRuns,
		s.WebSocket["current_conns"], s.WebSocket["total_conns"],
	)
}
