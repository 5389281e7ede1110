package process

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are the pool counters exported by the parent process
type Metrics struct {
	spawned prometheus.Counter
	exited  *prometheus.CounterVec
	running prometheus.Gauge
	inline  prometheus.Gauge

	gatherer prometheus.Gatherer
}

// NewMetrics registers the pool metrics on reg. A nil reg uses a private
// registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		spawned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "hive",
			Subsystem: "pool",
			Name:      "workers_spawned_total",
			Help:      "Total number of worker processes started",
		}),
		exited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hive",
			Subsystem: "pool",
			Name:      "workers_exited_total",
			Help:      "Total number of worker processes that stopped, by reason",
		}, []string{"reason"}),
		running: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "hive",
			Subsystem: "pool",
			Name:      "workers_running",
			Help:      "Number of worker processes currently running",
		}),
		inline: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "hive",
			Subsystem: "pool",
			Name:      "inline_mode",
			Help:      "1 when the pool runs a single inline worker",
		}),
		gatherer: reg,
	}
}

func (m *Metrics) workerStarted() {
	m.spawned.Inc()
	m.running.Inc()
}

func (m *Metrics) workerExited(reason string) {
	m.exited.WithLabelValues(reason).Inc()
	m.running.Dec()
}

// Handler serves the metrics in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func exitReason(err error) string {
	switch {
	case err == nil:
		return "exited"
	case errors.Is(err, ErrTerminated):
		return "killed"
	default:
		return "crashed"
	}
}
