// Package metrics exposes Prometheus collectors for chat exchanges and lender
// directory resolution.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mortgage-criteria-chat/internal/domain"
)

const namespace = "mortgage_chat"

// Collectors owns a private registry so tests and multiple hosts never collide
// on the global one.
type Collectors struct {
	registry    *prometheus.Registry
	exchanges   *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	directories *prometheus.CounterVec
	sessions    prometheus.Gauge
}

func New() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		exchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exchanges_total",
			Help:      "Settled chat exchanges by outcome.",
		}, []string{"outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "exchange_duration_seconds",
			Help:      "Backend round trip time per exchange.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		}, []string{"outcome"}),
		directories: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lender_directory_resolutions_total",
			Help:      "Lender directory resolutions by source.",
		}, []string{"source"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Chat sessions held in memory.",
		}),
	}
	c.registry.MustRegister(c.exchanges, c.latency, c.directories, c.sessions)
	return c
}

func (c *Collectors) ObserveExchange(outcome domain.Outcome, d time.Duration) {
	c.exchanges.WithLabelValues(string(outcome)).Inc()
	c.latency.WithLabelValues(string(outcome)).Observe(d.Seconds())
}

func (c *Collectors) ObserveDirectory(fallback bool) {
	source := "authoritative"
	if fallback {
		source = "fallback"
	}
	c.directories.WithLabelValues(source).Inc()
}

func (c *Collectors) SetActiveSessions(n int) {
	c.sessions.Set(float64(n))
}

func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
