// Package metrics holds the Prometheus collectors shared by the media server
// and the worker.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	enqueued  *prometheus.CounterVec
	fallback  *prometheus.CounterVec
	completed *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	requests  *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		enqueued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "media_tasks_enqueued_total",
			Help: "Tasks accepted by the queue",
		}, []string{"kind"}),
		fallback: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "media_enqueue_fallback_total",
			Help: "Tasks executed inline because the queue was unavailable",
		}, []string{"kind"}),
		completed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "media_tasks_completed_total",
			Help: "Tasks finished, by result code",
		}, []string{"kind", "result"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "media_task_duration_seconds",
			Help:    "Time spent executing a task body",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
		}, []string{"kind"}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "media_http_requests_total",
			Help: "Ingress requests by route and status",
		}, []string{"route", "code"}),
	}
}

func (m *Metrics) Enqueued(kind string) { m.enqueued.WithLabelValues(kind).Inc() }

func (m *Metrics) Fallback(kind string) { m.fallback.WithLabelValues(kind).Inc() }

func (m *Metrics) Completed(kind, result string, took time.Duration) {
	m.completed.WithLabelValues(kind, result).Inc()
	m.duration.WithLabelValues(kind).Observe(took.Seconds())
}

func (m *Metrics) Request(route string, code int) {
	m.requests.WithLabelValues(route, http.StatusText(code)).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
