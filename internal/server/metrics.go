package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus collectors on a private registry.
// It also receives navigation session events from the site.
type Metrics struct {
	registry *prometheus.Registry

	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	navSessions  prometheus.Gauge
	navChanges   *prometheus.CounterVec
	postsPublish prometheus.Counter
}

// NewMetrics registers the folio collectors plus the Go runtime and
// process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "folio",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "folio",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		navSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "folio",
			Name:      "navspy_sessions",
			Help:      "Open section tracker sessions.",
		}),
		navChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "folio",
			Name:      "navspy_active_changes_total",
			Help:      "Active section changes pushed to browsers, by page.",
		}, []string{"page"}),
		postsPublish: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "folio",
			Name:      "posts_published_scheduled_total",
			Help:      "Scheduled posts published by the background publisher.",
		}),
	}
	m.registry.MustRegister(
		m.requests,
		m.duration,
		m.navSessions,
		m.navChanges,
		m.postsPublish,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) observeRequest(method, route string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) NavSessionOpened() { m.navSessions.Inc() }
func (m *Metrics) NavSessionClosed() { m.navSessions.Dec() }

func (m *Metrics) NavActiveChanged(page string) {
	m.navChanges.WithLabelValues(page).Inc()
}

// ScheduledPublished counts posts released by the background publisher.
func (m *Metrics) ScheduledPublished(n int) {
	m.postsPublish.Add(float64(n))
}
