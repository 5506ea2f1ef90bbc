// Package metrics owns the Prometheus registry for the server. All methods are
// safe to call on a nil *Metrics so collaborators can be built without one.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sotto"

type Metrics struct {
	registry        *prometheus.Registry
	sessionOutcomes *prometheus.CounterVec
	profilesCreated prometheus.Counter
	reflections     *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		sessionOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "outcomes_total",
			Help:      "Session validation outcomes by final state.",
		}, []string{"state"}),
		profilesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "profile",
			Name:      "created_total",
			Help:      "Profiles created lazily on first authenticated request.",
		}),
		reflections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ai",
			Name:      "reflections_total",
			Help:      "AI reflection requests by result.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(m.sessionOutcomes, m.profilesCreated, m.reflections, m.httpRequests, m.httpDuration)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Register adds collectors owned by other packages, such as the database pool.
func (m *Metrics) Register(cs ...prometheus.Collector) {
	if m == nil {
		return
	}
	m.registry.MustRegister(cs...)
}

func (m *Metrics) SessionOutcome(state string) {
	if m == nil {
		return
	}
	m.sessionOutcomes.WithLabelValues(state).Inc()
}

func (m *Metrics) ProfileCreated() {
	if m == nil {
		return
	}
	m.profilesCreated.Inc()
}

func (m *Metrics) Reflection(result string) {
	if m == nil {
		return
	}
	m.reflections.WithLabelValues(result).Inc()
}

func (m *Metrics) HTTPRequest(method string, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
