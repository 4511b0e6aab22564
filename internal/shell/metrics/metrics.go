// Package metrics exposes Prometheus metrics for the HTTP API and the
// background workers.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/glasskube/distr-sub001/internal/core/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "distr"

var histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}

var statusTypes = []domain.StatusType{domain.StatusOK, domain.StatusProgressing, domain.StatusError}

// Metrics holds every collector on a private registry, so several instances
// can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	requestTotal   *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec

	checksTotal      *prometheus.CounterVec
	targetOutdated   *prometheus.GaugeVec
	updatesTotal     *prometheus.CounterVec
	deploymentStatus *prometheus.GaugeVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Count of processed HTTP requests",
		}, []string{"method", "route", "status"}),

		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution of HTTP handlers",
			Buckets:   histogramBuckets,
		}, []string{"method", "route"}),

		checksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "update_checks_total",
			Help:      "Update checks by result (outdated, current, error)",
		}, []string{"result"}),

		targetOutdated: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "target_outdated",
			Help:      "1 if a newer version is available for the deployment target",
		}, []string{"deployment_target"}),

		updatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "updates_total",
			Help:      "Automatic updates by result (ok, error)",
		}, []string{"result"}),

		deploymentStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "status",
			Name:      "deployment_status",
			Help:      "1 for the latest observed rollout status type of a deployment target",
		}, []string{"deployment_target", "type"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestTotal,
		m.requestLatency,
		m.checksTotal,
		m.targetOutdated,
		m.updatesTotal,
		m.deploymentStatus,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// =============================================================================
// HTTP
// =============================================================================

// Middleware records request count and latency per chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.requestTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.requestLatency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// =============================================================================
// Workers
// =============================================================================

// StatusObserved sets the status gauge of a target to its latest type.
func (m *Metrics) StatusObserved(targetID string, status domain.StatusType) {
	for _, t := range statusTypes {
		v := 0.0
		if t == status {
			v = 1
		}
		m.deploymentStatus.WithLabelValues(targetID, string(t)).Set(v)
	}
}

// CheckCompleted counts an update check and tracks whether the target is
// outdated.
func (m *Metrics) CheckCompleted(targetID string, outdated bool, err error) {
	switch {
	case err != nil:
		m.checksTotal.WithLabelValues("error").Inc()
		return
	case outdated:
		m.checksTotal.WithLabelValues("outdated").Inc()
		m.targetOutdated.WithLabelValues(targetID).Set(1)
	default:
		m.checksTotal.WithLabelValues("current").Inc()
		m.targetOutdated.WithLabelValues(targetID).Set(0)
	}
}

// UpdateApplied counts an automatic update attempt.
func (m *Metrics) UpdateApplied(targetID string, err error) {
	if err != nil {
		m.updatesTotal.WithLabelValues("error").Inc()
		return
	}
	m.updatesTotal.WithLabelValues("ok").Inc()
	m.targetOutdated.WithLabelValues(targetID).Set(0)
}
