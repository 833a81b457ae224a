// Package metrics exposes dashboard and backend activity as Prometheus series.
//
// Series:
//   - datainsight_events_total{event}: dashboard events (loads, sorts, saves, exports)
//   - datainsight_backend_requests_total{operation,outcome}: backend calls
//   - datainsight_backend_request_seconds{operation}: backend latency
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder implements both the dashboard Telemetry sink and the backend
// request Observer.
type Recorder struct {
	gatherer prometheus.Gatherer
	events   *prometheus.CounterVec
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// New registers the series on reg. A nil reg uses a fresh registry so tests
// and multiple servers in one process do not collide.
func New(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Recorder{
		gatherer: reg,
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "datainsight_events_total",
				Help: "Dashboard events by name",
			},
			[]string{"event"},
		),
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "datainsight_backend_requests_total",
				Help: "Backend API requests by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "datainsight_backend_request_seconds",
				Help: "Backend API request latency in seconds",
				// uploads of large sheets can approach the 90s client timeout
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 90},
			},
			[]string{"operation"},
		),
	}
}

// Record counts a dashboard event. The payload is not used as labels.
func (r *Recorder) Record(_ context.Context, event string, _ map[string]any) {
	r.events.WithLabelValues(event).Inc()
}

// ObserveRequest records one backend call.
func (r *Recorder) ObserveRequest(operation, outcome string, elapsed time.Duration) {
	r.requests.WithLabelValues(operation, outcome).Inc()
	r.latency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
