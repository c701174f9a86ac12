// Package metrics exposes Prometheus collectors for the enrichment service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	enrichmentRunsTotal        *prometheus.CounterVec
	providerRequestsTotal      *prometheus.CounterVec
	acquisitionLegsTotal       *prometheus.CounterVec
	stageDurationSeconds       *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors. It is safe to call
// multiple times.
func Init() {
	once.Do(func() {
		enrichmentRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enrichd_runs_total",
				Help: "Total enrichment pipeline runs, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		providerRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enrichd_provider_requests_total",
				Help: "Total model provider requests, labeled by provider and outcome.",
			},
			[]string{"provider", "outcome"},
		)

		acquisitionLegsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enrichd_acquisition_legs_total",
				Help: "Total content acquisition attempts, labeled by leg and outcome.",
			},
			[]string{"leg", "outcome"},
		)

		stageDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "enrichd_stage_duration_seconds",
				Help:    "Histogram of pipeline stage latencies, labeled by stage.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
			},
			[]string{"stage"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 30},
			},
			[]string{"method", "route"},
		)
	})
}

// ObserveRun records a pipeline run outcome.
func ObserveRun(outcome string) {
	Init()
	enrichmentRunsTotal.WithLabelValues(outcome).Inc()
}

// ObserveProviderRequest records one model provider call.
func ObserveProviderRequest(provider, outcome string) {
	Init()
	providerRequestsTotal.WithLabelValues(provider, outcome).Inc()
}

// ObserveAcquisitionLeg records one acquisition attempt.
func ObserveAcquisitionLeg(leg, outcome string) {
	Init()
	acquisitionLegsTotal.WithLabelValues(leg, outcome).Inc()
}

// ObserveStage records a pipeline stage duration.
func ObserveStage(stage string, d time.Duration) {
	Init()
	stageDurationSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveHTTPRequest records an HTTP request for both the counter and
// the latency histogram.
func ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, httpStatusLabel(status)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

func httpStatusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
