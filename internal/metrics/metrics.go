// Package metrics exposes Prometheus collectors for the lead finder service.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Post evaluation outcomes.
const (
	OutcomeRelevant   = "relevant"
	OutcomeIrrelevant = "irrelevant"
	OutcomeError      = "error"
)

var (
	scansTotal                 *prometheus.CounterVec
	scanDurationSeconds        *prometheus.HistogramVec
	newLeadsTotal              *prometheus.CounterVec
	searchErrorsTotal          *prometheus.CounterVec
	batchErrorsTotal           *prometheus.CounterVec
	postsEvaluatedTotal        *prometheus.CounterVec
	scansInFlight              prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		scansTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadfinder_scans_total",
				Help: "Total number of scan passes, labeled by trigger and status.",
			},
			[]string{"trigger", "status"},
		)

		scanDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "leadfinder_scan_duration_seconds",
				Help:    "Histogram of scan pass durations, labeled by trigger.",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"trigger"},
		)

		newLeadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadfinder_new_leads_total",
				Help: "Total number of newly inserted leads, labeled by channel.",
			},
			[]string{"channel"},
		)

		searchErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadfinder_search_errors_total",
				Help: "Total number of failed forum searches, labeled by channel.",
			},
			[]string{"channel"},
		)

		batchErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadfinder_batch_errors_total",
				Help: "Total number of channel batches that failed to commit, labeled by channel.",
			},
			[]string{"channel"},
		)

		postsEvaluatedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadfinder_posts_evaluated_total",
				Help: "Total number of candidate posts evaluated, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		scansInFlight = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "leadfinder_scans_in_flight",
				Help: "Number of scan passes currently running.",
			},
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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30, 120},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeChannel normalizes a channel name into a label value.
// It returns "unknown" if nothing is left.
func SanitizeChannel(channel string) string {
	c := strings.ToLower(strings.TrimSpace(channel))
	c = strings.TrimPrefix(c, "/")
	c = strings.TrimPrefix(c, "r/")
	if c == "" {
		return "unknown"
	}
	return c
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveScan records a finished scan pass.
func ObserveScan(trigger, status string, duration time.Duration) {
	scansTotal.WithLabelValues(trigger, status).Inc()
	scanDurationSeconds.WithLabelValues(trigger).Observe(duration.Seconds())
}

// IncScansInFlight increments the running scans gauge.
func IncScansInFlight() {
	scansInFlight.Inc()
}

// DecScansInFlight decrements the running scans gauge.
func DecScansInFlight() {
	scansInFlight.Dec()
}

// ObserveNewLeads adds n newly inserted leads for channel.
func ObserveNewLeads(channel string, n int) {
	if n <= 0 {
		return
	}
	newLeadsTotal.WithLabelValues(SanitizeChannel(channel)).Add(float64(n))
}

// ObserveSearchError increments the failed search counter for channel.
func ObserveSearchError(channel string) {
	searchErrorsTotal.WithLabelValues(SanitizeChannel(channel)).Inc()
}

// ObserveBatchError increments the failed batch counter for channel.
func ObserveBatchError(channel string) {
	batchErrorsTotal.WithLabelValues(SanitizeChannel(channel)).Inc()
}

// ObservePost increments the evaluated posts counter for outcome.
func ObservePost(outcome string) {
	postsEvaluatedTotal.WithLabelValues(outcome).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
