// Package metrics exposes Prometheus collectors for the ingestion pipeline.
//
// Collectors live on a private registry so tests and multiple daemons in one
// process never collide. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "eventscout"

// Endpoint labels.
const (
	EndpointPrimary      = "primary"
	EndpointVerification = "verification"
)

// Metrics groups the pipeline collectors.
type Metrics struct {
	registry *prometheus.Registry

	llmRequests *prometheus.CounterVec
	llmRetries  *prometheus.CounterVec
	rejected    *prometheus.CounterVec
	verdicts    *prometheus.CounterVec
	upserted    *prometheus.CounterVec
	runs        *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
}

// New builds the collectors and registers them with a fresh registry that
// also carries the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.llmRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "llm_requests_total",
		Help:      "LLM calls by endpoint and outcome",
	}, []string{"endpoint", "outcome"})
	m.llmRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "llm_retries_total",
		Help:      "LLM retry attempts by endpoint and HTTP status (0 for transport errors)",
	}, []string{"endpoint", "status"})
	m.rejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_rejected_total",
		Help:      "Extracted records dropped by validation, by field",
	}, []string{"field"})
	m.verdicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verifications_total",
		Help:      "Verification outcomes",
	}, []string{"result"})
	m.upserted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_upserted_total",
		Help:      "Events written to the store by city and kind",
	}, []string{"city", "kind"})
	m.runs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingestion_runs_total",
		Help:      "Ingestion runs by trigger and outcome",
	}, []string{"trigger", "outcome"})
	m.runDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ingestion_run_duration_seconds",
		Help:      "Wall time of ingestion runs",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	}, []string{"trigger"})
	m.lastSuccess = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ingestion_last_success_timestamp_seconds",
		Help:      "Unix timestamp of the last successful run per city",
	}, []string{"city"})

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.llmRequests, m.llmRetries, m.rejected, m.verdicts,
		m.upserted, m.runs, m.runDuration, m.lastSuccess,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveLLM counts one LLM call.
func (m *Metrics) ObserveLLM(endpoint, outcome string) {
	if m == nil {
		return
	}
	m.llmRequests.WithLabelValues(endpoint, outcome).Inc()
}

// ObserveRetry counts one retried LLM attempt.
func (m *Metrics) ObserveRetry(endpoint string, status int) {
	if m == nil {
		return
	}
	m.llmRetries.WithLabelValues(endpoint, statusLabel(status)).Inc()
}

// ObserveRejected adds validation rejections keyed by field.
func (m *Metrics) ObserveRejected(reasons map[string]int) {
	if m == nil {
		return
	}
	for field, count := range reasons {
		m.rejected.WithLabelValues(field).Add(float64(count))
	}
}

// ObserveVerdict counts one verification result ("verified", "unverified",
// or "cached").
func (m *Metrics) ObserveVerdict(result string) {
	if m == nil {
		return
	}
	m.verdicts.WithLabelValues(result).Inc()
}

// ObserveUpsert records store write counts for a city.
func (m *Metrics) ObserveUpsert(city string, inserted, updated int) {
	if m == nil {
		return
	}
	m.upserted.WithLabelValues(city, "inserted").Add(float64(inserted))
	m.upserted.WithLabelValues(city, "updated").Add(float64(updated))
}

// ObserveRun records a finished ingestion run.
func (m *Metrics) ObserveRun(trigger, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(trigger, outcome).Inc()
	m.runDuration.WithLabelValues(trigger).Observe(elapsed.Seconds())
}

// MarkSuccess stamps the last successful run time for city.
func (m *Metrics) MarkSuccess(city string, at time.Time) {
	if m == nil {
		return
	}
	m.lastSuccess.WithLabelValues(city).Set(float64(at.Unix()))
}

func statusLabel(status int) string {
	switch {
	case status <= 0:
		return "transport"
	default:
		return strconv.Itoa(status)
	}
}
