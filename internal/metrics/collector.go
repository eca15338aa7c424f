// Package metrics exposes Prometheus instrumentation for try-on orchestration
// and the HTTP surface.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tryon/internal/tryon"
)

// Collector records orchestration and HTTP metrics into one registry.
type Collector struct {
	registry *prometheus.Registry

	submissionsTotal   *prometheus.CounterVec
	pollsTotal         *prometheus.CounterVec
	resultsTotal       *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewCollector registers all metrics under namespace on a fresh registry.
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	c := &Collector{registry: reg}

	c.submissionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tryon_submissions_total",
			Help:      "Jobs accepted by a provider, split by synchronous completion",
		},
		[]string{"provider", "mode"},
	)

	c.pollsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tryon_status_polls_total",
			Help:      "Status queries sent to providers",
		},
		[]string{"provider"},
	)

	c.resultsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tryon_results_total",
			Help:      "Finished orchestration calls by outcome class",
		},
		[]string{"provider", "outcome"},
	)

	c.generationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tryon_generation_duration_seconds",
			Help:      "End-to-end orchestration duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"provider"},
	)

	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry exposes the underlying registry, mostly for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) ObserveSubmission(provider string, synchronous bool) {
	mode := "async"
	if synchronous {
		mode = "sync"
	}
	c.submissionsTotal.WithLabelValues(provider, mode).Inc()
}

func (c *Collector) ObservePoll(provider string) {
	c.pollsTotal.WithLabelValues(provider).Inc()
}

func (c *Collector) ObserveResult(provider string, err error, elapsed time.Duration) {
	c.resultsTotal.WithLabelValues(provider, Outcome(err)).Inc()
	c.generationDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// RecordHTTPRequest records one served request.
func (c *Collector) RecordHTTPRequest(method, route string, status int, elapsed time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Outcome classifies an orchestration error into a low-cardinality label.
func Outcome(err error) string {
	if err == nil {
		return "success"
	}
	var (
		cfgErr    *tryon.ConfigurationError
		unknown   *tryon.UnknownProvider
		transport *tryon.TransportError
		provider  *tryon.ProviderError
		remote    *tryon.RemoteJobFailed
		timeout   *tryon.PollTimeout
		cancelErr *tryon.Cancelled
	)
	switch {
	case errors.As(err, &cfgErr), errors.As(err, &unknown):
		return "configuration_error"
	case errors.As(err, &transport):
		return "transport_error"
	case errors.As(err, &provider):
		return "provider_error"
	case errors.As(err, &remote):
		return "remote_job_failed"
	case errors.As(err, &timeout):
		return "poll_timeout"
	case errors.As(err, &cancelErr):
		return "cancelled"
	default:
		return "error"
	}
}

var _ tryon.Observer = (*Collector)(nil)
