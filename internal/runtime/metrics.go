package runtime

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics tracks request lifecycle statistics as Prometheus
// collectors. Recording methods are safe for concurrent use; Register is
// idempotent.
type HTTPMetrics struct {
	mu         sync.Mutex
	registerer prometheus.Registerer
	registered bool

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge
	hookFailures     *prometheus.CounterVec
	timeoutsTotal    *prometheus.CounterVec
}

// newHTTPCounterVec creates a counter vec with the standard serveflow/http namespace.
func newHTTPCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "serveflow",
			Subsystem: "http",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// newHTTPGauge creates a gauge with the standard serveflow/http namespace.
func newHTTPGauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "serveflow",
		Subsystem: "http",
		Name:      name,
		Help:      help,
	})
}

// newHTTPHistogramVec creates a histogram vec with the standard serveflow/http namespace.
func newHTTPHistogramVec(name, help string, buckets []float64, labels []string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "serveflow",
			Subsystem: "http",
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		},
		labels,
	)
}

// NewHTTPMetrics creates the request metrics collectors.
func NewHTTPMetrics(registerer prometheus.Registerer) *HTTPMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &HTTPMetrics{
		registerer:       registerer,
		requestsTotal:    newHTTPCounterVec("requests_total", "Total number of requests completed", []string{"method", "route", "status"}),
		requestDuration:  newHTTPHistogramVec("request_duration_seconds", "Request latency from arrival to response", []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}, []string{"method", "route"}),
		requestsInFlight: newHTTPGauge("requests_in_flight", "Number of requests currently inside the lifecycle"),
		hookFailures:     newHTTPCounterVec("hook_failures_total", "Total number of hook errors by phase", []string{"phase"}),
		timeoutsTotal:    newHTTPCounterVec("timeouts_total", "Total number of requests that hit the deadline", []string{"route"}),
	}
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (m *HTTPMetrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.requestsTotal,
		m.requestDuration,
		m.requestsInFlight,
		m.hookFailures,
		m.timeoutsTotal,
	}

	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

// RecordRequestStart marks a request entering the lifecycle.
func (m *HTTPMetrics) RecordRequestStart() {
	m.requestsInFlight.Inc()
}

// RecordRequestEnd records a completed request. route is the matched
// pattern or "unmatched" for misses, keeping label cardinality bounded.
func (m *HTTPMetrics) RecordRequestEnd(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.requestsInFlight.Dec()
	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordHookFailure counts a hook error in the given phase.
func (m *HTTPMetrics) RecordHookFailure(phase Phase) {
	m.hookFailures.WithLabelValues(string(phase)).Inc()
}

// RecordTimeout counts a request that hit its deadline.
func (m *HTTPMetrics) RecordTimeout(route string) {
	if route == "" {
		route = "unmatched"
	}
	m.timeoutsTotal.WithLabelValues(route).Inc()
}
