package runtime

import (
	"encoding/json"
	"math"
	"sort"
	"sync"
	"time"
)

const (
	latencySampleSize    = 256
	throughputWindowSize = time.Minute
)

// RouteStats tracks per-route request statistics. A handler observing the
// struct through the debug API sees a consistent snapshot; recording is
// guarded by the mutex.
type RouteStats struct {
	mu sync.Mutex `json:"-"`

	method  string `json:"-"`
	pattern string `json:"-"`

	RequestsTotal       uint64    `json:"requests_total"`
	RequestsFailed      uint64    `json:"requests_failed"`
	TotalProcessingTime int64     `json:"total_processing_time_ns"`
	LastRequestAt       time.Time `json:"last_request_at"`

	Latency     LatencyMetrics     `json:"latency"`
	Throughput  ThroughputMetrics  `json:"throughput"`
	Statuses    StatusBreakdown    `json:"statuses"`
	Errors      ErrorBreakdown     `json:"errors"`
	Concurrency ConcurrencyMetrics `json:"concurrency"`

	latencyWindow    *latencyWindow    `json:"-"`
	throughputWindow *throughputWindow `json:"-"`
}

// RouteInfo pairs a route identity with its stats for the debug API.
type RouteInfo struct {
	Method  string      `json:"method"`
	Pattern string      `json:"pattern"`
	Stats   *RouteStats `json:"stats"`
}

type LatencyMetrics struct {
	AverageNs  int64 `json:"average_ns"`
	P50Ns      int64 `json:"p50_ns"`
	P95Ns      int64 `json:"p95_ns"`
	P99Ns      int64 `json:"p99_ns"`
	LastNs     int64 `json:"last_ns"`
	SampleSize int   `json:"sample_size"`
}

type ThroughputMetrics struct {
	CurrentRPS       float64 `json:"current_rps"`
	WindowSeconds    float64 `json:"window_seconds"`
	RequestsInWindow uint64  `json:"requests_in_window"`
	TotalRequests    uint64  `json:"total_requests"`
}

// StatusBreakdown counts responses by status class.
type StatusBreakdown struct {
	Success     uint64 `json:"success"`
	Redirect    uint64 `json:"redirect"`
	ClientError uint64 `json:"client_error"`
	ServerError uint64 `json:"server_error"`
}

// ErrorBreakdown counts lifecycle errors by classification.
type ErrorBreakdown struct {
	Validation uint64 `json:"validation"`
	HTTP       uint64 `json:"http"`
	Timeout    uint64 `json:"timeout"`
	Canceled   uint64 `json:"canceled"`
	Internal   uint64 `json:"internal"`
	LastError  string `json:"last_error,omitempty"`
}

type ConcurrencyMetrics struct {
	InFlight    uint64 `json:"in_flight"`
	MaxInFlight uint64 `json:"max_in_flight"`
}

func newRouteStats(method, pattern string) *RouteStats {
	return &RouteStats{
		method:           method,
		pattern:          pattern,
		latencyWindow:    newLatencyWindow(latencySampleSize),
		throughputWindow: newThroughputWindow(throughputWindowSize),
	}
}

func (s *RouteStats) onRequestStart() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Concurrency.InFlight++
	if s.Concurrency.InFlight > s.Concurrency.MaxInFlight {
		s.Concurrency.MaxInFlight = s.Concurrency.InFlight
	}
}

// onRequestFinish records one completed request. status is 0 when nothing
// was written (client disconnect before the response).
func (s *RouteStats) onRequestFinish(status int, duration time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Concurrency.InFlight > 0 {
		s.Concurrency.InFlight--
	}

	s.RequestsTotal++
	if err != nil {
		s.RequestsFailed++
	}
	s.TotalProcessingTime += int64(duration)
	s.LastRequestAt = time.Now().UTC()

	if s.latencyWindow != nil {
		s.latencyWindow.Add(duration)
		snapshot := s.latencyWindow.Snapshot()
		snapshot.LastNs = int64(duration)
		if s.RequestsTotal > 0 {
			snapshot.AverageNs = s.TotalProcessingTime / int64(s.RequestsTotal)
		}
		s.Latency = snapshot
	}

	if s.throughputWindow != nil {
		snapshot := s.throughputWindow.AddAndSnapshot(time.Now())
		s.Throughput.CurrentRPS = snapshot.CurrentRPS
		s.Throughput.WindowSeconds = snapshot.WindowSeconds
		s.Throughput.RequestsInWindow = uint64(snapshot.Count)
	}
	s.Throughput.TotalRequests = s.RequestsTotal

	s.Statuses.Record(status)
	if err != nil {
		s.Errors.Record(classifyError(err), err)
	}
}

func (s *RouteStats) MarshalJSON() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type Alias RouteStats
	return json.Marshal((*Alias)(s))
}

func (b *StatusBreakdown) Record(status int) {
	switch {
	case status >= 200 && status < 300:
		b.Success++
	case status >= 300 && status < 400:
		b.Redirect++
	case status >= 400 && status < 500:
		b.ClientError++
	case status >= 500:
		b.ServerError++
	}
}

func (e *ErrorBreakdown) Record(outcome errorOutcome, err error) {
	switch outcome {
	case outcomeValidation:
		e.Validation++
	case outcomeHTTP:
		e.HTTP++
	case outcomeTimeout:
		e.Timeout++
	case outcomeCanceled:
		e.Canceled++
	default:
		e.Internal++
	}
	if err != nil {
		e.LastError = err.Error()
	}
}

type latencyWindow struct {
	samples []int64
	next    int
	filled  int
	last    int64
}

func newLatencyWindow(size int) *latencyWindow {
	if size <= 0 {
		size = latencySampleSize
	}
	return &latencyWindow{samples: make([]int64, size)}
}

func (lw *latencyWindow) Add(d time.Duration) {
	if lw == nil || len(lw.samples) == 0 {
		return
	}
	lw.samples[lw.next] = int64(d)
	lw.last = int64(d)
	lw.next = (lw.next + 1) % len(lw.samples)
	if lw.filled < len(lw.samples) {
		lw.filled++
	}
}

func (lw *latencyWindow) Snapshot() LatencyMetrics {
	var metrics LatencyMetrics
	if lw == nil {
		return metrics
	}
	if lw.filled == 0 {
		metrics.LastNs = lw.last
		return metrics
	}
	samples := make([]int64, lw.filled)
	for i := 0; i < lw.filled; i++ {
		idx := lw.next - lw.filled + i
		if idx < 0 {
			idx += len(lw.samples)
		}
		samples[i] = lw.samples[idx]
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	metrics.SampleSize = lw.filled
	metrics.P50Ns = percentile(samples, 0.50)
	metrics.P95Ns = percentile(samples, 0.95)
	metrics.P99Ns = percentile(samples, 0.99)
	var sum int64
	for _, v := range samples {
		sum += v
	}
	metrics.AverageNs = sum / int64(len(samples))
	metrics.LastNs = lw.last
	return metrics
}

func percentile(samples []int64, quantile float64) int64 {
	if len(samples) == 0 {
		return 0
	}
	if quantile <= 0 {
		return samples[0]
	}
	if quantile >= 1 {
		return samples[len(samples)-1]
	}
	pos := quantile * float64(len(samples)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return samples[lower]
	}
	frac := pos - float64(lower)
	return samples[lower] + int64(float64(samples[upper]-samples[lower])*frac)
}

type throughputWindow struct {
	horizon time.Duration
	samples []time.Time
}

type throughputSnapshot struct {
	Count         int
	WindowSeconds float64
	CurrentRPS    float64
}

func newThroughputWindow(horizon time.Duration) *throughputWindow {
	return &throughputWindow{
		horizon: horizon,
		samples: make([]time.Time, 0, 64),
	}
}

func (tw *throughputWindow) AddAndSnapshot(now time.Time) throughputSnapshot {
	if tw == nil {
		return throughputSnapshot{}
	}
	tw.samples = append(tw.samples, now)
	tw.cleanup(now)
	return tw.snapshot(now)
}

func (tw *throughputWindow) cleanup(now time.Time) {
	if tw == nil || len(tw.samples) == 0 {
		return
	}
	cutoff := now.Add(-tw.horizon)
	idx := 0
	for idx < len(tw.samples) && tw.samples[idx].Before(cutoff) {
		idx++
	}
	if idx > 0 {
		copy(tw.samples, tw.samples[idx:])
		tw.samples = tw.samples[:len(tw.samples)-idx]
	}
}

func (tw *throughputWindow) snapshot(now time.Time) throughputSnapshot {
	if tw == nil || len(tw.samples) == 0 {
		return throughputSnapshot{}
	}
	span := now.Sub(tw.samples[0])
	if span <= 0 {
		span = time.Nanosecond
	}
	count := len(tw.samples)
	return throughputSnapshot{
		Count:         count,
		WindowSeconds: span.Seconds(),
		CurrentRPS:    float64(count) / span.Seconds(),
	}
}
