package core

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"barcoder/internal/barcode"
)

// MetricsRecorder receives operation outcomes and item counts.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
	Add(ctx context.Context, counter string, n int)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}
func (noopMetricsRecorder) Add(context.Context, string, int)                     {}

// Counter names reported through MetricsRecorder.Add.
const (
	CounterScriptRuns     = barcode.CounterScriptRuns
	CounterScriptFailures = barcode.CounterScriptFailures
	CounterLabelsPrinted  = barcode.CounterLabelsPrinted
)

var expvarSeq uint64

// ExpvarMetricsRecorder publishes operation timings, outcomes and counters via expvar.
type ExpvarMetricsRecorder struct {
	name      string
	mu        sync.Mutex
	durations map[string]float64
	results   map[string]map[string]int64
	counters  map[string]int64
}

// ExpvarMetricsSnapshot is a read-only view of the recorded metrics.
type ExpvarMetricsSnapshot struct {
	DurationsMS map[string]float64          `json:"durations_ms_total"`
	Results     map[string]map[string]int64 `json:"results_total"`
	Counters    map[string]int64            `json:"counters"`
	RecordedAt  time.Time                   `json:"recorded_at"`
}

// NewExpvarMetricsRecorder publishes a recorder under name, or under a
// generated name when empty.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		id := atomic.AddUint64(&expvarSeq, 1)
		name = fmt.Sprintf("barcoder_metrics_%d", id)
	}
	rec := &ExpvarMetricsRecorder{
		name:      name,
		durations: make(map[string]float64),
		results:   make(map[string]map[string]int64),
		counters:  make(map[string]int64),
	}
	expvar.Publish(name, expvar.Func(func() any {
		return rec.Snapshot()
	}))
	return rec
}

// Name returns the expvar export name.
func (r *ExpvarMetricsRecorder) Name() string { return r.name }

// Snapshot copies the current totals.
func (r *ExpvarMetricsRecorder) Snapshot() ExpvarMetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	durations := make(map[string]float64, len(r.durations))
	for op, total := range r.durations {
		durations[op] = total
	}
	results := make(map[string]map[string]int64, len(r.results))
	for op, byStatus := range r.results {
		cpy := make(map[string]int64, len(byStatus))
		for status, n := range byStatus {
			cpy[status] = n
		}
		results[op] = cpy
	}
	counters := make(map[string]int64, len(r.counters))
	for name, n := range r.counters {
		counters[name] = n
	}
	return ExpvarMetricsSnapshot{
		DurationsMS: durations,
		Results:     results,
		Counters:    counters,
		RecordedAt:  time.Now().UTC(),
	}
}

// Observe records an operation outcome.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.mu.Lock()
	r.durations[operation] += float64(duration) / float64(time.Millisecond)
	if _, ok := r.results[operation]; !ok {
		r.results[operation] = make(map[string]int64, 2)
	}
	r.results[operation][status]++
	r.mu.Unlock()
}

// Add increments a named counter.
func (r *ExpvarMetricsRecorder) Add(_ context.Context, counter string, n int) {
	if counter == "" || n == 0 {
		return
	}
	r.mu.Lock()
	r.counters[counter] += int64(n)
	r.mu.Unlock()
}

// PrometheusMetricsRecorder exports the same signals as Prometheus collectors
// on a private registry.
type PrometheusMetricsRecorder struct {
	registry  *prometheus.Registry
	durations *prometheus.HistogramVec
	results   *prometheus.CounterVec
	counters  *prometheus.CounterVec
}

// NewPrometheusMetricsRecorder registers the barcoder collectors on a fresh registry.
func NewPrometheusMetricsRecorder() *PrometheusMetricsRecorder {
	reg := prometheus.NewRegistry()
	rec := &PrometheusMetricsRecorder{
		registry: reg,
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "barcoder",
			Name:      "operation_duration_seconds",
			Help:      "Duration of service operations.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"operation"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "barcoder",
			Name:      "operations_total",
			Help:      "Service operations by outcome.",
		}, []string{"operation", "status"}),
		counters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "barcoder",
			Name:      "items_total",
			Help:      "Script runs, failures and printed labels.",
		}, []string{"counter"}),
	}
	reg.MustRegister(rec.durations, rec.results, rec.counters)
	return rec
}

// Observe records an operation outcome.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
	r.results.WithLabelValues(operation, status).Inc()
}

// Add increments a named counter.
func (r *PrometheusMetricsRecorder) Add(_ context.Context, counter string, n int) {
	if counter == "" || n <= 0 {
		return
	}
	r.counters.WithLabelValues(counter).Add(float64(n))
}

// Registry exposes the underlying registry, e.g. for tests.
func (r *PrometheusMetricsRecorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *PrometheusMetricsRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// MultiMetricsRecorder fans out to several recorders.
type MultiMetricsRecorder []MetricsRecorder

// Observe forwards to every recorder.
func (m MultiMetricsRecorder) Observe(ctx context.Context, operation string, success bool, duration time.Duration) {
	for _, r := range m {
		r.Observe(ctx, operation, success, duration)
	}
}

// Add forwards to every recorder.
func (m MultiMetricsRecorder) Add(ctx context.Context, counter string, n int) {
	for _, r := range m {
		r.Add(ctx, counter, n)
	}
}
