package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/YashBawari18/Online-TicketConsession/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and keeps lightweight counters
// for the admin metrics snapshot.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	dbQueryDuration *prometheus.HistogramVec
	submissions     prometheus.Counter
	decisions       *prometheus.CounterVec
	extensions      prometheus.Counter
	documents       *prometheus.CounterVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	dbQueryCount         uint64
	dbQueryDurationTotal uint64
	submissionCount      uint64
	extensionCount       uint64
	documentCount        uint64

	mu            sync.Mutex
	decisionCount map[string]uint64
}

const metricsNamespace = "concession"

// NewMetricsService registers every collector on a private registry under the concession
// namespace.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests by route template",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route template",
	}, []string{"method", "path", "status"})

	cacheOps := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "cache",
		Name:      "operation_seconds",
		Help:      "Latency of dashboard cache reads and writes",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
	}, []string{"op"})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "cache",
		Name:      "hit_ratio",
		Help:      "Share of dashboard cache lookups served from cache",
	})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Dashboard cache lookups by result",
	}, []string{"result"})

	gatewayDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "gateway",
		Name:      "call_duration_seconds",
		Help:      "Duration of persistence gateway calls by operation and table",
		Buckets:   prometheus.DefBuckets,
	}, []string{"call"})

	submissions := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "lifecycle",
		Name:      "submissions_total",
		Help:      "Applications submitted",
	})

	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "lifecycle",
		Name:      "decisions_total",
		Help:      "Administrator decisions by outcome",
	}, []string{"decision"})

	extensions := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "lifecycle",
		Name:      "validity_extensions_total",
		Help:      "Validity extensions applied to approved passes",
	})

	documents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "documents",
		Name:      "attached_total",
		Help:      "Evidence documents stored by slot",
	}, []string{"slot"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "goroutines",
		Help:      "Number of live goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheOps, cacheHitRatio, cacheLookups,
		gatewayDuration, submissions, decisions, extensions, documents, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheOps.WithLabelValues("get"),
		cacheWrite:      cacheOps.WithLabelValues("set"),
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheLookups.WithLabelValues("hit"),
		cacheMisses:     cacheLookups.WithLabelValues("miss"),
		dbQueryDuration: gatewayDuration,
		submissions:     submissions,
		decisions:       decisions,
		extensions:      extensions,
		documents:       documents,
		decisionCount:   make(map[string]uint64),
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	if ratio, ok := m.hitRatio(); ok {
		m.cacheHitRatio.Set(ratio)
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveDBQuery records gateway call timing. It satisfies gateway.QueryObserver.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
	atomic.AddUint64(&m.dbQueryCount, 1)
	atomic.AddUint64(&m.dbQueryDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordSubmission counts a newly submitted application.
func (m *MetricsService) RecordSubmission() {
	if m == nil {
		return
	}
	m.submissions.Inc()
	atomic.AddUint64(&m.submissionCount, 1)
}

// RecordDecision counts an administrator decision by outcome.
func (m *MetricsService) RecordDecision(decision string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(decision).Inc()
	m.mu.Lock()
	m.decisionCount[decision]++
	m.mu.Unlock()
}

// RecordExtension counts a validity extension.
func (m *MetricsService) RecordExtension() {
	if m == nil {
		return
	}
	m.extensions.Inc()
	atomic.AddUint64(&m.extensionCount, 1)
}

// RecordDocument counts a stored evidence file.
func (m *MetricsService) RecordDocument(slot string) {
	if m == nil {
		return
	}
	m.documents.WithLabelValues(slot).Inc()
	atomic.AddUint64(&m.documentCount, 1)
}

// Snapshot returns aggregated metrics for the admin metrics endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	dbCount := atomic.LoadUint64(&m.dbQueryCount)
	dbDuration := atomic.LoadUint64(&m.dbQueryDurationTotal)

	cacheRatio, _ := m.hitRatio()

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	var avgDBMs float64
	if dbCount > 0 {
		avgDBMs = float64(dbDuration) / float64(dbCount) / float64(time.Millisecond)
	}

	m.mu.Lock()
	decisions := make(map[string]uint64, len(m.decisionCount))
	for k, v := range m.decisionCount {
		decisions[k] = v
	}
	m.mu.Unlock()

	return models.SystemMetrics{
		CacheHitRatio:            cacheRatio,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		DBQueryCount:             dbCount,
		AverageDBQueryDurationMs: avgDBMs,
		Submissions:              atomic.LoadUint64(&m.submissionCount),
		Decisions:                decisions,
		Extensions:               atomic.LoadUint64(&m.extensionCount),
		DocumentsAttached:        atomic.LoadUint64(&m.documentCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}

func (m *MetricsService) hitRatio() (float64, bool) {
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total == 0 {
		return 0, false
	}
	return float64(hits) / float64(total), true
}
