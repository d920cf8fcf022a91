package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/elective-enrollment-api/internal/models"
)

// Allocation outcome labels.
const (
	outcomeSuccess  = "success"
	outcomeRejected = "rejected"
	outcomeBusy     = "busy"
	outcomeFailed   = "failed"
)

// MetricsService owns the Prometheus registry and keeps a few atomic totals for
// the JSON snapshot endpoint.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheLookups    *prometheus.CounterVec
	allocations     *prometheus.CounterVec
	unitWait        prometheus.Histogram
	sectionUnits    prometheus.Gauge
	notifyFailures  *prometheus.CounterVec

	requestCount         uint64
	requestDurationTotal uint64
	cacheHitCount        uint64
	cacheMissCount       uint64
	enrollCount          uint64
	unenrollCount        uint64
	rejectedCount        uint64
	notifyFailureCount   uint64
	unitCount            int64
}

// NewMetricsService registers the HTTP, cache and allocation collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache lookups by result",
	}, []string{"result"})

	allocations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enrollment_allocations_total",
		Help: "Enroll and unenroll calls by action and outcome",
	}, []string{"action", "outcome", "code"})

	unitWait := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "enrollment_section_unit_wait_seconds",
		Help:    "Time spent waiting for a section's serialization unit",
		Buckets: []float64{.0005, .001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
	})

	sectionUnits := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "enrollment_section_units",
		Help: "Section serialization units created since start",
	})

	notifyFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enrollment_notification_failures_total",
		Help: "Change notifications that could not be delivered",
	}, []string{"stage"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheHitRatio, cacheLookups,
		allocations, unitWait, sectionUnits, notifyFailures, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheHitRatio:   cacheHitRatio,
		cacheLookups:    cacheLookups,
		allocations:     allocations,
		unitWait:        unitWait,
		sectionUnits:    sectionUnits,
		notifyFailures:  notifyFailures,
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

// Registry exposes the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
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

// RecordCacheOperation records a cache lookup and refreshes the hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheLookups.WithLabelValues("miss").Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveAllocation counts an allocator outcome. code is empty on success.
func (m *MetricsService) ObserveAllocation(action models.AllocationAction, outcome, code string) {
	if m == nil {
		return
	}
	m.allocations.WithLabelValues(string(action), outcome, code).Inc()
	if outcome != outcomeSuccess {
		atomic.AddUint64(&m.rejectedCount, 1)
		return
	}
	if action == models.ActionEnrolled {
		atomic.AddUint64(&m.enrollCount, 1)
	} else {
		atomic.AddUint64(&m.unenrollCount, 1)
	}
}

// ObserveUnitWait records how long a caller queued for a section unit.
func (m *MetricsService) ObserveUnitWait(duration time.Duration) {
	if m == nil {
		return
	}
	m.unitWait.Observe(duration.Seconds())
}

// SectionUnitCreated tracks lazily created section units.
func (m *MetricsService) SectionUnitCreated() {
	if m == nil {
		return
	}
	m.sectionUnits.Inc()
	atomic.AddInt64(&m.unitCount, 1)
}

// NotificationFailed counts an undelivered notification at the given stage
// (enqueue, lookup or publish).
func (m *MetricsService) NotificationFailed(stage string) {
	if m == nil {
		return
	}
	m.notifyFailures.WithLabelValues(stage).Inc()
	atomic.AddUint64(&m.notifyFailureCount, 1)
}

// Snapshot returns aggregated metrics for the JSON endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	if hits+misses > 0 {
		cacheRatio = float64(hits) / float64(hits+misses)
	}
	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		CacheHits:                hits,
		CacheMisses:              misses,
		CacheHitRatio:            cacheRatio,
		Enrollments:              atomic.LoadUint64(&m.enrollCount),
		Unenrollments:            atomic.LoadUint64(&m.unenrollCount),
		RejectedAllocations:      atomic.LoadUint64(&m.rejectedCount),
		NotificationFailures:     atomic.LoadUint64(&m.notifyFailureCount),
		SectionUnits:             atomic.LoadInt64(&m.unitCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
