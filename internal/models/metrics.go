package models

import "time"

// SystemMetrics is a lightweight snapshot of process counters for the
// dashboard endpoint.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	Enrollments              uint64    `json:"enrollments"`
	Unenrollments            uint64    `json:"unenrollments"`
	RejectedAllocations      uint64    `json:"rejected_allocations"`
	NotificationFailures     uint64    `json:"notification_failures"`
	SectionUnits             int64     `json:"section_units"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
