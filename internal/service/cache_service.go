package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/elective-enrollment-api/pkg/errors"
)

const availableSectionsPrefix = "sections:available"

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Counter(ctx context.Context, key string) (int64, error)
	Incr(ctx context.Context, key string) (int64, error)
}

// CacheService fronts the section listings with a read-through cache. Every
// failure degrades to a miss; the store stays the source of truth.
type CacheService struct {
	repo    CacheRepository
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
	enabled bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, ttl time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, ttl: ttl, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// AvailableSectionsKey is the cache key for one generation of a cohort's
// open sections.
func AvailableSectionsKey(department string, year int, generation int64) string {
	return fmt.Sprintf("%s:%s:%d:v%d", availableSectionsPrefix, department, year, generation)
}

func availableSectionsGenerationKey(department string, year int) string {
	return fmt.Sprintf("%s:%s:%d:generation", availableSectionsPrefix, department, year)
}

// SectionsKey resolves the key of the cohort's current generation. Callers
// resolve it before reading the store: a fill that overlaps an invalidation
// lands under a generation nobody reads anymore.
func (s *CacheService) SectionsKey(ctx context.Context, department string, year int) (string, bool) {
	if !s.Enabled() {
		return "", false
	}
	generation, err := s.repo.Counter(ctx, availableSectionsGenerationKey(department, year))
	if err != nil {
		s.logger.Warn("cache generation lookup failed", zap.String("department", department), zap.Int("year", year), zap.Error(err))
		return "", false
	}
	return AvailableSectionsKey(department, year, generation), true
}

// Get loads a cached entry into dest and reports whether it was a hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) bool {
	if !s.Enabled() {
		return false
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	}
	return err == nil
}

// Set stores value under key with the configured TTL.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}) {
	if !s.Enabled() {
		return
	}
	if err := s.repo.Set(ctx, key, value, s.ttl); err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// InvalidateSections moves the cohort to a new generation and drops the
// listing cached under the previous one.
func (s *CacheService) InvalidateSections(ctx context.Context, department string, year int) {
	if !s.Enabled() {
		return
	}
	generation, err := s.repo.Incr(ctx, availableSectionsGenerationKey(department, year))
	if err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("department", department), zap.Int("year", year), zap.Error(err))
		return
	}
	stale := AvailableSectionsKey(department, year, generation-1)
	if err := s.repo.Delete(ctx, stale); err != nil {
		s.logger.Warn("cache delete failed", zap.String("key", stale), zap.Error(err))
	}
}
