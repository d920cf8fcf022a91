package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/elective-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/elective-enrollment-api/pkg/errors"
)

type memoryCacheRepo struct {
	mu         sync.Mutex
	values     map[string][]byte
	counters   map[string]int64
	ttl        time.Duration
	sets       int
	deleted    []string
	getErr     error
	counterErr error
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{values: map[string][]byte{}, counters: map[string]int64{}}
}

func (r *memoryCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return r.getErr
	}
	raw, ok := r.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (r *memoryCacheRepo) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[key] = raw
	r.ttl = ttl
	r.sets++
	return nil
}

func (r *memoryCacheRepo) Delete(_ context.Context, keys ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range keys {
		r.deleted = append(r.deleted, key)
		delete(r.values, key)
	}
	return nil
}

func (r *memoryCacheRepo) Counter(_ context.Context, key string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counterErr != nil {
		return 0, r.counterErr
	}
	return r.counters[key], nil
}

func (r *memoryCacheRepo) Incr(_ context.Context, key string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[key]++
	return r.counters[key], nil
}

func TestCacheServiceRoundTrip(t *testing.T) {
	repo := newMemoryCacheRepo()
	metrics := NewMetricsService()
	svc := NewCacheService(repo, metrics, time.Minute, nil, true)
	key, ok := svc.SectionsKey(context.Background(), "CSE", 3)
	require.True(t, ok)
	assert.Equal(t, "sections:available:CSE:3:v0", key)

	var sections []models.Section
	assert.False(t, svc.Get(context.Background(), key, &sections))

	svc.Set(context.Background(), key, []models.Section{{ID: "sec-1", Capacity: 60}})
	assert.Equal(t, time.Minute, repo.ttl)
	require.True(t, svc.Get(context.Background(), key, &sections))
	assert.Equal(t, "sec-1", sections[0].ID)

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(1), snapshot.CacheHits)
	assert.Equal(t, uint64(1), snapshot.CacheMisses)
}

func TestCacheServiceInvalidationStartsNewGeneration(t *testing.T) {
	repo := newMemoryCacheRepo()
	svc := NewCacheService(repo, nil, 0, nil, true)
	ctx := context.Background()

	before, ok := svc.SectionsKey(ctx, "CSE", 3)
	require.True(t, ok)
	svc.Set(ctx, before, []models.Section{{ID: "sec-1"}})

	svc.InvalidateSections(ctx, "CSE", 3)
	assert.Equal(t, []string{"sections:available:CSE:3:v0"}, repo.deleted)

	after, ok := svc.SectionsKey(ctx, "CSE", 3)
	require.True(t, ok)
	assert.Equal(t, "sections:available:CSE:3:v1", after)

	// A fill that resolved its key before the invalidation is never read back.
	svc.Set(ctx, before, []models.Section{{ID: "sec-1"}})
	var out []models.Section
	assert.False(t, svc.Get(ctx, after, &out))

	other, _ := svc.SectionsKey(ctx, "CSE", 4)
	assert.Equal(t, "sections:available:CSE:4:v0", other)
}

func TestCacheServiceKeysDepartmentsVerbatim(t *testing.T) {
	repo := newMemoryCacheRepo()
	svc := NewCacheService(repo, nil, 0, nil, true)
	ctx := context.Background()

	key, _ := svc.SectionsKey(ctx, "C*[S]?E", 3)
	svc.Set(ctx, key, []models.Section{{ID: "sec-1"}})
	svc.InvalidateSections(ctx, "C*[S]?E", 3)

	assert.Equal(t, []string{"sections:available:C*[S]?E:3:v0"}, repo.deleted)
	assert.NotContains(t, repo.values, key)
}

func TestCacheServiceBypassesOnGenerationFailure(t *testing.T) {
	repo := newMemoryCacheRepo()
	repo.counterErr = errors.New("connection reset")
	svc := NewCacheService(repo, nil, 0, nil, true)

	_, ok := svc.SectionsKey(context.Background(), "CSE", 3)
	assert.False(t, ok)
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := newMemoryCacheRepo()
	svc := NewCacheService(repo, nil, 0, nil, false)

	svc.Set(context.Background(), "k", 1)
	var out int
	assert.False(t, svc.Get(context.Background(), "k", &out))
	_, ok := svc.SectionsKey(context.Background(), "CSE", 3)
	assert.False(t, ok)
	svc.InvalidateSections(context.Background(), "CSE", 3)
	assert.Empty(t, repo.values)
	assert.Empty(t, repo.counters)
	assert.Empty(t, repo.deleted)

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
}

func TestCacheServiceTreatsBackendErrorsAsMiss(t *testing.T) {
	repo := newMemoryCacheRepo()
	repo.getErr = errors.New("connection reset")
	svc := NewCacheService(repo, nil, 0, nil, true)

	var out []models.Section
	assert.False(t, svc.Get(context.Background(), "k", &out))
}
