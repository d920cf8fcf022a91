package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// errUnitTimeout is returned when a section unit could not be acquired within
// the configured wait.
var errUnitTimeout = errors.New("section unit wait timed out")

// SectionLocks hands out one admission unit per section. Units are created on
// first use and live for the rest of the process. Waiters on a unit are
// admitted in arrival order; units of different sections never contend.
type SectionLocks struct {
	units   sync.Map
	timeout time.Duration
	metrics *MetricsService
}

// NewSectionLocks builds the registry. A non-positive timeout waits for as
// long as the caller's context allows.
func NewSectionLocks(timeout time.Duration, metrics *MetricsService) *SectionLocks {
	return &SectionLocks{timeout: timeout, metrics: metrics}
}

func (l *SectionLocks) unit(sectionID string) *semaphore.Weighted {
	if existing, ok := l.units.Load(sectionID); ok {
		return existing.(*semaphore.Weighted)
	}
	actual, loaded := l.units.LoadOrStore(sectionID, semaphore.NewWeighted(1))
	if !loaded {
		l.metrics.SectionUnitCreated()
	}
	return actual.(*semaphore.Weighted)
}

// Acquire waits for exclusive hold of the section's unit. The returned release
// func is safe to call more than once.
func (l *SectionLocks) Acquire(ctx context.Context, sectionID string) (func(), error) {
	unit := l.unit(sectionID)

	waitCtx := ctx
	if l.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	if err := unit.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errUnitTimeout
	}

	var once sync.Once
	return func() {
		once.Do(func() { unit.Release(1) })
	}, nil
}
