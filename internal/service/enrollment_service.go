package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/elective-enrollment-api/internal/models"
	"github.com/noah-isme/elective-enrollment-api/internal/repository"
	appErrors "github.com/noah-isme/elective-enrollment-api/pkg/errors"
)

type allocationStore interface {
	WithinTx(ctx context.Context, fn func(tx repository.AllocationTx) error) error
}

type sectionUnits interface {
	Acquire(ctx context.Context, sectionID string) (func(), error)
}

type allocationNotifier interface {
	OnAllocationChange(ctx context.Context, change models.AllocationChange)
}

type sectionCacheInvalidator interface {
	InvalidateSections(ctx context.Context, department string, year int)
}

// AllocationRequest identifies who is taking or giving up which seat.
type AllocationRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	SectionID string `json:"section_id" validate:"required"`
}

// EnrollmentService is the capacity allocator. Every enroll or unenroll holds
// the target section's unit from validation through commit, so two requests
// for the same section never interleave.
type EnrollmentService struct {
	store     allocationStore
	units     sectionUnits
	notifier  allocationNotifier
	cache     sectionCacheInvalidator
	metrics   *MetricsService
	retries   int
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// EnrollmentServiceOptions carries the optional collaborators.
type EnrollmentServiceOptions struct {
	Notifier         allocationNotifier
	Cache            sectionCacheInvalidator
	Metrics          *MetricsService
	TransientRetries int
}

// NewEnrollmentService constructs the allocator.
func NewEnrollmentService(store allocationStore, units sectionUnits, opts EnrollmentServiceOptions, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TransientRetries < 0 {
		opts.TransientRetries = 0
	}
	return &EnrollmentService{
		store:     store,
		units:     units,
		notifier:  opts.Notifier,
		cache:     opts.Cache,
		metrics:   opts.Metrics,
		retries:   opts.TransientRetries,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Enroll gives the student a seat in the section. Checks run in order: the
// section exists, the student does not hold it, the student holds no other
// section of the subject, a seat is free.
func (s *EnrollmentService) Enroll(ctx context.Context, req AllocationRequest) (*models.AllocationResult, error) {
	return s.allocate(ctx, models.ActionEnrolled, req, s.enrollUnit)
}

// Unenroll returns the student's seat in the section.
func (s *EnrollmentService) Unenroll(ctx context.Context, req AllocationRequest) (*models.AllocationResult, error) {
	return s.allocate(ctx, models.ActionUnenrolled, req, s.unenrollUnit)
}

type allocationUnit func(ctx context.Context, req AllocationRequest) (*models.AllocationResult, bool, error)

func (s *EnrollmentService) allocate(ctx context.Context, action models.AllocationAction, req AllocationRequest, unit allocationUnit) (*models.AllocationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid allocation payload")
	}

	waitStart := time.Now()
	release, err := s.units.Acquire(ctx, req.SectionID)
	s.metrics.ObserveUnitWait(time.Since(waitStart))
	if err != nil {
		s.metrics.ObserveAllocation(action, outcomeBusy, appErrors.ErrContentionTimeout.Code)
		s.logger.Warn("section unit not acquired",
			zap.String("section_id", req.SectionID),
			zap.String("student_id", req.StudentID),
			zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrContentionTimeout.Code, appErrors.ErrContentionTimeout.Status, appErrors.ErrContentionTimeout.Message)
	}

	var (
		result  *models.AllocationResult
		wasFull bool
	)
	for attempt := 0; ; attempt++ {
		result, wasFull, err = unit(ctx, req)
		if err == nil || !repository.IsTransient(err) || attempt >= s.retries {
			break
		}
		s.logger.Warn("transient store failure, retrying allocation",
			zap.String("action", string(action)),
			zap.String("section_id", req.SectionID),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	release()

	if err != nil {
		mapped := s.outcome(action, req, err)
		outcome := outcomeRejected
		if mapped.Status >= 500 {
			outcome = outcomeFailed
		}
		s.metrics.ObserveAllocation(action, outcome, mapped.Code)
		return nil, mapped
	}

	s.metrics.ObserveAllocation(action, outcomeSuccess, "")
	s.logger.Info("allocation committed",
		zap.String("action", string(action)),
		zap.String("section_id", result.Section.ID),
		zap.String("student_id", req.StudentID),
		zap.Int("new_count", result.NewCount),
		zap.Bool("is_full", result.IsFull))

	if s.cache != nil {
		s.cache.InvalidateSections(ctx, result.Section.Department, result.Section.Year)
	}
	if s.notifier != nil {
		at := s.now().UTC()
		if action == models.ActionEnrolled {
			at = result.Enrollment.EnrolledAt
		}
		s.notifier.OnAllocationChange(ctx, models.AllocationChange{
			Action:    action,
			StudentID: req.StudentID,
			Section:   result.Section,
			WasFull:   wasFull,
			At:        at,
		})
	}
	return result, nil
}

func (s *EnrollmentService) enrollUnit(ctx context.Context, req AllocationRequest) (*models.AllocationResult, bool, error) {
	var result *models.AllocationResult
	err := s.store.WithinTx(ctx, func(tx repository.AllocationTx) error {
		section, err := tx.FindSection(ctx, req.SectionID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrSectionNotFound
			}
			return err
		}

		held, err := tx.HasSectionEnrollment(ctx, req.StudentID, section.ID)
		if err != nil {
			return err
		}
		if held {
			return appErrors.ErrAlreadyEnrolledSection
		}

		held, err = tx.HasSubjectEnrollment(ctx, req.StudentID, section.SubjectID)
		if err != nil {
			return err
		}
		if held {
			return appErrors.ErrAlreadyEnrolledSubject
		}

		if section.IsFull() {
			return appErrors.ErrSectionFull
		}

		enrollment := models.Enrollment{
			StudentID:  req.StudentID,
			SectionID:  section.ID,
			SubjectID:  section.SubjectID,
			EnrolledAt: s.now().UTC(),
		}
		if err := tx.InsertEnrollment(ctx, &enrollment); err != nil {
			return err
		}
		updated, err := tx.AdjustCount(ctx, section.ID, 1)
		if err != nil {
			return err
		}
		result = newAllocationResult(models.ActionEnrolled, req.StudentID, *updated, enrollment)
		return nil
	})
	return result, false, err
}

func (s *EnrollmentService) unenrollUnit(ctx context.Context, req AllocationRequest) (*models.AllocationResult, bool, error) {
	var (
		result  *models.AllocationResult
		wasFull bool
	)
	err := s.store.WithinTx(ctx, func(tx repository.AllocationTx) error {
		section, err := tx.FindSection(ctx, req.SectionID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrNotEnrolled
			}
			return err
		}
		wasFull = section.IsFull()

		removed, err := tx.RemoveEnrollment(ctx, req.StudentID, section.ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrNotEnrolled
			}
			return err
		}
		updated, err := tx.AdjustCount(ctx, section.ID, -1)
		if err != nil {
			return err
		}
		result = newAllocationResult(models.ActionUnenrolled, req.StudentID, *updated, *removed)
		return nil
	})
	return result, wasFull, err
}

func newAllocationResult(action models.AllocationAction, studentID string, section models.Section, enrollment models.Enrollment) *models.AllocationResult {
	return &models.AllocationResult{
		Action:     action,
		StudentID:  studentID,
		Section:    section,
		Enrollment: enrollment,
		NewCount:   section.SelectedCount,
		IsFull:     section.IsFull(),
	}
}

// outcome converts a unit failure into the caller-facing error.
func (s *EnrollmentService) outcome(action models.AllocationAction, req AllocationRequest, err error) *appErrors.Error {
	var typed *appErrors.Error
	switch {
	case errors.As(err, &typed):
		return typed
	case errors.Is(err, repository.ErrDuplicateSubject):
		return appErrors.ErrAlreadyEnrolledSubject
	case errors.Is(err, repository.ErrDuplicateSection):
		return appErrors.ErrAlreadyEnrolledSection
	case errors.Is(err, repository.ErrCapacityViolation):
		s.logger.Error("section count left its bounds",
			zap.String("action", string(action)),
			zap.String("section_id", req.SectionID),
			zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrCapacityViolation.Code, appErrors.ErrCapacityViolation.Status, appErrors.ErrCapacityViolation.Message)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return appErrors.Wrap(err, appErrors.ErrContentionTimeout.Code, appErrors.ErrContentionTimeout.Status, appErrors.ErrContentionTimeout.Message)
	}
	s.logger.Error("allocation commit failed",
		zap.String("action", string(action)),
		zap.String("section_id", req.SectionID),
		zap.String("student_id", req.StudentID),
		zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, appErrors.ErrPersistence.Message)
}
