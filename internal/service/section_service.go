package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/elective-enrollment-api/internal/models"
	"github.com/noah-isme/elective-enrollment-api/internal/repository"
	appErrors "github.com/noah-isme/elective-enrollment-api/pkg/errors"
)

type sectionRepository interface {
	FindByID(ctx context.Context, id string) (*models.Section, error)
	ListAvailable(ctx context.Context, department string, year int) ([]models.Section, error)
	List(ctx context.Context, filter models.SectionFilter) ([]models.Section, error)
	Create(ctx context.Context, section *models.Section) error
}

type studentEnrollmentReader interface {
	ListForStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
}

type sectionCache interface {
	SectionsKey(ctx context.Context, department string, year int) (string, bool)
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{})
	InvalidateSections(ctx context.Context, department string, year int)
}

// CreateSectionRequest assigns a faculty member to a subject for a cohort.
type CreateSectionRequest struct {
	SubjectID  string `json:"subject_id" validate:"required"`
	FacultyID  string `json:"faculty_id" validate:"required"`
	Department string `json:"department" validate:"required"`
	Year       int    `json:"year" validate:"required,min=1,max=6"`
	Capacity   int    `json:"capacity" validate:"omitempty,min=1,max=1000"`
}

// SectionService serves the section registry to handlers. Counts are only
// changed by EnrollmentService.
type SectionService struct {
	repo            sectionRepository
	enrollments     studentEnrollmentReader
	cache           sectionCache
	defaultCapacity int
	validator       *validator.Validate
	logger          *zap.Logger
}

// NewSectionService constructs the service. cache may be nil.
func NewSectionService(repo sectionRepository, enrollments studentEnrollmentReader, cache sectionCache, defaultCapacity int, validate *validator.Validate, logger *zap.Logger) *SectionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultCapacity <= 0 {
		defaultCapacity = 60
	}
	return &SectionService{
		repo:            repo,
		enrollments:     enrollments,
		cache:           cache,
		defaultCapacity: defaultCapacity,
		validator:       validate,
		logger:          logger,
	}
}

// Get returns a section by id.
func (s *SectionService) Get(ctx context.Context, id string) (*models.Section, error) {
	section, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrSectionNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	return section, nil
}

// List returns sections matching the filter.
func (s *SectionService) List(ctx context.Context, filter models.SectionFilter) ([]models.Section, error) {
	sections, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sections")
	}
	return sections, nil
}

// ListAvailable returns a cohort's sections with free seats. When studentID is
// set, subjects the student already holds are left out.
func (s *SectionService) ListAvailable(ctx context.Context, department string, year int, studentID string) ([]models.Section, error) {
	if department == "" || year <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "department and year are required")
	}

	var (
		sections []models.Section
		key      string
		cached   bool
	)
	if s.cache != nil {
		key, cached = s.cache.SectionsKey(ctx, department, year)
	}
	if !cached || !s.cache.Get(ctx, key, &sections) {
		loaded, err := s.repo.ListAvailable(ctx, department, year)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list available sections")
		}
		sections = loaded
		if cached {
			s.cache.Set(ctx, key, sections)
		}
	}

	if studentID == "" || s.enrollments == nil {
		return sections, nil
	}
	held, err := s.enrollments.ListForStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student enrollments")
	}
	heldSubjects := make(map[string]struct{}, len(held))
	for _, enrollment := range held {
		heldSubjects[enrollment.SubjectID] = struct{}{}
	}
	open := make([]models.Section, 0, len(sections))
	for _, section := range sections {
		if _, ok := heldSubjects[section.SubjectID]; ok {
			continue
		}
		open = append(open, section)
	}
	return open, nil
}

// Create registers a new section with an empty seat count.
func (s *SectionService) Create(ctx context.Context, req CreateSectionRequest) (*models.Section, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid section payload")
	}
	capacity := req.Capacity
	if capacity == 0 {
		capacity = s.defaultCapacity
	}
	section := &models.Section{
		SubjectID:  req.SubjectID,
		FacultyID:  req.FacultyID,
		Department: req.Department,
		Year:       req.Year,
		Capacity:   capacity,
	}
	if err := s.repo.Create(ctx, section); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateKey):
			return nil, appErrors.Clone(appErrors.ErrConflict, "faculty already teaches this subject to the cohort")
		case errors.Is(err, sql.ErrNoRows), repository.IsForeignKeyViolation(err):
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown subject or faculty")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create section")
	}
	s.logger.Info("section created",
		zap.String("section_id", section.ID),
		zap.String("subject_id", section.SubjectID),
		zap.String("faculty_id", section.FacultyID),
		zap.Int("capacity", section.Capacity))
	if s.cache != nil {
		s.cache.InvalidateSections(ctx, section.Department, section.Year)
	}

	created, err := s.repo.FindByID(ctx, section.ID)
	if err != nil {
		return section, nil
	}
	return created, nil
}
