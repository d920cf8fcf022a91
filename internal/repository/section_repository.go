package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/elective-enrollment-api/internal/models"
)

const sectionColumns = `s.id, s.subject_id, sub.name AS subject_name, s.faculty_id, f.full_name AS faculty_name,
        f.email AS faculty_email, s.department, s.year, s.capacity, s.selected_count, s.created_at`

const sectionJoins = `JOIN subjects sub ON sub.id = s.subject_id
JOIN faculties f ON f.id = s.faculty_id`

// SectionRepository is the section registry backed by PostgreSQL. It works on
// either a pool or an open transaction.
type SectionRepository struct {
	db sqlx.ExtContext
}

// NewSectionRepository constructs the repository.
func NewSectionRepository(db sqlx.ExtContext) *SectionRepository {
	return &SectionRepository{db: db}
}

// FindByID returns a section with its subject and faculty names.
func (r *SectionRepository) FindByID(ctx context.Context, id string) (*models.Section, error) {
	query := fmt.Sprintf(`SELECT %s FROM sections s %s WHERE s.id = $1`, sectionColumns, sectionJoins)
	var section models.Section
	if err := sqlx.GetContext(ctx, r.db, &section, query, id); err != nil {
		return nil, err
	}
	return &section, nil
}

// FindByIDForUpdate reads a section and row-locks it until the surrounding
// transaction ends.
func (r *SectionRepository) FindByIDForUpdate(ctx context.Context, id string) (*models.Section, error) {
	query := fmt.Sprintf(`SELECT %s FROM sections s %s WHERE s.id = $1 FOR UPDATE OF s`, sectionColumns, sectionJoins)
	var section models.Section
	if err := sqlx.GetContext(ctx, r.db, &section, query, id); err != nil {
		return nil, translateError(err)
	}
	return &section, nil
}

// ListAvailable returns sections of a cohort that still have free seats.
func (r *SectionRepository) ListAvailable(ctx context.Context, department string, year int) ([]models.Section, error) {
	query := fmt.Sprintf(`SELECT %s FROM sections s %s
WHERE s.department = $1 AND s.year = $2 AND s.selected_count < s.capacity
ORDER BY sub.name ASC, f.full_name ASC, s.id ASC`, sectionColumns, sectionJoins)
	var sections []models.Section
	if err := sqlx.SelectContext(ctx, r.db, &sections, query, department, year); err != nil {
		return nil, fmt.Errorf("list available sections: %w", err)
	}
	return sections, nil
}

// List returns sections matching the filter.
func (r *SectionRepository) List(ctx context.Context, filter models.SectionFilter) ([]models.Section, error) {
	var conditions []string
	var args []interface{}

	if filter.Department != "" {
		conditions = append(conditions, fmt.Sprintf("s.department = $%d", len(args)+1))
		args = append(args, filter.Department)
	}
	if filter.Year > 0 {
		conditions = append(conditions, fmt.Sprintf("s.year = $%d", len(args)+1))
		args = append(args, filter.Year)
	}
	if filter.FacultyID != "" {
		conditions = append(conditions, fmt.Sprintf("s.faculty_id = $%d", len(args)+1))
		args = append(args, filter.FacultyID)
	}
	if filter.Subject != "" {
		conditions = append(conditions, fmt.Sprintf("sub.name = $%d", len(args)+1))
		args = append(args, filter.Subject)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}
	query := fmt.Sprintf(`SELECT %s FROM sections s %s%s ORDER BY sub.name ASC, f.full_name ASC, s.id ASC`, sectionColumns, sectionJoins, clause)

	var sections []models.Section
	if err := sqlx.SelectContext(ctx, r.db, &sections, query, args...); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	return sections, nil
}

// Create assigns a faculty to a subject for a department/year.
func (r *SectionRepository) Create(ctx context.Context, section *models.Section) error {
	if section.ID == "" {
		section.ID = uuid.NewString()
	}
	if section.CreatedAt.IsZero() {
		section.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO sections (id, subject_id, faculty_id, department, year, capacity, selected_count, created_at)
        VALUES (:id, :subject_id, :faculty_id, :department, :year, :capacity, :selected_count, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, section); err != nil {
		return fmt.Errorf("create section: %w", translateError(err))
	}
	return nil
}

// AdjustCount moves the occupied-seat counter by delta (+1 or -1). A result
// outside [0, capacity] matches no row and fails with ErrCapacityViolation.
func (r *SectionRepository) AdjustCount(ctx context.Context, id string, delta int) (*models.Section, error) {
	if delta != 1 && delta != -1 {
		return nil, fmt.Errorf("adjust section %s by %d: %w", id, delta, ErrCapacityViolation)
	}
	query := fmt.Sprintf(`WITH s AS (
    UPDATE sections SET selected_count = selected_count + $2
    WHERE id = $1 AND selected_count + $2 >= 0 AND selected_count + $2 <= capacity
    RETURNING *
)
SELECT %s FROM s %s`, sectionColumns, sectionJoins)

	var section models.Section
	if err := sqlx.GetContext(ctx, r.db, &section, query, id, delta); err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("adjust section %s by %d: %w", id, delta, ErrCapacityViolation)
		}
		return nil, fmt.Errorf("adjust section %s: %w", id, translateError(err))
	}
	return &section, nil
}
