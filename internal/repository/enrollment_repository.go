package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/elective-enrollment-api/internal/models"
)

// EnrollmentRepository is the enrollment ledger backed by PostgreSQL.
type EnrollmentRepository struct {
	db sqlx.ExtContext
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db sqlx.ExtContext) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// HasSectionEnrollment checks whether the student holds this exact section.
func (r *EnrollmentRepository) HasSectionEnrollment(ctx context.Context, studentID, sectionID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE student_id = $1 AND section_id = $2 LIMIT 1`
	return r.exists(ctx, "check section enrollment", query, studentID, sectionID)
}

// HasSubjectEnrollment checks whether the student holds any section of the
// subject, whichever faculty teaches it.
func (r *EnrollmentRepository) HasSubjectEnrollment(ctx context.Context, studentID, subjectID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments e JOIN sections s ON s.id = e.section_id
WHERE e.student_id = $1 AND s.subject_id = $2 LIMIT 1`
	return r.exists(ctx, "check subject enrollment", query, studentID, subjectID)
}

func (r *EnrollmentRepository) exists(ctx context.Context, op, query string, args ...interface{}) (bool, error) {
	var found int
	if err := sqlx.GetContext(ctx, r.db, &found, query, args...); err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", op, translateError(err))
	}
	return true, nil
}

// Insert appends a ledger entry. Duplicate section or subject holdings are
// rejected by the table constraints.
func (r *EnrollmentRepository) Insert(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollments (student_id, section_id, subject_id, enrolled_at)
        VALUES (:student_id, :section_id, :subject_id, :enrolled_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, enrollment); err != nil {
		return fmt.Errorf("insert enrollment: %w", translateError(err))
	}
	return nil
}

// Remove deletes a ledger entry and returns it. sql.ErrNoRows means the
// student held no such section.
func (r *EnrollmentRepository) Remove(ctx context.Context, studentID, sectionID string) (*models.Enrollment, error) {
	const query = `DELETE FROM enrollments WHERE student_id = $1 AND section_id = $2
RETURNING student_id, section_id, subject_id, enrolled_at`
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, r.db, &enrollment, query, studentID, sectionID); err != nil {
		if isNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("remove enrollment: %w", translateError(err))
	}
	return &enrollment, nil
}

// ListForStudent returns a student's enrollments in the order they were made.
func (r *EnrollmentRepository) ListForStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.student_id, e.section_id, e.subject_id, e.enrolled_at,
        sub.name AS subject_name, f.full_name AS faculty_name, s.department, s.year
        FROM enrollments e
        JOIN sections s ON s.id = e.section_id
        JOIN subjects sub ON sub.id = s.subject_id
        JOIN faculties f ON f.id = s.faculty_id
        WHERE e.student_id = $1
        ORDER BY e.enrolled_at ASC, e.section_id ASC`
	var enrollments []models.EnrollmentDetail
	if err := sqlx.SelectContext(ctx, r.db, &enrollments, query, studentID); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return enrollments, nil
}

// ListReport returns enrolled students of a faculty's sections for a subject,
// ordered by enrollment time, then student name, then student id.
func (r *EnrollmentRepository) ListReport(ctx context.Context, filter models.EnrollmentReportFilter) ([]models.EnrollmentReportRow, error) {
	const query = `SELECT st.id AS student_id, st.full_name AS student_name, st.regd_number, st.email AS student_email,
        st.year AS student_year, st.department, e.section_id, sub.name AS subject_name,
        f.full_name AS faculty_name, f.email AS faculty_email, e.enrolled_at
        FROM enrollments e
        JOIN students st ON st.id = e.student_id
        JOIN sections s ON s.id = e.section_id
        JOIN subjects sub ON sub.id = s.subject_id
        JOIN faculties f ON f.id = s.faculty_id
        WHERE s.faculty_id = $1 AND sub.name = $2
        ORDER BY e.enrolled_at ASC, st.full_name ASC, st.id ASC`
	var rows []models.EnrollmentReportRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, filter.FacultyID, filter.SubjectName); err != nil {
		return nil, fmt.Errorf("list enrollment report: %w", err)
	}
	return rows, nil
}

// CountForSection returns the number of ledger entries referencing a section.
func (r *EnrollmentRepository) CountForSection(ctx context.Context, sectionID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE section_id = $1`
	var total int
	if err := sqlx.GetContext(ctx, r.db, &total, query, sectionID); err != nil {
		return 0, fmt.Errorf("count section enrollments: %w", err)
	}
	return total, nil
}
