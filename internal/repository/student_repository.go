package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/elective-enrollment-api/internal/models"
)

// StudentRepository reads student profiles.
type StudentRepository struct {
	db sqlx.ExtContext
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db sqlx.ExtContext) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID returns a student by id.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, full_name, regd_number, department, year, email FROM students WHERE id = $1`
	var student models.Student
	if err := sqlx.GetContext(ctx, r.db, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}
