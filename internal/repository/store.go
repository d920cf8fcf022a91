package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/elective-enrollment-api/internal/models"
)

// AllocationTx is the registry and ledger as seen from inside one atomic unit
// of work. Everything done through it commits together or not at all.
type AllocationTx interface {
	FindSection(ctx context.Context, id string) (*models.Section, error)
	HasSectionEnrollment(ctx context.Context, studentID, sectionID string) (bool, error)
	HasSubjectEnrollment(ctx context.Context, studentID, subjectID string) (bool, error)
	InsertEnrollment(ctx context.Context, enrollment *models.Enrollment) error
	RemoveEnrollment(ctx context.Context, studentID, sectionID string) (*models.Enrollment, error)
	AdjustCount(ctx context.Context, sectionID string, delta int) (*models.Section, error)
}

// SQLStore runs allocation units inside PostgreSQL transactions.
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore constructs a SQLStore.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

// WithinTx runs fn in a transaction, committing when fn returns nil.
func (s *SQLStore) WithinTx(ctx context.Context, fn func(tx AllocationTx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin allocation transaction: %w", translateError(err))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&sqlAllocationTx{
		sections: NewSectionRepository(tx),
		ledger:   NewEnrollmentRepository(tx),
	}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit allocation: %w", translateError(err))
	}
	return nil
}

type sqlAllocationTx struct {
	sections *SectionRepository
	ledger   *EnrollmentRepository
}

func (t *sqlAllocationTx) FindSection(ctx context.Context, id string) (*models.Section, error) {
	return t.sections.FindByIDForUpdate(ctx, id)
}

func (t *sqlAllocationTx) HasSectionEnrollment(ctx context.Context, studentID, sectionID string) (bool, error) {
	return t.ledger.HasSectionEnrollment(ctx, studentID, sectionID)
}

func (t *sqlAllocationTx) HasSubjectEnrollment(ctx context.Context, studentID, subjectID string) (bool, error) {
	return t.ledger.HasSubjectEnrollment(ctx, studentID, subjectID)
}

func (t *sqlAllocationTx) InsertEnrollment(ctx context.Context, enrollment *models.Enrollment) error {
	return t.ledger.Insert(ctx, enrollment)
}

func (t *sqlAllocationTx) RemoveEnrollment(ctx context.Context, studentID, sectionID string) (*models.Enrollment, error) {
	return t.ledger.Remove(ctx, studentID, sectionID)
}

func (t *sqlAllocationTx) AdjustCount(ctx context.Context, sectionID string, delta int) (*models.Section, error) {
	return t.sections.AdjustCount(ctx, sectionID, delta)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
