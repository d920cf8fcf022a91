package repository

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Store-level failures shared by the SQL and in-memory implementations.
var (
	ErrDuplicateKey        = errors.New("duplicate key")
	ErrDuplicateEnrollment = fmt.Errorf("%w: enrollment", ErrDuplicateKey)
	ErrDuplicateSection    = fmt.Errorf("%w: student already holds this section", ErrDuplicateEnrollment)
	ErrDuplicateSubject    = fmt.Errorf("%w: student already holds this subject", ErrDuplicateEnrollment)
	ErrCapacityViolation   = errors.New("section count out of bounds")
	ErrTransient           = errors.New("transient store failure")
)

// Constraint names from the enrollment schema.
const (
	constraintEnrollmentPK      = "enrollments_pkey"
	constraintStudentSubject    = "enrollments_student_subject_key"
	constraintSectionSeatBounds = "sections_seat_bounds_check"
)

// PostgreSQL SQLSTATE codes the store reacts to.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
	codeLockNotAvailable     = "55P03"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// translateError maps driver errors onto the store sentinels, keeping the
// original error in the chain.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch string(pqErr.Code) {
	case codeUniqueViolation:
		switch pqErr.Constraint {
		case constraintStudentSubject:
			return fmt.Errorf("%w: %w", ErrDuplicateSubject, err)
		case constraintEnrollmentPK:
			return fmt.Errorf("%w: %w", ErrDuplicateSection, err)
		}
		return fmt.Errorf("%w: %w", ErrDuplicateKey, err)
	case codeCheckViolation:
		if pqErr.Constraint == constraintSectionSeatBounds {
			return fmt.Errorf("%w: %w", ErrCapacityViolation, err)
		}
	case codeLockNotAvailable, codeSerializationFailure, codeDeadlockDetected:
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	return err
}

// IsTransient reports whether err is worth one more attempt.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsForeignKeyViolation reports whether err came from a missing referenced row.
func IsForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == codeForeignKeyViolation
}
