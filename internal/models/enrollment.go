package models

import "time"

// AllocationAction names the kind of committed seat change.
type AllocationAction string

// Allocation actions.
const (
	ActionEnrolled   AllocationAction = "Enrolled"
	ActionUnenrolled AllocationAction = "Unenrolled"
)

// Enrollment is a ledger entry keyed by (student, section). SubjectID is
// denormalised so the store can enforce one section per subject per student.
type Enrollment struct {
	StudentID  string    `db:"student_id" json:"student_id"`
	SectionID  string    `db:"section_id" json:"section_id"`
	SubjectID  string    `db:"subject_id" json:"subject_id"`
	EnrolledAt time.Time `db:"enrolled_at" json:"enrolled_at"`
}

// EnrollmentDetail enriches Enrollment with section info for a student's view.
type EnrollmentDetail struct {
	Enrollment
	SubjectName string `db:"subject_name" json:"subject_name"`
	FacultyName string `db:"faculty_name" json:"faculty_name"`
	Department  string `db:"department" json:"department"`
	Year        int    `db:"year" json:"year"`
}

// AllocationResult is the successful outcome of Enroll or Unenroll.
type AllocationResult struct {
	Action     AllocationAction `json:"action"`
	StudentID  string           `json:"student_id"`
	Section    Section          `json:"section"`
	Enrollment Enrollment       `json:"enrollment"`
	NewCount   int              `json:"new_count"`
	IsFull     bool             `json:"is_full"`
}

// AllocationChange is handed to the notifier once per committed allocation.
// Section holds the post-commit state.
type AllocationChange struct {
	Action    AllocationAction `json:"action"`
	StudentID string           `json:"student_id"`
	Section   Section          `json:"section"`
	WasFull   bool             `json:"was_full"`
	At        time.Time        `json:"at"`
}

// CrossedAvailability reports whether the change filled the section or freed
// a seat in a previously full one.
func (c AllocationChange) CrossedAvailability() bool {
	return c.WasFull != c.Section.IsFull()
}
