package models

import "time"

// EnrollmentReportRow is one enrolled student in a faculty report.
type EnrollmentReportRow struct {
	StudentID    string    `db:"student_id" json:"student_id"`
	StudentName  string    `db:"student_name" json:"student_name"`
	RegdNumber   string    `db:"regd_number" json:"regd_number"`
	StudentEmail string    `db:"student_email" json:"student_email"`
	StudentYear  int       `db:"student_year" json:"student_year"`
	Department   string    `db:"department" json:"department"`
	SectionID    string    `db:"section_id" json:"section_id"`
	SubjectName  string    `db:"subject_name" json:"subject_name"`
	FacultyName  string    `db:"faculty_name" json:"faculty_name"`
	FacultyEmail string    `db:"faculty_email" json:"faculty_email"`
	EnrolledAt   time.Time `db:"enrolled_at" json:"enrolled_at"`
}

// EnrollmentReportFilter selects sections by owning faculty and subject name.
type EnrollmentReportFilter struct {
	FacultyID   string
	SubjectName string
}
