package models

import (
	"fmt"
	"time"
)

// Section is one faculty's offering of a subject to a department/year cohort,
// capped at Capacity seats.
type Section struct {
	ID            string    `db:"id" json:"id"`
	SubjectID     string    `db:"subject_id" json:"subject_id"`
	SubjectName   string    `db:"subject_name" json:"subject_name"`
	FacultyID     string    `db:"faculty_id" json:"faculty_id"`
	FacultyName   string    `db:"faculty_name" json:"faculty_name"`
	FacultyEmail  string    `db:"faculty_email" json:"faculty_email,omitempty"`
	Department    string    `db:"department" json:"department"`
	Year          int       `db:"year" json:"year"`
	Capacity      int       `db:"capacity" json:"capacity"`
	SelectedCount int       `db:"selected_count" json:"selected_count"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// IsFull reports whether every seat is taken.
func (s Section) IsFull() bool {
	return s.SelectedCount >= s.Capacity
}

// SeatsLeft returns the number of free seats, never negative.
func (s Section) SeatsLeft() int {
	if s.SelectedCount >= s.Capacity {
		return 0
	}
	return s.Capacity - s.SelectedCount
}

// Topic is the realtime channel for everyone watching this subject in the
// section's cohort.
func (s Section) Topic() string {
	return SectionTopic(s.SubjectName, s.Year, s.Department)
}

// SectionTopic builds the topic name keyed by subject, year and department.
func SectionTopic(subjectName string, year int, department string) string {
	return fmt.Sprintf("%s_%d_%s", subjectName, year, department)
}

// SectionFilter narrows section listings.
type SectionFilter struct {
	Department string
	Year       int
	FacultyID  string
	Subject    string
}
