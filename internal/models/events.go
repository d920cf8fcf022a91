package models

import "time"

// Event types published on realtime topics.
const (
	EventSectionEnrolled     = "section.enrollment_updated"
	EventSectionUnenrolled   = "section.unenrollment_updated"
	EventAvailabilityChanged = "section.availability_changed"
	EventEnrollmentActivity  = "enrollment.changed"
	AudienceTopicPrefix      = "audience."
)

// Event is the envelope delivered to topic subscribers.
type Event struct {
	Topic       string      `json:"topic"`
	Type        string      `json:"type"`
	Data        interface{} `json:"data"`
	PublishedAt time.Time   `json:"published_at"`
}

// SectionCountEvent carries a section's post-commit count to its topic.
type SectionCountEvent struct {
	SectionID   string           `json:"section_id"`
	SubjectName string           `json:"subject_name"`
	Year        int              `json:"year"`
	Department  string           `json:"department"`
	FacultyName string           `json:"faculty_name"`
	StudentName string           `json:"student_name"`
	Action      AllocationAction `json:"action"`
	NewCount    int              `json:"new_count"`
	Capacity    int              `json:"capacity"`
	IsFull      bool             `json:"is_full"`
	Message     string           `json:"message"`
	Timestamp   time.Time        `json:"timestamp"`
}

// AvailabilityEvent fires when a section becomes full or frees its first seat.
type AvailabilityEvent struct {
	SectionID   string    `json:"section_id"`
	SubjectName string    `json:"subject_name"`
	Year        int       `json:"year"`
	Department  string    `json:"department"`
	IsAvailable bool      `json:"is_available"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
}

// EnrollmentActivityEvent summarises who enrolled or left, for staff dashboards.
type EnrollmentActivityEvent struct {
	SectionID   string           `json:"section_id"`
	SubjectName string           `json:"subject_name"`
	FacultyName string           `json:"faculty_name"`
	StudentID   string           `json:"student_id"`
	StudentName string           `json:"student_name"`
	Action      AllocationAction `json:"action"`
	NewCount    int              `json:"new_count"`
	Timestamp   time.Time        `json:"timestamp"`
}

// AudienceTopic returns the topic staff dashboards of a role listen on.
func AudienceTopic(role UserRole) string {
	return AudienceTopicPrefix + string(role)
}
