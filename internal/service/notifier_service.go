package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/elective-enrollment-api/internal/models"
	"github.com/noah-isme/elective-enrollment-api/pkg/jobs"
)

const allocationChangeJob = "allocation.change"

// Publisher delivers one event to a transport.
type Publisher interface {
	Publish(ctx context.Context, event models.Event) error
}

type jobDispatcher interface {
	TryEnqueue(job jobs.Job) error
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// staffAudiences receive the activity feed of every allocation change.
var staffAudiences = []models.UserRole{models.RoleFaculty, models.RoleAdmin}

// NotifierService turns committed allocation changes into realtime events.
// Delivery is best effort: failures are logged and counted, never returned to
// the allocator.
type NotifierService struct {
	students   studentReader
	publishers []Publisher
	dispatcher jobDispatcher
	metrics    *MetricsService
	logger     *zap.Logger
	timeout    time.Duration
}

// NewNotifierService constructs the notifier. Events go to every publisher.
func NewNotifierService(students studentReader, publishers []Publisher, metrics *MetricsService, logger *zap.Logger) *NotifierService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotifierService{
		students:   students,
		publishers: publishers,
		metrics:    metrics,
		logger:     logger,
		timeout:    5 * time.Second,
	}
}

// UseDispatcher routes deliveries through a background queue. Without one,
// OnAllocationChange delivers on the calling goroutine.
func (s *NotifierService) UseDispatcher(dispatcher jobDispatcher) {
	s.dispatcher = dispatcher
}

// OnAllocationChange schedules delivery for one committed change. It never
// blocks on a transport.
func (s *NotifierService) OnAllocationChange(ctx context.Context, change models.AllocationChange) {
	if s.dispatcher == nil {
		s.deliver(ctx, change)
		return
	}
	job := jobs.Job{ID: uuid.NewString(), Type: allocationChangeJob, Payload: change}
	if err := s.dispatcher.TryEnqueue(job); err != nil {
		s.metrics.NotificationFailed("enqueue")
		s.logger.Error("allocation change notification dropped",
			zap.String("section_id", change.Section.ID),
			zap.String("student_id", change.StudentID),
			zap.String("action", string(change.Action)),
			zap.Error(err))
	}
}

// HandleJob is the queue handler for scheduled deliveries.
func (s *NotifierService) HandleJob(ctx context.Context, job jobs.Job) error {
	change, ok := job.Payload.(models.AllocationChange)
	if !ok {
		return fmt.Errorf("job %s: unexpected payload %T", job.ID, job.Payload)
	}
	s.deliver(ctx, change)
	return nil
}

func (s *NotifierService) deliver(ctx context.Context, change models.AllocationChange) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	events := s.BuildEvents(ctx, change)

	group, groupCtx := errgroup.WithContext(ctx)
	for _, publisher := range s.publishers {
		publisher := publisher
		group.Go(func() error {
			for _, event := range events {
				if err := publisher.Publish(groupCtx, event); err != nil {
					s.metrics.NotificationFailed("publish")
					s.logger.Error("publish allocation event failed",
						zap.String("topic", event.Topic),
						zap.String("type", event.Type),
						zap.Error(err))
				}
			}
			return nil
		})
	}
	_ = group.Wait()
}

// BuildEvents renders the events for one change: the section topic count
// update, an availability event when the section crossed full, and the staff
// activity feed.
func (s *NotifierService) BuildEvents(ctx context.Context, change models.AllocationChange) []models.Event {
	section := change.Section
	at := change.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	studentName := s.studentName(ctx, change.StudentID)

	eventType := models.EventSectionEnrolled
	message := fmt.Sprintf("%s enrolled with %s", studentName, section.FacultyName)
	if change.Action == models.ActionUnenrolled {
		eventType = models.EventSectionUnenrolled
		message = fmt.Sprintf("%s unenrolled from %s", studentName, section.FacultyName)
	}

	events := []models.Event{{
		Topic: section.Topic(),
		Type:  eventType,
		Data: models.SectionCountEvent{
			SectionID:   section.ID,
			SubjectName: section.SubjectName,
			Year:        section.Year,
			Department:  section.Department,
			FacultyName: section.FacultyName,
			StudentName: studentName,
			Action:      change.Action,
			NewCount:    section.SelectedCount,
			Capacity:    section.Capacity,
			IsFull:      section.IsFull(),
			Message:     message,
			Timestamp:   at,
		},
		PublishedAt: at,
	}}

	if change.CrossedAvailability() {
		available := !section.IsFull()
		availability := "Subject is now full!"
		if available {
			availability = "Seats are now available!"
		}
		events = append(events, models.Event{
			Topic: section.Topic(),
			Type:  models.EventAvailabilityChanged,
			Data: models.AvailabilityEvent{
				SectionID:   section.ID,
				SubjectName: section.SubjectName,
				Year:        section.Year,
				Department:  section.Department,
				IsAvailable: available,
				Message:     availability,
				Timestamp:   at,
			},
			PublishedAt: at,
		})
	}

	activity := models.EnrollmentActivityEvent{
		SectionID:   section.ID,
		SubjectName: section.SubjectName,
		FacultyName: section.FacultyName,
		StudentID:   change.StudentID,
		StudentName: studentName,
		Action:      change.Action,
		NewCount:    section.SelectedCount,
		Timestamp:   at,
	}
	for _, role := range staffAudiences {
		events = append(events, models.Event{
			Topic:       models.AudienceTopic(role),
			Type:        models.EventEnrollmentActivity,
			Data:        activity,
			PublishedAt: at,
		})
	}
	return events
}

func (s *NotifierService) studentName(ctx context.Context, studentID string) string {
	if s.students == nil {
		return studentID
	}
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		s.metrics.NotificationFailed("lookup")
		s.logger.Warn("student lookup for notification failed", zap.String("student_id", studentID), zap.Error(err))
		return studentID
	}
	return student.FullName
}
