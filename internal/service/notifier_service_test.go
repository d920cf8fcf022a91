package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/elective-enrollment-api/internal/models"
	"github.com/noah-isme/elective-enrollment-api/internal/realtime"
	"github.com/noah-isme/elective-enrollment-api/pkg/jobs"
)

type stubStudents map[string]models.Student

func (s stubStudents) FindByID(_ context.Context, id string) (*models.Student, error) {
	student, ok := s[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &student, nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []models.Event
	err    error
}

func (p *capturePublisher) Publish(_ context.Context, event models.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

type fullDispatcher struct{}

func (fullDispatcher) TryEnqueue(jobs.Job) error { return jobs.ErrQueueFull }

func sampleChange(action models.AllocationAction, count int, wasFull bool) models.AllocationChange {
	return models.AllocationChange{
		Action:    action,
		StudentID: "stu-1",
		WasFull:   wasFull,
		At:        time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC),
		Section: models.Section{
			ID: "sec-a", SubjectName: "Algorithms", FacultyName: "Dr. Anand",
			Department: "CSE", Year: 3, Capacity: 60, SelectedCount: count,
		},
	}
}

func TestBuildEventsForFillingSeat(t *testing.T) {
	notifier := NewNotifierService(stubStudents{"stu-1": {ID: "stu-1", FullName: "Asha"}}, nil, nil, nil)

	events := notifier.BuildEvents(context.Background(), sampleChange(models.ActionEnrolled, 60, false))
	require.Len(t, events, 4)

	assert.Equal(t, "Algorithms_3_CSE", events[0].Topic)
	assert.Equal(t, models.EventSectionEnrolled, events[0].Type)
	count := events[0].Data.(models.SectionCountEvent)
	assert.Equal(t, 60, count.NewCount)
	assert.True(t, count.IsFull)
	assert.Equal(t, "Asha enrolled with Dr. Anand", count.Message)

	assert.Equal(t, models.EventAvailabilityChanged, events[1].Type)
	availability := events[1].Data.(models.AvailabilityEvent)
	assert.False(t, availability.IsAvailable)
	assert.Equal(t, "Subject is now full!", availability.Message)

	assert.Equal(t, "audience.FACULTY", events[2].Topic)
	assert.Equal(t, "audience.ADMIN", events[3].Topic)
	activity := events[2].Data.(models.EnrollmentActivityEvent)
	assert.Equal(t, "Asha", activity.StudentName)
	assert.Equal(t, models.ActionEnrolled, activity.Action)
}

func TestBuildEventsWithoutCrossing(t *testing.T) {
	notifier := NewNotifierService(stubStudents{}, nil, nil, nil)

	events := notifier.BuildEvents(context.Background(), sampleChange(models.ActionUnenrolled, 10, false))
	require.Len(t, events, 3)
	assert.Equal(t, models.EventSectionUnenrolled, events[0].Type)
	count := events[0].Data.(models.SectionCountEvent)
	assert.False(t, count.IsFull)
	assert.Equal(t, "stu-1", count.StudentName)
	assert.Equal(t, "stu-1 unenrolled from Dr. Anand", count.Message)
}

func TestBuildEventsSeatFreed(t *testing.T) {
	notifier := NewNotifierService(stubStudents{}, nil, nil, nil)

	events := notifier.BuildEvents(context.Background(), sampleChange(models.ActionUnenrolled, 59, true))
	require.Len(t, events, 4)
	availability := events[1].Data.(models.AvailabilityEvent)
	assert.True(t, availability.IsAvailable)
	assert.Equal(t, "Seats are now available!", availability.Message)
}

func TestOnAllocationChangeSwallowsPublishFailures(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	good := &capturePublisher{}
	bad := &capturePublisher{err: errors.New("broker down")}
	metrics := NewMetricsService()
	notifier := NewNotifierService(stubStudents{}, []Publisher{bad, good}, metrics, zap.New(core))

	notifier.OnAllocationChange(context.Background(), sampleChange(models.ActionEnrolled, 5, false))

	assert.Len(t, good.events, 3)
	assert.Equal(t, 3, logs.FilterMessage("publish allocation event failed").Len())
	assert.Equal(t, uint64(3), metrics.Snapshot().NotificationFailures)
}

func TestOnAllocationChangeDropsWhenQueueFull(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	publisher := &capturePublisher{}
	notifier := NewNotifierService(stubStudents{}, []Publisher{publisher}, nil, zap.New(core))
	notifier.UseDispatcher(fullDispatcher{})

	notifier.OnAllocationChange(context.Background(), sampleChange(models.ActionEnrolled, 5, false))

	assert.Empty(t, publisher.events)
	assert.Equal(t, 1, logs.FilterMessage("allocation change notification dropped").Len())
}

func TestNotifierDeliversThroughQueueToHub(t *testing.T) {
	hub := realtime.NewHub(8, nil)
	sub := hub.Subscribe("Algorithms_3_CSE")
	defer sub.Close()

	notifier := NewNotifierService(stubStudents{"stu-1": {FullName: "Asha"}}, []Publisher{hub}, nil, nil)
	queue := jobs.NewQueue("notifications", notifier.HandleJob, jobs.QueueConfig{Workers: 1, MaxRetries: -1})
	queue.Start(context.Background())
	defer queue.Stop()
	notifier.UseDispatcher(queue)

	notifier.OnAllocationChange(context.Background(), sampleChange(models.ActionEnrolled, 1, false))

	select {
	case event := <-sub.Events():
		assert.Equal(t, models.EventSectionEnrolled, event.Type)
		assert.Equal(t, "Asha", event.Data.(models.SectionCountEvent).StudentName)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestHandleJobRejectsUnknownPayload(t *testing.T) {
	notifier := NewNotifierService(nil, nil, nil, nil)
	err := notifier.HandleJob(context.Background(), jobs.Job{ID: "j1", Payload: "nope"})
	assert.Error(t, err)
}
