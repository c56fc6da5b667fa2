package services

import (
	"context"
	"testing"

	"github.com/quizforge/quiz-service/internal/events"
	"github.com/quizforge/quiz-service/internal/models"
)

func TestNotificationEvents(t *testing.T) {
	ctx := context.Background()
	publisher := events.NewMockEventPublisher(testLogger())
	service := NewNotificationEventService(publisher, testLogger())

	attempt := &models.Attempt{
		QuizID:     7,
		StudentID:  3,
		Status:     models.AttemptCompleted,
		TotalMarks: 8,
		MaxMarks:   10,
		Percentage: 80,
		Passed:     true,
		EndReason:  models.AttemptEndReasonSubmitted,
	}
	attempt.ID = 42

	t.Run("envelope", func(t *testing.T) {
		publisher.ClearEvents()
		if err := service.PublishAttemptGraded(ctx, attempt); err != nil {
			t.Fatalf("PublishAttemptGraded: %v", err)
		}

		published := publisher.GetPublishedEvents()
		if len(published) != 1 {
			t.Fatalf("got %d events, want 1", len(published))
		}
		ev := published[0]
		if ev.Type != events.EventAttemptGraded {
			t.Errorf("Type = %q, want %q", ev.Type, events.EventAttemptGraded)
		}
		if ev.Source != "quiz-service" {
			t.Errorf("Source = %q, want quiz-service", ev.Source)
		}
		if ev.Version != "1.0" {
			t.Errorf("Version = %q, want 1.0", ev.Version)
		}
		if ev.ID == "" || ev.Timestamp.IsZero() {
			t.Error("event ID or timestamp not set")
		}

		data, ok := ev.Data.(attemptEventData)
		if !ok {
			t.Fatalf("Data is %T, want attemptEventData", ev.Data)
		}
		if data.AttemptID != 42 || data.QuizID != 7 || data.StudentID != 3 {
			t.Errorf("unexpected payload: %+v", data)
		}
		if !data.Passed || data.Percentage != 80 {
			t.Errorf("grading outcome not carried: %+v", data)
		}
	})

	t.Run("warning carries the running count", func(t *testing.T) {
		publisher.ClearEvents()
		attempt.WarningCount = 2
		warning := &models.Warning{AttemptID: attempt.ID, Kind: "tab_switch", Detail: "blur"}

		if err := service.PublishWarningRecorded(ctx, attempt, warning); err != nil {
			t.Fatalf("PublishWarningRecorded: %v", err)
		}

		published := publisher.GetPublishedEvents()
		data, ok := published[0].Data.(warningEventData)
		if !ok {
			t.Fatalf("Data is %T, want warningEventData", published[0].Data)
		}
		if data.Kind != "tab_switch" || data.WarningCount != 2 {
			t.Errorf("unexpected payload: %+v", data)
		}
	})

	t.Run("email queue pointer", func(t *testing.T) {
		publisher.ClearEvents()
		if err := service.PublishEmailQueued(ctx, 99); err != nil {
			t.Fatalf("PublishEmailQueued: %v", err)
		}

		published := publisher.GetPublishedEvents()
		if published[0].Type != events.EventEmailQueued {
			t.Errorf("Type = %q, want %q", published[0].Type, events.EventEmailQueued)
		}
		data, ok := published[0].Data.(events.EmailQueuedData)
		if !ok {
			t.Fatalf("Data is %T, want events.EmailQueuedData", published[0].Data)
		}
		if data.MessageID != 99 {
			t.Errorf("MessageID = %d, want 99", data.MessageID)
		}
	})
}
