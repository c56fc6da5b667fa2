package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/quizforge/quiz-service/internal/events"
	"github.com/quizforge/quiz-service/internal/models"
)

// notificationEventService fans domain events out onto the event
// transport so downstream consumers (dashboards, the email worker,
// audit) stay decoupled from the request path.
type notificationEventService struct {
	publisher events.EventPublisher
	logger    *slog.Logger
}

func NewNotificationEventService(publisher events.EventPublisher, logger *slog.Logger) NotificationEventService {
	return &notificationEventService{
		publisher: publisher,
		logger:    logger,
	}
}

type quizPublishedData struct {
	QuizID    uint       `json:"quiz_id"`
	Title     string     `json:"title"`
	CreatedBy string     `json:"created_by"`
	DueDate   *time.Time `json:"due_date,omitempty"`
}

type attemptEventData struct {
	AttemptID  uint    `json:"attempt_id"`
	QuizID     uint    `json:"quiz_id"`
	StudentID  uint    `json:"student_id"`
	Status     string  `json:"status"`
	TotalMarks float64 `json:"total_marks,omitempty"`
	MaxMarks   float64 `json:"max_marks,omitempty"`
	Percentage float64 `json:"percentage,omitempty"`
	Passed     bool    `json:"passed,omitempty"`
	EndReason  string  `json:"end_reason,omitempty"`
}

type warningEventData struct {
	AttemptID    uint   `json:"attempt_id"`
	QuizID       uint   `json:"quiz_id"`
	StudentID    uint   `json:"student_id"`
	Kind         string `json:"kind"`
	Detail       string `json:"detail,omitempty"`
	WarningCount int    `json:"warning_count"`
}

func (s *notificationEventService) PublishQuizPublished(ctx context.Context, quiz *models.Quiz) error {
	return s.publish(ctx, events.TopicQuizEvents, events.NewEvent(events.EventQuizPublished, quizPublishedData{
		QuizID:    quiz.ID,
		Title:     quiz.Title,
		CreatedBy: quiz.CreatedBy,
		DueDate:   quiz.DueDate,
	}))
}

func (s *notificationEventService) PublishAttemptStarted(ctx context.Context, attempt *models.Attempt) error {
	return s.publish(ctx, events.TopicQuizEvents, events.NewEvent(events.EventAttemptStarted, attemptData(attempt)))
}

func (s *notificationEventService) PublishAttemptCompleted(ctx context.Context, attempt *models.Attempt) error {
	return s.publish(ctx, events.TopicQuizEvents, events.NewEvent(events.EventAttemptCompleted, attemptData(attempt)))
}

func (s *notificationEventService) PublishAttemptGraded(ctx context.Context, attempt *models.Attempt) error {
	return s.publish(ctx, events.TopicQuizEvents, events.NewEvent(events.EventAttemptGraded, attemptData(attempt)))
}

func (s *notificationEventService) PublishWarningRecorded(ctx context.Context, attempt *models.Attempt, warning *models.Warning) error {
	return s.publish(ctx, events.TopicQuizEvents, events.NewEvent(events.EventWarningRecorded, warningEventData{
		AttemptID:    attempt.ID,
		QuizID:       attempt.QuizID,
		StudentID:    attempt.StudentID,
		Kind:         warning.Kind,
		Detail:       warning.Detail,
		WarningCount: attempt.WarningCount,
	}))
}

func (s *notificationEventService) PublishEmailQueued(ctx context.Context, messageID uint) error {
	return s.publish(ctx, events.TopicEmailQueue, events.NewEvent(events.EventEmailQueued, events.EmailQueuedData{
		MessageID: messageID,
	}))
}

func (s *notificationEventService) publish(ctx context.Context, topic string, event events.Event) error {
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		s.logger.Error("Failed to publish event", "topic", topic, "type", event.Type, "error", err)
		return err
	}
	s.logger.Debug("Event published", "topic", topic, "type", event.Type, "event_id", event.ID)
	return nil
}

func attemptData(attempt *models.Attempt) attemptEventData {
	return attemptEventData{
		AttemptID:  attempt.ID,
		QuizID:     attempt.QuizID,
		StudentID:  attempt.StudentID,
		Status:     string(attempt.Status),
		TotalMarks: attempt.TotalMarks,
		MaxMarks:   attempt.MaxMarks,
		Percentage: attempt.Percentage,
		Passed:     attempt.Passed,
		EndReason:  attempt.EndReason,
	}
}
