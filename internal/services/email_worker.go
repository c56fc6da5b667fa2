package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/quizforge/quiz-service/internal/events"
	"github.com/quizforge/quiz-service/internal/models"
	"github.com/quizforge/quiz-service/internal/repositories"
)

// EmailWorker drains the email queue in the background. It reacts to
// queue events for low latency and sweeps the queued rows periodically
// to catch messages whose event was lost.
type EmailWorker struct {
	repo       repositories.Repository
	email      EmailService
	subscriber events.EventSubscriber
	logger     *slog.Logger

	sweepInterval time.Duration
	sweepBatch    int
}

func NewEmailWorker(repo repositories.Repository, email EmailService, subscriber events.EventSubscriber, logger *slog.Logger) *EmailWorker {
	return &EmailWorker{
		repo:          repo,
		email:         email,
		subscriber:    subscriber,
		logger:        logger,
		sweepInterval: time.Minute,
		sweepBatch:    50,
	}
}

// Run blocks until ctx is cancelled.
func (w *EmailWorker) Run(ctx context.Context) error {
	messages, err := w.subscriber.Subscribe(ctx, events.TopicEmailQueue)
	if err != nil {
		return err
	}

	w.logger.Info("Email worker started", "topic", events.TopicEmailQueue, "sweep_interval", w.sweepInterval)

	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Email worker stopping")
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				w.logger.Info("Email worker subscription closed")
				return nil
			}
			w.handleMessage(ctx, msg)
		case <-ticker.C:
			w.sweepQueue(ctx)
		}
	}
}

func (w *EmailWorker) handleMessage(ctx context.Context, msg *message.Message) {
	// Failures are recorded on the email row and retried by the sweep, so
	// the message is always acked.
	defer msg.Ack()

	event, err := events.DecodeEvent(msg)
	if err != nil {
		w.logger.Error("Failed to decode email queue message", "message_uuid", msg.UUID, "error", err)
		return
	}
	if event.Type != events.EventEmailQueued {
		return
	}

	var data events.EmailQueuedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		w.logger.Error("Failed to decode email queue payload", "event_id", event.ID, "error", err)
		return
	}

	if err := w.email.Deliver(ctx, data.MessageID); err != nil {
		w.logger.Warn("Email delivery attempt failed", "message_id", data.MessageID, "error", err)
	}
}

// sweepQueue retries queued rows, covering lost events and earlier
// transient failures.
func (w *EmailWorker) sweepQueue(ctx context.Context) {
	queued, err := w.repo.Email().ListQueued(ctx, nil, w.sweepBatch)
	if err != nil {
		w.logger.Error("Failed to list queued emails", "error", err)
		return
	}

	for _, msg := range queued {
		if msg.Status != models.EmailQueued {
			continue
		}
		if err := w.email.Deliver(ctx, msg.ID); err != nil {
			w.logger.Warn("Email delivery attempt failed", "message_id", msg.ID, "error", err)
		}
	}
}
