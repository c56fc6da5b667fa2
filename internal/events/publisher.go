package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// Topics carried by the event transport.
const (
	TopicQuizEvents = "quiz.events"
	TopicEmailQueue = "quiz.emails"
)

// Event types published on TopicQuizEvents.
const (
	EventQuizPublished    = "quiz.published"
	EventAttemptStarted   = "attempt.started"
	EventAttemptCompleted = "attempt.completed"
	EventAttemptGraded    = "attempt.graded"
	EventWarningRecorded  = "attempt.warning"
	EventBulkNotification = "system.bulk_notification"
	EventEmailQueued      = "email.queued"
)

// Event is the envelope every published message uses.
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// NewEvent wraps a payload in the standard envelope.
func NewEvent(eventType string, data interface{}) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    "quiz-service",
		Version:   "1.0",
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// EventPublisher is the outbound side of the event transport.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event Event) error
	Close() error
}

// EventSubscriber is the inbound side. Messages must be Acked or Nacked
// by the consumer.
type EventSubscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
	Close() error
}

// ReceivedEvent mirrors Event on the consuming side, with the payload
// left raw for the consumer to decode into its own type.
type ReceivedEvent struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	Version   string          `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// DecodeEvent unmarshals a transported message back into its envelope.
func DecodeEvent(msg *message.Message) (*ReceivedEvent, error) {
	var ev ReceivedEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return nil, fmt.Errorf("decode event %s: %w", msg.UUID, err)
	}
	return &ev, nil
}

// EmailQueuedData is the payload of EventEmailQueued messages: a pointer
// at the persisted email row the worker should deliver.
type EmailQueuedData struct {
	MessageID uint `json:"message_id"`
}

func marshalEvent(event Event) (*message.Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event %s: %w", event.Type, err)
	}
	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set("event_type", event.Type)
	msg.Metadata.Set("source", event.Source)
	return msg, nil
}
