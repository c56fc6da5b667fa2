package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewEvent_Envelope(t *testing.T) {
	ev := NewEvent(EventAttemptGraded, map[string]uint{"attempt_id": 7})

	if ev.ID == "" {
		t.Error("Event ID should not be empty")
	}
	if ev.Type != EventAttemptGraded {
		t.Errorf("Type = %q, want %q", ev.Type, EventAttemptGraded)
	}
	if ev.Source != "quiz-service" {
		t.Errorf("Source = %q, want 'quiz-service'", ev.Source)
	}
	if ev.Version != "1.0" {
		t.Errorf("Version = %q, want '1.0'", ev.Version)
	}
	if ev.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
}

func TestChannelBus_PublishSubscribe(t *testing.T) {
	bus := NewChannelBus(testLogger())
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messages, err := bus.Subscribe(ctx, TopicEmailQueue)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	want := NewEvent(EventEmailQueued, EmailQueuedData{MessageID: 42})
	if err := bus.Publish(ctx, TopicEmailQueue, want); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case msg := <-messages:
		got, err := DecodeEvent(msg)
		if err != nil {
			t.Fatalf("DecodeEvent failed: %v", err)
		}
		msg.Ack()

		if got.ID != want.ID {
			t.Errorf("ID = %q, want %q", got.ID, want.ID)
		}
		if got.Type != EventEmailQueued {
			t.Errorf("Type = %q, want %q", got.Type, EventEmailQueued)
		}
		if got.Source != "quiz-service" {
			t.Errorf("Source = %q, want 'quiz-service'", got.Source)
		}

		var data EmailQueuedData
		if err := json.Unmarshal(got.Data, &data); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if data.MessageID != 42 {
			t.Errorf("MessageID = %d, want 42", data.MessageID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the published message")
	}
}

func TestMockEventPublisher(t *testing.T) {
	pub := NewMockEventPublisher(testLogger())
	ctx := context.Background()

	if err := pub.Publish(ctx, TopicQuizEvents, NewEvent(EventQuizPublished, nil)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if err := pub.Publish(ctx, TopicQuizEvents, NewEvent(EventAttemptCompleted, nil)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	published := pub.GetPublishedEvents()
	if len(published) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(published))
	}
	if published[0].Type != EventQuizPublished || published[1].Type != EventAttemptCompleted {
		t.Errorf("unexpected event order: %q, %q", published[0].Type, published[1].Type)
	}

	pub.ClearEvents()
	if remaining := pub.GetPublishedEvents(); len(remaining) != 0 {
		t.Errorf("Expected no events after ClearEvents, got %d", len(remaining))
	}
}
