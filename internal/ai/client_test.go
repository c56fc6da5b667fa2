package ai

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/quizforge/quiz-service/internal/grading"
)

// fakeCompleter is a hand-rolled chatCompleter double. Outcomes are
// consumed in FIFO order; the last one repeats once the queue is drained.
type fakeCompleter struct {
	mu       sync.Mutex
	calls    int
	outcomes []fakeOutcome
	delay    time.Duration
}

type fakeOutcome struct {
	content string
	err     error
}

func (f *fakeCompleter) CreateChatCompletion(ctx context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.mu.Lock()
	idx := f.calls
	f.calls++
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return openai.ChatCompletionResponse{}, ctx.Err()
		case <-time.After(f.delay):
		}
	}

	if len(f.outcomes) == 0 {
		return openai.ChatCompletionResponse{}, errors.New("no outcomes configured")
	}
	if idx >= len(f.outcomes) {
		idx = len(f.outcomes) - 1
	}
	out := f.outcomes[idx]
	if out.err != nil {
		return openai.ChatCompletionResponse{}, out.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: out.content}},
		},
	}, nil
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestClient(api chatCompleter) *Client {
	return &Client{
		api:         api,
		model:       "test-model",
		cfg:         grading.DefaultConfig(),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		backoffUnit: time.Millisecond,
	}
}

var testQuestion = grading.Question{
	ID:     "q1",
	Text:   "What is the capital of France?",
	Kind:   grading.KindDescriptive,
	Answer: "Paris is the capital of France",
	Marks:  5,
}

const validResponse = `{"isCorrect": true, "marks": 4.5, "confidence": 0.9, "feedback": "Nearly complete.", "keyPointsFound": ["Paris"], "keyPointsMissing": ["capital"]}`

func TestClient_GradeAnswer_Success(t *testing.T) {
	api := &fakeCompleter{outcomes: []fakeOutcome{{content: validResponse}}}
	c := newTestClient(api)

	res, err := c.GradeAnswer(context.Background(), testQuestion, "Paris")
	if err != nil {
		t.Fatalf("GradeAnswer failed: %v", err)
	}
	if !res.IsCorrect {
		t.Error("expected IsCorrect")
	}
	if res.Marks != 4.5 {
		t.Errorf("Marks = %v, want 4.5", res.Marks)
	}
	if res.Confidence != 0.9 {
		t.Errorf("Confidence = %v, want 0.9", res.Confidence)
	}
	if res.Feedback != "Nearly complete." {
		t.Errorf("Feedback = %q", res.Feedback)
	}
	if len(res.KeyPointsFound) != 1 || len(res.KeyPointsMissing) != 1 {
		t.Errorf("key points = %v / %v", res.KeyPointsFound, res.KeyPointsMissing)
	}
	if api.callCount() != 1 {
		t.Errorf("API called %d times, want 1", api.callCount())
	}
}

func TestClient_GradeAnswer_RetriesThenSucceeds(t *testing.T) {
	api := &fakeCompleter{outcomes: []fakeOutcome{
		{err: errors.New("connection reset")},
		{err: errors.New("connection reset")},
		{content: validResponse},
	}}
	c := newTestClient(api)

	res, err := c.GradeAnswer(context.Background(), testQuestion, "Paris")
	if err != nil {
		t.Fatalf("GradeAnswer failed after retries: %v", err)
	}
	if res.Marks != 4.5 {
		t.Errorf("Marks = %v, want 4.5", res.Marks)
	}
	if api.callCount() != 3 {
		t.Errorf("API called %d times, want 3", api.callCount())
	}
}

func TestClient_GradeAnswer_ExhaustsRetries(t *testing.T) {
	api := &fakeCompleter{outcomes: []fakeOutcome{{err: errors.New("provider down")}}}
	c := newTestClient(api)

	_, err := c.GradeAnswer(context.Background(), testQuestion, "Paris")
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	var gradeErr *grading.AIGradingError
	if !errors.As(err, &gradeErr) {
		t.Fatalf("expected AIGradingError, got %T: %v", err, err)
	}
	if gradeErr.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", gradeErr.Attempts)
	}
	if api.callCount() != 3 {
		t.Errorf("API called %d times, want exactly 3", api.callCount())
	}
}

func TestClient_GradeAnswer_RetriesInvalidResponses(t *testing.T) {
	tests := []struct {
		name string
		bad  string
	}{
		{name: "not json", bad: "I think the answer is correct."},
		{name: "isCorrect not boolean", bad: `{"isCorrect": "yes", "marks": 3, "feedback": "ok"}`},
		{name: "missing marks", bad: `{"isCorrect": true, "feedback": "ok"}`},
		{name: "negative marks", bad: `{"isCorrect": true, "marks": -2, "feedback": "ok"}`},
		{name: "missing feedback", bad: `{"isCorrect": true, "marks": 3}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeCompleter{outcomes: []fakeOutcome{
				{content: tt.bad},
				{content: validResponse},
			}}
			c := newTestClient(api)

			res, err := c.GradeAnswer(context.Background(), testQuestion, "Paris")
			if err != nil {
				t.Fatalf("GradeAnswer failed: %v", err)
			}
			if res.Marks != 4.5 {
				t.Errorf("Marks = %v, want 4.5 from the retried response", res.Marks)
			}
			if api.callCount() != 2 {
				t.Errorf("API called %d times, want 2 (one rejection, one success)", api.callCount())
			}
		})
	}
}

func TestClient_GradeAnswer_ClampsMarksWithoutRetry(t *testing.T) {
	api := &fakeCompleter{outcomes: []fakeOutcome{
		{content: `{"isCorrect": true, "marks": 12, "confidence": 1.5, "feedback": "generous"}`},
	}}
	c := newTestClient(api)

	res, err := c.GradeAnswer(context.Background(), testQuestion, "Paris")
	if err != nil {
		t.Fatalf("GradeAnswer failed: %v", err)
	}
	if res.Marks != 5 {
		t.Errorf("Marks = %v, want 5 (clamped to question max)", res.Marks)
	}
	if res.Confidence != 1 {
		t.Errorf("Confidence = %v, want 1 (clamped)", res.Confidence)
	}
	if api.callCount() != 1 {
		t.Errorf("API called %d times, want 1: clamping must not retry", api.callCount())
	}
}

func TestClient_GradeAnswer_TimeoutPerAttempt(t *testing.T) {
	api := &fakeCompleter{
		outcomes: []fakeOutcome{{content: validResponse}},
		delay:    200 * time.Millisecond,
	}
	c := newTestClient(api)
	c.cfg.Timeout = 10 * time.Millisecond
	c.cfg.MaxRetries = 2

	_, err := c.GradeAnswer(context.Background(), testQuestion, "Paris")
	var gradeErr *grading.AIGradingError
	if !errors.As(err, &gradeErr) {
		t.Fatalf("expected AIGradingError, got %T: %v", err, err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error in chain, got %v", err)
	}
	if api.callCount() != 2 {
		t.Errorf("API called %d times, want 2", api.callCount())
	}
}

func TestClient_GradeAnswer_StopsOnCanceledContext(t *testing.T) {
	api := &fakeCompleter{outcomes: []fakeOutcome{{err: errors.New("provider down")}}}
	c := newTestClient(api)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GradeAnswer(ctx, testQuestion, "Paris")
	if err == nil {
		t.Fatal("expected error with canceled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
	if api.callCount() != 1 {
		t.Errorf("API called %d times, want 1: backoff must observe cancellation", api.callCount())
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "no fences", in: `{"a":1}`, want: `{"a":1}`},
		{name: "json fence", in: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "bare fence", in: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "padded", in: "  ```json\n{\"a\":1}\n```  ", want: `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripCodeFences(tt.in); got != tt.want {
				t.Errorf("stripCodeFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestClient_GradeAnswer_AcceptsFencedResponse(t *testing.T) {
	api := &fakeCompleter{outcomes: []fakeOutcome{
		{content: "```json\n" + validResponse + "\n```"},
	}}
	c := newTestClient(api)

	res, err := c.GradeAnswer(context.Background(), testQuestion, "Paris")
	if err != nil {
		t.Fatalf("GradeAnswer failed on fenced response: %v", err)
	}
	if res.Marks != 4.5 {
		t.Errorf("Marks = %v, want 4.5", res.Marks)
	}
	if api.callCount() != 1 {
		t.Errorf("API called %d times, want 1: fenced output should parse first try", api.callCount())
	}
}
