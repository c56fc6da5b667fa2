package grading

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"testing"
	"time"
)

// mockAIGrader is a hand-rolled AIGrader double with call counting.
type mockAIGrader struct {
	mu          sync.Mutex
	calls       int
	result      *AIResult
	err         error
	panicID     string // panic when asked to grade this question ID
	sawDeadline bool
}

func (m *mockAIGrader) GradeAnswer(ctx context.Context, q Question, _ string) (*AIResult, error) {
	m.mu.Lock()
	m.calls++
	if _, ok := ctx.Deadline(); ok {
		m.sawDeadline = true
	}
	m.mu.Unlock()

	if m.panicID != "" && q.ID == m.panicID {
		panic("forced panic in test grader")
	}
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		res := *m.result
		return &res, nil
	}
	return &AIResult{IsCorrect: true, Marks: q.MaxMarks(), Confidence: 0.9, Feedback: "Looks right."}, nil
}

func (m *mockAIGrader) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func newTestGrader(ai AIGrader, rec Recorder) *AttemptGrader {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAttemptGrader(DefaultConfig(), ai, rec, logger)
}

func TestAttemptGrader_Grade_LengthMismatch(t *testing.T) {
	rec := NewMemoryRecorder()
	g := newTestGrader(nil, rec)

	questions := []Question{{ID: "q1", Kind: KindMCQ, Answer: "A", Marks: 1}}
	_, err := g.Grade(context.Background(), questions, nil, Options{})
	if err == nil {
		t.Fatal("expected error for mismatched input lengths")
	}
	var shapeErr *InputShapeError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("expected InputShapeError, got %T: %v", err, err)
	}
	if shapeErr.Questions != 1 || shapeErr.Answers != 0 {
		t.Errorf("got counts %d/%d, want 1/0", shapeErr.Questions, shapeErr.Answers)
	}

	stats := rec.Snapshot()
	if stats.FailedGradings != 1 {
		t.Errorf("FailedGradings = %d, want 1", stats.FailedGradings)
	}
}

func TestAttemptGrader_Grade_EmptyInputs(t *testing.T) {
	g := newTestGrader(nil, nil)

	result, err := g.Grade(context.Background(), nil, nil, Options{})
	if err != nil {
		t.Fatalf("Grade failed: %v", err)
	}
	if len(result.GradedAnswers) != 0 {
		t.Errorf("expected no graded answers, got %d", len(result.GradedAnswers))
	}
	if result.TotalMarks != 0 || result.MaxMarks != 0 || result.Percentage != 0 {
		t.Errorf("expected zero totals, got total=%v max=%v pct=%v",
			result.TotalMarks, result.MaxMarks, result.Percentage)
	}
}

func TestAttemptGrader_Grade_MixedQuiz(t *testing.T) {
	// MCQ answered with an option label plus a descriptive answer graded
	// by the similarity fallback (no external grader configured).
	g := newTestGrader(nil, nil)

	questions := []Question{
		{ID: "q1", Text: "Pick one", Kind: KindMCQ, Answer: "B", Marks: 2},
		{ID: "q2", Text: "Capital of France?", Kind: KindDescriptive, Answer: "Paris is the capital of France", Marks: 5},
	}
	answers := []string{"Option B", "paris capital france"}

	result, err := g.Grade(context.Background(), questions, answers, Options{})
	if err != nil {
		t.Fatalf("Grade failed: %v", err)
	}
	if len(result.GradedAnswers) != 2 {
		t.Fatalf("expected 2 graded answers, got %d", len(result.GradedAnswers))
	}

	mcq := result.GradedAnswers[0]
	if !mcq.IsCorrect || mcq.Marks != 2 {
		t.Errorf("mcq: got marks=%v correct=%v, want 2/true", mcq.Marks, mcq.IsCorrect)
	}

	// Word overlap is 3 of 6 unique words, similarity 0.5: half credit,
	// not correct.
	desc := result.GradedAnswers[1]
	if desc.IsCorrect {
		t.Error("descriptive answer in the partial band should not be correct")
	}
	if desc.Marks != 2.5 {
		t.Errorf("descriptive marks = %v, want 2.5", desc.Marks)
	}

	if result.TotalMarks != 4.5 {
		t.Errorf("TotalMarks = %v, want 4.5", result.TotalMarks)
	}
	if result.MaxMarks != 7 {
		t.Errorf("MaxMarks = %v, want 7", result.MaxMarks)
	}
	if result.Percentage != 64.29 {
		t.Errorf("Percentage = %v, want 64.29", result.Percentage)
	}
}

func TestAttemptGrader_Grade_EmptyAnswerSkipsAI(t *testing.T) {
	ai := &mockAIGrader{}
	g := newTestGrader(ai, nil)

	questions := []Question{
		{ID: "q1", Kind: KindDescriptive, Answer: "anything", Marks: 3},
		{ID: "q2", Kind: KindShortAnswer, Answer: "anything", Marks: 3},
	}
	answers := []string{"", "   \t  "}

	result, err := g.Grade(context.Background(), questions, answers, Options{})
	if err != nil {
		t.Fatalf("Grade failed: %v", err)
	}
	if ai.callCount() != 0 {
		t.Errorf("external grader invoked %d times for blank answers, want 0", ai.callCount())
	}
	for i, ga := range result.GradedAnswers {
		if ga.Marks != 0 || ga.IsCorrect {
			t.Errorf("answer %d: got marks=%v correct=%v, want 0/false", i, ga.Marks, ga.IsCorrect)
		}
		if ga.Explanation != "No answer provided." {
			t.Errorf("answer %d: explanation = %q", i, ga.Explanation)
		}
	}
}

func TestAttemptGrader_Grade_AIPath(t *testing.T) {
	ai := &mockAIGrader{result: &AIResult{
		IsCorrect:      true,
		Marks:          7.5, // above the question max, must be clamped
		Confidence:     0.85,
		Feedback:       "Covers the key points.",
		KeyPointsFound: []string{"capital"},
	}}
	g := newTestGrader(ai, nil)

	questions := []Question{{ID: "q1", Kind: KindDescriptive, Answer: "Paris is the capital of France", Marks: 5}}
	result, err := g.Grade(context.Background(), questions, []string{"Paris"}, Options{})
	if err != nil {
		t.Fatalf("Grade failed: %v", err)
	}

	ga := result.GradedAnswers[0]
	if !ga.AIGraded {
		t.Error("expected AIGraded to be set")
	}
	if ga.Marks != 5 {
		t.Errorf("Marks = %v, want 5 (clamped to question max)", ga.Marks)
	}
	if ga.Confidence != 0.85 {
		t.Errorf("Confidence = %v, want 0.85", ga.Confidence)
	}
	if ga.Explanation != "Covers the key points." {
		t.Errorf("Explanation = %q", ga.Explanation)
	}
	if ai.callCount() != 1 {
		t.Errorf("external grader invoked %d times, want 1", ai.callCount())
	}
}

func TestAttemptGrader_Grade_FallbackOnAIError(t *testing.T) {
	ai := &mockAIGrader{err: &AIGradingError{Attempts: 3, Err: errors.New("provider unavailable")}}
	rec := NewMemoryRecorder()
	g := newTestGrader(ai, rec)

	questions := []Question{{ID: "q1", Kind: KindDescriptive, Answer: "Paris is the capital of France", Marks: 5}}
	result, err := g.Grade(context.Background(), questions, []string{"paris capital france"}, Options{})
	if err != nil {
		t.Fatalf("Grade failed: %v", err)
	}

	ga := result.GradedAnswers[0]
	if ga.AIGraded {
		t.Error("fallback answer should not be marked AIGraded")
	}
	if ga.Marks != 2.5 || ga.IsCorrect {
		t.Errorf("got marks=%v correct=%v, want 2.5/false from similarity fallback", ga.Marks, ga.IsCorrect)
	}

	stats := rec.Snapshot()
	if stats.FallbackUsed != 1 {
		t.Errorf("FallbackUsed = %d, want 1", stats.FallbackUsed)
	}
	// The attempt itself still completed.
	if stats.SuccessfulGradings != 1 {
		t.Errorf("SuccessfulGradings = %d, want 1", stats.SuccessfulGradings)
	}
}

func TestAttemptGrader_Grade_DisableAI(t *testing.T) {
	ai := &mockAIGrader{}
	g := newTestGrader(ai, nil)

	questions := []Question{{ID: "q1", Kind: KindDescriptive, Answer: "Paris is the capital of France", Marks: 5}}
	result, err := g.Grade(context.Background(), questions, []string{"Paris is the capital of France"}, Options{DisableAI: true})
	if err != nil {
		t.Fatalf("Grade failed: %v", err)
	}
	if ai.callCount() != 0 {
		t.Errorf("external grader invoked %d times with AI disabled, want 0", ai.callCount())
	}
	ga := result.GradedAnswers[0]
	if !ga.IsCorrect || ga.Marks != 5 {
		t.Errorf("identical answer should earn full marks via similarity, got %v/%v", ga.Marks, ga.IsCorrect)
	}
}

func TestAttemptGrader_Grade_PanicIsolation(t *testing.T) {
	ai := &mockAIGrader{panicID: "q2"}
	rec := NewMemoryRecorder()
	g := newTestGrader(ai, rec)

	questions := []Question{
		{ID: "q1", Kind: KindMCQ, Answer: "A", Marks: 1},
		{ID: "q2", Kind: KindDescriptive, Answer: "expected", Marks: 4},
		{ID: "q3", Kind: KindMCQ, Answer: "C", Marks: 1},
	}
	answers := []string{"A", "some answer", "C"}

	result, err := g.Grade(context.Background(), questions, answers, Options{})
	if err != nil {
		t.Fatalf("Grade failed: %v", err)
	}
	if len(result.GradedAnswers) != 3 {
		t.Fatalf("expected 3 graded answers, got %d", len(result.GradedAnswers))
	}

	bad := result.GradedAnswers[1]
	if !bad.NeedsReview {
		t.Error("panicked question should be flagged NeedsReview")
	}
	if bad.Marks != 0 || bad.IsCorrect {
		t.Errorf("panicked question: got marks=%v correct=%v, want 0/false", bad.Marks, bad.IsCorrect)
	}
	if bad.MaxMarks != 4 {
		t.Errorf("panicked question keeps its max marks, got %v", bad.MaxMarks)
	}

	// Neighbours are unaffected.
	if !result.GradedAnswers[0].IsCorrect || !result.GradedAnswers[2].IsCorrect {
		t.Error("questions around the failure should still grade normally")
	}

	stats := rec.Snapshot()
	if stats.FailedGradings != 1 {
		t.Errorf("FailedGradings = %d, want 1", stats.FailedGradings)
	}
}

func TestAttemptGrader_Grade_UnknownKindGradesAsChoice(t *testing.T) {
	g := newTestGrader(nil, nil)

	questions := []Question{{ID: "q1", Kind: Kind(99), Answer: "A", Marks: 2}}
	result, err := g.Grade(context.Background(), questions, []string{"a)"}, Options{})
	if err != nil {
		t.Fatalf("Grade failed: %v", err)
	}
	ga := result.GradedAnswers[0]
	if !ga.IsCorrect || ga.Marks != 2 {
		t.Errorf("unknown kind should grade as a choice question, got %v/%v", ga.Marks, ga.IsCorrect)
	}
}

func TestAttemptGrader_Grade_OrderPreserved(t *testing.T) {
	g := newTestGrader(nil, nil)

	const n = 50
	questions := make([]Question, n)
	answers := make([]string, n)
	for i := range questions {
		questions[i] = Question{ID: questionID(i), Kind: KindMCQ, Answer: "A", Marks: 1}
		if i%2 == 0 {
			answers[i] = "A"
		} else {
			answers[i] = "B"
		}
	}

	result, err := g.Grade(context.Background(), questions, answers, Options{})
	if err != nil {
		t.Fatalf("Grade failed: %v", err)
	}
	if len(result.GradedAnswers) != n {
		t.Fatalf("expected %d graded answers, got %d", n, len(result.GradedAnswers))
	}
	for i, ga := range result.GradedAnswers {
		if ga.QuestionID != questionID(i) {
			t.Fatalf("answer %d: QuestionID = %q, want %q", i, ga.QuestionID, questionID(i))
		}
		if want := i%2 == 0; ga.IsCorrect != want {
			t.Errorf("answer %d: IsCorrect = %v, want %v", i, ga.IsCorrect, want)
		}
	}
	if result.TotalMarks != 25 {
		t.Errorf("TotalMarks = %v, want 25", result.TotalMarks)
	}
}

func questionID(i int) string {
	return string(rune('a'+i%26)) + "-" + string(rune('0'+i/26))
}

func TestAttemptGrader_Grade_MarksWithinBounds(t *testing.T) {
	// Randomized sweep: whatever the inputs, awarded marks stay within
	// [0, question max].
	g := newTestGrader(nil, nil)
	rng := rand.New(rand.NewSource(42))

	answerPool := []string{
		"", "A", "b)", "Option C", "paris", "Paris is the capital of France",
		"paris capital france", "completely unrelated words here", "10)", "  ",
	}
	kinds := []Kind{KindMCQ, KindMultipleChoice, KindShortAnswer, KindDescriptive}

	for i := 0; i < 200; i++ {
		q := Question{
			ID:     "q",
			Kind:   kinds[rng.Intn(len(kinds))],
			Answer: answerPool[rng.Intn(len(answerPool))],
			Marks:  float64(rng.Intn(21)) - 5, // includes non-positive marks
		}
		answer := answerPool[rng.Intn(len(answerPool))]

		result, err := g.Grade(context.Background(), []Question{q}, []string{answer}, Options{})
		if err != nil {
			t.Fatalf("Grade failed: %v", err)
		}
		ga := result.GradedAnswers[0]
		if ga.Marks < 0 || ga.Marks > ga.MaxMarks {
			t.Fatalf("marks %v outside [0, %v] for kind=%v answer=%q student=%q",
				ga.Marks, ga.MaxMarks, q.Kind, q.Answer, answer)
		}
	}
}

func TestAttemptGrader_Grade_AttemptDeadline(t *testing.T) {
	ai := &mockAIGrader{}
	cfg := DefaultConfig()
	cfg.AttemptDeadline = 5 * time.Second
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	g := NewAttemptGrader(cfg, ai, nil, logger)

	questions := []Question{{ID: "q1", Kind: KindDescriptive, Answer: "expected", Marks: 1}}
	if _, err := g.Grade(context.Background(), questions, []string{"answer"}, Options{}); err != nil {
		t.Fatalf("Grade failed: %v", err)
	}
	if !ai.sawDeadline {
		t.Error("expected the per-attempt deadline to reach the external grader's context")
	}
}

func BenchmarkAttemptGrader_Grade(b *testing.B) {
	g := newTestGrader(nil, nil)

	questions := make([]Question, 20)
	answers := make([]string, 20)
	for i := range questions {
		if i%2 == 0 {
			questions[i] = Question{ID: "q", Kind: KindMCQ, Answer: "B", Marks: 2}
			answers[i] = "Option B"
		} else {
			questions[i] = Question{ID: "q", Kind: KindDescriptive, Answer: "Paris is the capital of France", Marks: 5}
			answers[i] = "paris capital france"
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := g.Grade(context.Background(), questions, answers, Options{}); err != nil {
			b.Fatalf("Grade failed: %v", err)
		}
	}
}
