package grading

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// AttemptGrader grades whole quiz attempts. Questions are graded
// concurrently and independently; one bad question never sinks the
// attempt. Construct with NewAttemptGrader.
type AttemptGrader struct {
	cfg     Config
	ai      AIGrader
	metrics Recorder
	logger  *slog.Logger
}

// NewAttemptGrader builds a grader. ai may be nil, in which case
// descriptive questions are graded by similarity only. metrics may be
// nil to disable recording.
func NewAttemptGrader(cfg Config, ai AIGrader, metrics Recorder, logger *slog.Logger) *AttemptGrader {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AttemptGrader{
		cfg:     cfg.WithDefaults(),
		ai:      ai,
		metrics: metrics,
		logger:  logger,
	}
}

// Config returns the effective configuration after defaulting.
func (g *AttemptGrader) Config() Config { return g.cfg }

// Grade grades an attempt. answers[i] is the student's answer to
// questions[i]; the two slices must be the same length and the result's
// GradedAnswers preserves that order. The only error is a length
// mismatch; per-question failures surface as zero-mark answers flagged
// NeedsReview instead.
func (g *AttemptGrader) Grade(ctx context.Context, questions []Question, answers []string, opts Options) (*Result, error) {
	start := time.Now()

	if len(questions) != len(answers) {
		g.metrics.RecordAttempt(false, time.Since(start))
		return nil, &InputShapeError{Questions: len(questions), Answers: len(answers)}
	}

	if g.cfg.AttemptDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.AttemptDeadline)
		defer cancel()
	}

	graded := make([]GradedAnswer, len(questions))
	var failures atomic.Int64
	var wg sync.WaitGroup
	for i := range questions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			graded[i] = g.gradeQuestion(ctx, questions[i], answers[i], opts, &failures)
		}(i)
	}
	wg.Wait()

	var total, max float64
	for _, ga := range graded {
		total += ga.Marks
		max += ga.MaxMarks
	}
	total = round2(total)
	max = round2(max)

	var percentage float64
	if max > 0 {
		percentage = round2(total / max * 100)
	}

	elapsed := time.Since(start)
	g.metrics.RecordAttempt(failures.Load() == 0, elapsed)

	g.logger.Info("attempt graded",
		"questions", len(questions),
		"total_marks", total,
		"max_marks", max,
		"percentage", percentage,
		"failures", failures.Load(),
		"duration_ms", elapsed.Milliseconds())

	return &Result{
		GradedAnswers:  graded,
		TotalMarks:     total,
		MaxMarks:       max,
		Percentage:     percentage,
		ProcessingTime: elapsed,
		GradedAt:       time.Now().UTC(),
	}, nil
}

// gradeQuestion dispatches one question to its grader. A panic inside a
// grader is converted into the manual-review substitute so the rest of
// the batch settles normally.
func (g *AttemptGrader) gradeQuestion(ctx context.Context, q Question, answer string, opts Options, failures *atomic.Int64) (ga GradedAnswer) {
	defer func() {
		if r := recover(); r != nil {
			failures.Add(1)
			g.logger.Error("question grading panicked",
				"question_id", q.ID, "panic", r)
			ga = manualReviewAnswer(q, answer)
		}
	}()

	switch {
	case q.Kind.IsChoice():
		return gradeChoice(q, answer)
	case q.Kind == KindShortAnswer || q.Kind == KindDescriptive:
		return g.gradeDescriptive(ctx, q, answer, opts)
	default:
		// Unknown kinds grade as MCQ, mirroring ParseKind.
		return gradeChoice(q, answer)
	}
}

// manualReviewAnswer is the zero-mark substitute for a question whose
// grading failed outright.
func manualReviewAnswer(q Question, studentAnswer string) GradedAnswer {
	return GradedAnswer{
		QuestionID:    q.ID,
		QuestionText:  q.Text,
		Kind:          q.Kind,
		CorrectAnswer: q.Answer,
		StudentAnswer: studentAnswer,
		Marks:         0,
		MaxMarks:      q.MaxMarks(),
		IsCorrect:     false,
		Explanation:   "Automatic grading failed. Manual review required.",
		NeedsReview:   true,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
