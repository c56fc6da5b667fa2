package grading

import (
	"context"
	"fmt"
	"strings"
)

// AIGrader grades a descriptive answer against its model answer through an
// external model. Implementations own their retry and timeout policy and
// return an *AIGradingError once they give up.
type AIGrader interface {
	GradeAnswer(ctx context.Context, question Question, studentAnswer string) (*AIResult, error)
}

// AIResult is a validated verdict from the external grader. Marks are
// within [0, question max] by the time a result reaches the pipeline.
type AIResult struct {
	IsCorrect        bool
	Marks            float64
	Confidence       float64
	Feedback         string
	KeyPointsFound   []string
	KeyPointsMissing []string
}

// gradeDescriptive grades a free-text answer. Blank answers short-circuit
// to zero without touching the external grader. Otherwise the external
// grader is consulted when configured and enabled, and any failure there
// degrades to similarity matching rather than failing the question.
func (g *AttemptGrader) gradeDescriptive(ctx context.Context, q Question, studentAnswer string, opts Options) GradedAnswer {
	if strings.TrimSpace(studentAnswer) == "" {
		return GradedAnswer{
			QuestionID:    q.ID,
			QuestionText:  q.Text,
			Kind:          q.Kind,
			CorrectAnswer: q.Answer,
			StudentAnswer: studentAnswer,
			Marks:         0,
			MaxMarks:      q.MaxMarks(),
			IsCorrect:     false,
			Explanation:   "No answer provided.",
		}
	}

	if g.ai != nil && !opts.DisableAI {
		res, err := g.ai.GradeAnswer(ctx, q, studentAnswer)
		if err == nil {
			return g.fromAIResult(q, studentAnswer, res)
		}
		g.metrics.RecordFallback()
		g.logger.Warn("ai grading failed, using similarity fallback",
			"question_id", q.ID, "error", err)
	}

	return g.gradeBySimilarity(q, studentAnswer)
}

// fromAIResult converts a model verdict into a graded answer. Marks are
// clamped into [0, max] here as well; a verdict that passed validation
// can still be out of range after config changes, and clamping is cheaper
// than another round trip.
func (g *AttemptGrader) fromAIResult(q Question, studentAnswer string, res *AIResult) GradedAnswer {
	max := q.MaxMarks()
	marks := res.Marks
	if marks < 0 {
		marks = 0
	}
	if marks > max {
		marks = max
	}
	return GradedAnswer{
		QuestionID:       q.ID,
		QuestionText:     q.Text,
		Kind:             q.Kind,
		CorrectAnswer:    q.Answer,
		StudentAnswer:    studentAnswer,
		Marks:            marks,
		MaxMarks:         max,
		IsCorrect:        res.IsCorrect,
		Explanation:      res.Feedback,
		AIGraded:         true,
		Confidence:       res.Confidence,
		KeyPointsFound:   res.KeyPointsFound,
		KeyPointsMissing: res.KeyPointsMissing,
	}
}

// gradeBySimilarity applies the word-overlap fallback: full marks at or
// above the similarity threshold, half marks at or above the partial
// credit threshold, zero below. Only the full-marks band counts as
// correct.
func (g *AttemptGrader) gradeBySimilarity(q Question, studentAnswer string) GradedAnswer {
	sim := Similarity(q.Answer, studentAnswer)
	max := q.MaxMarks()

	var marks float64
	var correct bool
	var explanation string
	switch {
	case sim >= g.cfg.FallbackSimilarityThreshold:
		marks = max
		correct = true
		explanation = fmt.Sprintf("Answer matches the expected response (similarity %.2f).", sim)
	case sim >= g.cfg.PartialCreditThreshold:
		marks = max * 0.5
		explanation = fmt.Sprintf("Answer partially matches the expected response (similarity %.2f).", sim)
	default:
		explanation = fmt.Sprintf("Answer does not match the expected response (similarity %.2f).", sim)
	}

	return GradedAnswer{
		QuestionID:    q.ID,
		QuestionText:  q.Text,
		Kind:          q.Kind,
		CorrectAnswer: q.Answer,
		StudentAnswer: studentAnswer,
		Marks:         marks,
		MaxMarks:      max,
		IsCorrect:     correct,
		Explanation:   explanation,
	}
}
