package grading

import "time"

// Question is the grading view of a quiz question. It is deliberately
// decoupled from the persistence model so the pipeline can be exercised
// without a database.
type Question struct {
	ID          string
	Text        string
	Kind        Kind
	Options     []string
	Answer      string
	Marks       float64
	Explanation string
}

// MaxMarks returns the marks available for the question. Non-positive
// configured marks count as 1 so a misconfigured question can never
// zero out or invert an attempt total.
func (q Question) MaxMarks() float64 {
	if q.Marks <= 0 {
		return 1
	}
	return q.Marks
}

// GradedAnswer is the outcome of grading a single question.
type GradedAnswer struct {
	QuestionID    string
	QuestionText  string
	Kind          Kind
	CorrectAnswer string
	StudentAnswer string
	Marks         float64
	MaxMarks      float64
	IsCorrect     bool
	Explanation   string

	// AI-graded answers carry the model's confidence and key-point
	// breakdown; AIGraded distinguishes a real 0 confidence from an
	// answer the model never saw.
	AIGraded         bool
	Confidence       float64
	KeyPointsFound   []string
	KeyPointsMissing []string

	// NeedsReview marks the zero-mark substitute emitted when grading a
	// question failed outright.
	NeedsReview bool
}

// Result is the aggregate outcome of grading one attempt.
type Result struct {
	GradedAnswers  []GradedAnswer
	TotalMarks     float64
	MaxMarks       float64
	Percentage     float64
	ProcessingTime time.Duration
	GradedAt       time.Time
}
