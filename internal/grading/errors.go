package grading

import "fmt"

// InputShapeError reports a questions/answers length mismatch. It is the
// only error Grade returns; everything downstream is absorbed into
// per-question results.
type InputShapeError struct {
	Questions int
	Answers   int
}

func (e *InputShapeError) Error() string {
	return fmt.Sprintf("grading: %d questions but %d answers", e.Questions, e.Answers)
}

// AIGradingError reports that the external grader gave up after exhausting
// its retries. Callers treat it as a signal to fall back, not as fatal.
type AIGradingError struct {
	Attempts int
	Err      error
}

func (e *AIGradingError) Error() string {
	return fmt.Sprintf("grading: external grading failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *AIGradingError) Unwrap() error { return e.Err }
