package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/quizforge/quiz-service/internal/grading"
)

// gradeResponse is the strict JSON schema the model is asked to produce.
// Required fields are pointers so a missing key is distinguishable from a
// zero value.
type gradeResponse struct {
	IsCorrect        *bool    `json:"isCorrect"`
	Marks            *float64 `json:"marks"`
	Confidence       float64  `json:"confidence"`
	Feedback         *string  `json:"feedback"`
	KeyPointsFound   []string `json:"keyPointsFound"`
	KeyPointsMissing []string `json:"keyPointsMissing"`
}

// parseGradeResponse validates one model response. Schema violations are
// errors so the caller retries them; marks above the question max are the
// one exception, clamped instead of retried.
func parseGradeResponse(raw string, maxMarks float64) (*grading.AIResult, error) {
	cleaned := stripCodeFences(raw)

	var resp gradeResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		return nil, fmt.Errorf("parse grading response: %w (raw: %s)", err, truncate(raw, 200))
	}
	if resp.IsCorrect == nil {
		return nil, fmt.Errorf("grading response missing isCorrect (raw: %s)", truncate(raw, 200))
	}
	if resp.Marks == nil {
		return nil, fmt.Errorf("grading response missing marks (raw: %s)", truncate(raw, 200))
	}
	if *resp.Marks < 0 {
		return nil, fmt.Errorf("grading response marks %v out of range", *resp.Marks)
	}
	if resp.Feedback == nil {
		return nil, fmt.Errorf("grading response missing feedback (raw: %s)", truncate(raw, 200))
	}

	marks := *resp.Marks
	if marks > maxMarks {
		marks = maxMarks
	}
	confidence := resp.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return &grading.AIResult{
		IsCorrect:        *resp.IsCorrect,
		Marks:            marks,
		Confidence:       confidence,
		Feedback:         *resp.Feedback,
		KeyPointsFound:   resp.KeyPointsFound,
		KeyPointsMissing: resp.KeyPointsMissing,
	}, nil
}

// stripCodeFences removes a ```json ... ``` (or bare ```) wrapper that
// models sometimes add despite being told not to.
func stripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
