package grading

import (
	"fmt"
	"strings"
)

// NormalizeChoice canonicalizes a choice answer so that "a)", " A ",
// "Option A" and "A" all compare equal. The input is trimmed and
// uppercased, a leading "Option" label is dropped, then the first of
// these wins:
//
//   - a leading standalone letter A through D (not part of a longer
//     word) becomes that letter;
//   - a leading run of digits becomes that run;
//   - otherwise the whole trimmed, uppercased string is kept.
//
// The function is idempotent: normalizing a normalized value is a no-op.
func NormalizeChoice(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if rest, ok := strings.CutPrefix(s, "OPTION "); ok {
		s = strings.TrimSpace(rest)
	}
	if s == "" {
		return ""
	}
	if first := s[0]; first >= 'A' && first <= 'D' {
		if len(s) == 1 || !isAlphaNum(s[1]) {
			return string(first)
		}
	}
	if isDigit(s[0]) {
		i := 1
		for i < len(s) && isDigit(s[i]) {
			i++
		}
		return s[:i]
	}
	return s
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlphaNum(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || isDigit(c)
}

// gradeChoice grades an MCQ answer by exact match of the normalized
// forms. Full marks or none, no partial credit.
func gradeChoice(q Question, studentAnswer string) GradedAnswer {
	correct := NormalizeChoice(studentAnswer) == NormalizeChoice(q.Answer)

	max := q.MaxMarks()
	var marks float64
	if correct {
		marks = max
	}

	explanation := q.Explanation
	if explanation == "" && !correct {
		explanation = fmt.Sprintf("Correct answer: %s", strings.TrimSpace(q.Answer))
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
