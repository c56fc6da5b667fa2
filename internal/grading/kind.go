package grading

import "strings"

// Kind is the closed set of question kinds the pipeline dispatches on.
type Kind int

const (
	// KindMCQ and KindMultipleChoice are graded by exact choice matching.
	KindMCQ Kind = iota
	KindMultipleChoice
	// KindShortAnswer and KindDescriptive are graded by the external model
	// with a similarity fallback.
	KindShortAnswer
	KindDescriptive
)

// ParseKind maps a wire value onto the closed enumeration. Unrecognized
// values grade as MCQ; that default is intentional and load-bearing, so keep
// it in sync with the dispatch in gradeQuestion.
func ParseKind(s string) Kind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mcq":
		return KindMCQ
	case "multiple-choice":
		return KindMultipleChoice
	case "short-answer":
		return KindShortAnswer
	case "descriptive":
		return KindDescriptive
	default:
		return KindMCQ
	}
}

func (k Kind) String() string {
	switch k {
	case KindMultipleChoice:
		return "multiple-choice"
	case KindShortAnswer:
		return "short-answer"
	case KindDescriptive:
		return "descriptive"
	default:
		return "mcq"
	}
}

// IsChoice reports whether the kind is graded by exact choice matching.
func (k Kind) IsChoice() bool {
	return k == KindMCQ || k == KindMultipleChoice
}
