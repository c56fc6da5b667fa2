package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// QuestionKind is the wire value of a question's type. The grading pipeline
// parses it into its own closed enumeration; unrecognized values are graded
// as MCQ there.
type QuestionKind string

const (
	KindMCQ            QuestionKind = "mcq"
	KindMultipleChoice QuestionKind = "multiple-choice"
	KindShortAnswer    QuestionKind = "short-answer"
	KindDescriptive    QuestionKind = "descriptive"
)

func (k QuestionKind) IsValid() bool {
	switch k {
	case KindMCQ, KindMultipleChoice, KindShortAnswer, KindDescriptive:
		return true
	}
	return false
}

// IsChoice reports whether the kind is graded by exact choice matching.
func (k QuestionKind) IsChoice() bool {
	return k == KindMCQ || k == KindMultipleChoice
}

// Question belongs to a quiz. Options is a JSON array of choice strings and
// is meaningful only for choice kinds; Answer holds the expected key (a
// letter/number token for choice kinds, free text otherwise).
type Question struct {
	ID     uint         `json:"id" gorm:"primaryKey"`
	QuizID uint         `json:"quiz_id" gorm:"not null;index"`
	Kind   QuestionKind `json:"kind" gorm:"not null;size:20" validate:"required"`
	Text   string       `json:"text" gorm:"type:text;not null" validate:"required,min=1,max=2000"`

	Options datatypes.JSON `json:"options,omitempty" gorm:"type:jsonb"`
	Answer  string         `json:"answer" gorm:"type:text;not null" validate:"required"`

	Marks       float64 `json:"marks" gorm:"not null;default:1" validate:"min=0"`
	Explanation *string `json:"explanation,omitempty" gorm:"type:text" validate:"omitempty,max=1000"`
	Position    int     `json:"position" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Question) TableName() string {
	return "questions"
}

// OptionList decodes the JSON options column. A missing or malformed column
// yields an empty list.
func (q *Question) OptionList() []string {
	if len(q.Options) == 0 {
		return nil
	}
	var opts []string
	if err := json.Unmarshal(q.Options, &opts); err != nil {
		return nil
	}
	return opts
}

// EffectiveMarks returns the question's maximum score, defaulting to 1 when
// the stored value is not positive.
func (q *Question) EffectiveMarks() float64 {
	if q.Marks <= 0 {
		return 1
	}
	return q.Marks
}
