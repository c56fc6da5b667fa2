package models

import (
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
	AttemptAbandoned  AttemptStatus = "abandoned"
	AttemptTimeOut    AttemptStatus = "timeout"
)

const (
	AttemptEndReasonSubmitted   = "submitted"
	AttemptEndReasonTimeout     = "time_out"
	AttemptEndReasonMaxWarnings = "max_warnings"
)

// AttemptLink is a single-student credential for one quiz. The UUID token is
// the only thing a student needs to open the quiz; there is no student login.
type AttemptLink struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	Token     string `json:"token" gorm:"not null;uniqueIndex;size:36"`
	QuizID    uint   `json:"quiz_id" gorm:"not null;index"`
	StudentID uint   `json:"student_id" gorm:"not null;index"`
	CreatedBy string `json:"created_by" gorm:"not null;size:255"`

	ExpiresAt *time.Time `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at"`
	CreatedAt time.Time  `json:"created_at"`

	// Relations
	Quiz    *Quiz    `json:"quiz,omitempty" gorm:"foreignKey:QuizID"`
	Student *Student `json:"student,omitempty" gorm:"foreignKey:StudentID"`
}

func (AttemptLink) TableName() string {
	return "attempt_links"
}

// IsExpired reports whether the link can no longer start an attempt.
func (l *AttemptLink) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}

// Attempt is one student's submission for a quiz, from link resolution
// through grading.
type Attempt struct {
	ID        uint          `json:"id" gorm:"primaryKey"`
	QuizID    uint          `json:"quiz_id" gorm:"not null;index"`
	StudentID uint          `json:"student_id" gorm:"not null;index"`
	LinkToken string        `json:"link_token" gorm:"not null;index;size:36"`
	Status    AttemptStatus `json:"status" gorm:"default:in_progress;index"`

	// Timing
	StartedAt   *time.Time `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at"` // deadline derived from quiz duration
	CompletedAt *time.Time `json:"completed_at"`
	TimeSpent   int        `json:"time_spent"` // seconds

	// Anti-cheat
	WarningCount  int    `json:"warning_count" gorm:"default:0"`
	AutoSubmitted bool   `json:"auto_submitted" gorm:"default:false"`
	EndReason     string `json:"end_reason,omitempty" gorm:"size:50"`

	// Grading rollup, written once when the attempt is graded
	TotalMarks     float64    `json:"total_marks"`
	MaxMarks       float64    `json:"max_marks"`
	Percentage     float64    `json:"percentage"`
	Passed         bool       `json:"passed"`
	IsGraded       bool       `json:"is_graded" gorm:"default:false"`
	GradedAt       *time.Time `json:"graded_at"`
	ProcessingTime int64      `json:"processing_time"` // milliseconds

	// Client metadata
	IPAddress string `json:"ip_address,omitempty" gorm:"size:45"`
	UserAgent string `json:"user_agent,omitempty" gorm:"size:500"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Quiz     *Quiz     `json:"quiz,omitempty" gorm:"foreignKey:QuizID"`
	Student  *Student  `json:"student,omitempty" gorm:"foreignKey:StudentID"`
	Answers  []Answer  `json:"answers,omitempty" gorm:"foreignKey:AttemptID;constraint:OnDelete:CASCADE"`
	Warnings []Warning `json:"warnings,omitempty" gorm:"foreignKey:AttemptID;constraint:OnDelete:CASCADE"`
}

func (Attempt) TableName() string {
	return "attempts"
}

// Warning is one proctoring violation reported by the quiz client. The
// attempt keeps a denormalized counter; the rows are the audit trail.
type Warning struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	AttemptID uint   `json:"attempt_id" gorm:"not null;index"`
	Kind      string `json:"kind" gorm:"not null;size:50"` // tab_switch, copy_paste, ...
	Detail    string `json:"detail,omitempty" gorm:"size:500"`

	CreatedAt time.Time `json:"created_at"`
}

func (Warning) TableName() string {
	return "warnings"
}

// IsOpen reports whether the attempt can still accept answers or warnings.
func (a *Attempt) IsOpen() bool {
	return a.Status == AttemptInProgress
}

// DeadlinePassed reports whether the attempt's time limit has elapsed.
func (a *Attempt) DeadlinePassed(now time.Time) bool {
	return a.EndedAt != nil && now.After(*a.EndedAt)
}

// Answer is one question's answer within an attempt, including the grading
// outcome once the attempt is graded.
type Answer struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	AttemptID  uint `json:"attempt_id" gorm:"not null;index;uniqueIndex:idx_attempt_question"`
	QuestionID uint `json:"question_id" gorm:"not null;index;uniqueIndex:idx_attempt_question"`

	// Value is the student's raw free-text answer; may be empty.
	Value string `json:"value" gorm:"type:text"`

	// Grading outcome
	Marks       float64 `json:"marks"`
	MaxMarks    float64 `json:"max_marks"`
	IsCorrect   *bool   `json:"is_correct"`
	Explanation *string `json:"explanation,omitempty" gorm:"type:text"`

	// AI-graded extras
	Confidence      *float64       `json:"confidence,omitempty"`
	KeyPointsFound  datatypes.JSON `json:"key_points_found,omitempty" gorm:"type:jsonb"`
	KeyPointsMissed datatypes.JSON `json:"key_points_missed,omitempty" gorm:"type:jsonb"`

	// NeedsReview marks the zero-mark placeholder substituted when grading
	// a question failed; a teacher resolves it manually.
	NeedsReview bool       `json:"needs_review" gorm:"default:false;index"`
	IsGraded    bool       `json:"is_graded" gorm:"default:false"`
	GradedBy    string     `json:"graded_by,omitempty" gorm:"size:255"` // "auto" or a user ID
	GradedAt    *time.Time `json:"graded_at"`

	TimeSpent int `json:"time_spent"` // seconds

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Question *Question `json:"question,omitempty" gorm:"foreignKey:QuestionID"`
}

func (Answer) TableName() string {
	return "answers"
}
