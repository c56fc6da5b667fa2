package models

import (
	"time"

	"gorm.io/gorm"
)

type QuizStatus string

const (
	QuizStatusDraft    QuizStatus = "Draft"
	QuizStatusActive   QuizStatus = "Active"
	QuizStatusExpired  QuizStatus = "Expired"
	QuizStatusArchived QuizStatus = "Archived"
)

func (s QuizStatus) IsValid() bool {
	switch s {
	case QuizStatusDraft, QuizStatusActive, QuizStatusExpired, QuizStatusArchived:
		return true
	}
	return false
}

// Quiz is the teacher-owned aggregate: metadata, questions and settings.
type Quiz struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	Title       string     `json:"title" gorm:"not null;size:200" validate:"required,min=1,max=200"`
	Description *string    `json:"description" gorm:"type:text" validate:"omitempty,max=1000"`
	Status      QuizStatus `json:"status" gorm:"not null;default:'Draft';index" validate:"required"`

	// Duration is the time limit in minutes.
	Duration     int `json:"duration" gorm:"not null" validate:"required,min=5,max=180"`
	PassingScore int `json:"passing_score" gorm:"not null;default:70" validate:"min=0,max=100"`

	// MaxWarnings is the anti-cheat threshold: when an attempt accumulates
	// this many proctoring warnings it is force-submitted.
	MaxWarnings int `json:"max_warnings" gorm:"not null;default:3" validate:"min=1,max=10"`

	DueDate   *time.Time `json:"due_date"`
	FolderID  *uint      `json:"folder_id" gorm:"index"`
	CreatedBy string     `json:"created_by" gorm:"not null;size:255;index"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
	Version   int            `json:"version" gorm:"default:1"`

	// Relations
	Settings  *QuizSettings `json:"settings,omitempty" gorm:"foreignKey:QuizID;constraint:OnDelete:CASCADE"`
	Questions []Question    `json:"questions,omitempty" gorm:"foreignKey:QuizID;constraint:OnDelete:CASCADE"`
	Attempts  []Attempt     `json:"attempts,omitempty" gorm:"foreignKey:QuizID"`
	Folder    *Folder       `json:"folder,omitempty" gorm:"foreignKey:FolderID"`

	// Computed fields, not persisted
	QuestionCount int     `json:"question_count,omitempty" gorm:"-"`
	AttemptCount  int     `json:"attempt_count,omitempty" gorm:"-"`
	MaxMarks      float64 `json:"max_marks,omitempty" gorm:"-"`
	IsBookmarked  bool    `json:"is_bookmarked,omitempty" gorm:"-"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

// QuizSettings controls presentation and the client-side proctoring hooks.
type QuizSettings struct {
	ID     uint `json:"id" gorm:"primaryKey"`
	QuizID uint `json:"quiz_id" gorm:"not null;uniqueIndex"`

	ShuffleQuestions bool `json:"shuffle_questions" gorm:"default:false"`
	ShuffleOptions   bool `json:"shuffle_options" gorm:"default:false"`

	ShowResults        bool `json:"show_results" gorm:"default:true"`
	ShowCorrectAnswers bool `json:"show_correct_answers" gorm:"default:false"`

	// Proctoring toggles reported by the quiz client; each detected
	// violation increments the attempt's warning counter.
	DetectTabSwitch  bool `json:"detect_tab_switch" gorm:"default:true"`
	DetectCopyPaste  bool `json:"detect_copy_paste" gorm:"default:true"`
	DetectRightClick bool `json:"detect_right_click" gorm:"default:false"`

	AutoSubmitOnTimeout bool `json:"auto_submit_on_timeout" gorm:"default:true"`
	EmailResults        bool `json:"email_results" gorm:"default:true"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (QuizSettings) TableName() string {
	return "quiz_settings"
}
