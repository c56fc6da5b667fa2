package models

import (
	"time"
)

// Folder groups a teacher's quizzes. Folders are flat (no nesting) and
// private to their creator.
type Folder struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	Name        string  `json:"name" gorm:"not null;size:200" validate:"required,min=1,max=200"`
	Description *string `json:"description,omitempty" gorm:"type:text" validate:"omitempty,max=1000"`
	Color       string  `json:"color,omitempty" gorm:"size:7" validate:"omitempty,hexcolor"`

	CreatedBy string    `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Quizzes []Quiz `json:"quizzes,omitempty" gorm:"foreignKey:FolderID"`

	// Computed
	QuizCount int `json:"quiz_count" gorm:"-"`
}

func (Folder) TableName() string {
	return "folders"
}

// Bookmark pins a quiz for quick access. One row per user/quiz pair.
type Bookmark struct {
	ID     uint   `json:"id" gorm:"primaryKey"`
	UserID string `json:"user_id" gorm:"not null;size:255;uniqueIndex:idx_bookmark_user_quiz"`
	QuizID uint   `json:"quiz_id" gorm:"not null;uniqueIndex:idx_bookmark_user_quiz"`

	CreatedAt time.Time `json:"created_at"`

	// Relations
	Quiz *Quiz `json:"quiz,omitempty" gorm:"foreignKey:QuizID"`
}

func (Bookmark) TableName() string {
	return "bookmarks"
}
