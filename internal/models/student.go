package models

import (
	"time"

	"gorm.io/gorm"
)

// Student is a roster entry owned by the teacher who created it. Students do
// not log in; they are addressed through attempt links sent to their email.
type Student struct {
	ID       uint    `json:"id" gorm:"primaryKey"`
	FullName string  `json:"full_name" gorm:"not null;size:200" validate:"required,min=1,max=200"`
	Email    string  `json:"email" gorm:"not null;size:255;uniqueIndex:idx_student_owner_email" validate:"required,email"`
	Group    *string `json:"group,omitempty" gorm:"size:100" validate:"omitempty,max=100"`

	CreatedBy string `json:"created_by" gorm:"not null;size:255;index;uniqueIndex:idx_student_owner_email"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Computed
	AttemptCount int `json:"attempt_count,omitempty" gorm:"-"`
}

func (Student) TableName() string {
	return "students"
}
