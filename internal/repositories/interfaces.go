package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/quizforge/quiz-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type QuizFilters struct {
	Status    *models.QuizStatus `json:"status"`
	CreatedBy *string            `json:"created_by"`
	FolderID  *uint              `json:"folder_id"`
	Search    string             `json:"search"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
	SortBy    string             `json:"sort_by"`    // "created_at", "title", "due_date"
	SortOrder string             `json:"sort_order"` // "asc", "desc"
}

type AttemptFilters struct {
	QuizID      *uint                 `json:"quiz_id"`
	StudentID   *uint                 `json:"student_id"`
	CreatedBy   *string               `json:"created_by"` // restricts to attempts on this teacher's quizzes
	Status      *models.AttemptStatus `json:"status"`
	NeedsReview *bool                 `json:"needs_review"`
	DateFrom    *time.Time            `json:"date_from"`
	DateTo      *time.Time            `json:"date_to"`
	Limit       int                   `json:"limit"`
	Offset      int                   `json:"offset"`
	SortBy      string                `json:"sort_by"`
	SortOrder   string                `json:"sort_order"`
}

type StudentFilters struct {
	CreatedBy *string `json:"created_by"`
	Group     *string `json:"group"`
	Search    string  `json:"search"`
	Limit     int     `json:"limit"`
	Offset    int     `json:"offset"`
}

type EmailFilters struct {
	Status *models.EmailStatus `json:"status"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

// ===== SHARED STATISTICS STRUCTS =====

type AttemptStats struct {
	TotalAttempts    int                          `json:"total_attempts"`
	StatusBreakdown  map[models.AttemptStatus]int `json:"status_breakdown"`
	AverageScore     float64                      `json:"average_score"`
	AverageTimeSpent int                          `json:"average_time_spent"`
	PassRate         float64                      `json:"pass_rate"`
	CompletionRate   float64                      `json:"completion_rate"`
}

type GradingStats struct {
	TotalAnswers  int     `json:"total_answers"`
	GradedAnswers int     `json:"graded_answers"`
	PendingReview int     `json:"pending_review"`
	AutoGraded    int     `json:"auto_graded"`
	ManualGraded  int     `json:"manual_graded"`
	AverageMarks  float64 `json:"average_marks"`
}

// ===== REPOSITORY INTERFACES =====

// QuizRepository covers the quiz aggregate: the quiz row, its settings
// and the computed fields list/detail views carry.
type QuizRepository interface {
	Create(ctx context.Context, tx *gorm.DB, quiz *models.Quiz) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Quiz, error)
	GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.Quiz, error) // settings + ordered questions
	Update(ctx context.Context, tx *gorm.DB, quiz *models.Quiz) error
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.QuizStatus) error
	UpdateSettings(ctx context.Context, tx *gorm.DB, settings *models.QuizSettings) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	List(ctx context.Context, tx *gorm.DB, filters QuizFilters) ([]*models.Quiz, int64, error)
	CountByStatus(ctx context.Context, tx *gorm.DB, creatorID string) (map[models.QuizStatus]int64, error)

	HasAttempts(ctx context.Context, tx *gorm.DB, id uint) (bool, error)
	ExistsByTitle(ctx context.Context, tx *gorm.DB, title, creatorID string, excludeID *uint) (bool, error)
	ExpireOverdue(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error)
}

// QuestionRepository manages a quiz's questions, kept in explicit
// position order.
type QuestionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, question *models.Question) error
	CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.Question) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error)
	GetByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) ([]*models.Question, error)
	Update(ctx context.Context, tx *gorm.DB, question *models.Question) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	Reorder(ctx context.Context, tx *gorm.DB, quizID uint, questionIDs []uint) error
	CountByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) (int64, error)
	SumMarks(ctx context.Context, tx *gorm.DB, quizID uint) (float64, error)
	MaxPosition(ctx context.Context, tx *gorm.DB, quizID uint) (int, error)
}

// AttemptLinkRepository manages the per-student tokens that grant quiz
// access.
type AttemptLinkRepository interface {
	CreateBatch(ctx context.Context, tx *gorm.DB, links []*models.AttemptLink) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.AttemptLink, error)
	GetByToken(ctx context.Context, tx *gorm.DB, token string) (*models.AttemptLink, error)
	MarkUsed(ctx context.Context, tx *gorm.DB, id uint, usedAt time.Time) error
	ListByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) ([]*models.AttemptLink, error)
	Revoke(ctx context.Context, tx *gorm.DB, id uint) error
}

// AttemptRepository manages attempt lifecycle rows and their proctoring
// warnings.
type AttemptRepository interface {
	Create(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error)
	GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) // quiz + student + answers
	GetOpenByLinkToken(ctx context.Context, tx *gorm.DB, token string) (*models.Attempt, error)
	GetLatestByLinkToken(ctx context.Context, tx *gorm.DB, token string) (*models.Attempt, error)
	Update(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error
	List(ctx context.Context, tx *gorm.DB, filters AttemptFilters) ([]*models.Attempt, int64, error)

	AddWarning(ctx context.Context, tx *gorm.DB, warning *models.Warning) (int, error) // returns new warning count
	ListExpired(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]*models.Attempt, error)
	GetStats(ctx context.Context, tx *gorm.DB, quizID uint) (*AttemptStats, error)
}

// AnswerRepository persists student answers and their grading outcome.
type AnswerRepository interface {
	Upsert(ctx context.Context, tx *gorm.DB, answer *models.Answer) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Answer, error)
	GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.Answer, error)
	UpdateGrading(ctx context.Context, tx *gorm.DB, answer *models.Answer) error
	BulkUpdateGrading(ctx context.Context, tx *gorm.DB, answers []*models.Answer) error
	GetGradingStats(ctx context.Context, tx *gorm.DB, quizID uint) (*GradingStats, error)
}

// StudentRepository manages the teacher-owned roster.
type StudentRepository interface {
	Create(ctx context.Context, tx *gorm.DB, student *models.Student) error
	CreateBatch(ctx context.Context, tx *gorm.DB, students []*models.Student) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Student, error)
	GetByEmail(ctx context.Context, tx *gorm.DB, creatorID, email string) (*models.Student, error)
	Update(ctx context.Context, tx *gorm.DB, student *models.Student) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	List(ctx context.Context, tx *gorm.DB, filters StudentFilters) ([]*models.Student, int64, error)
	ListGroups(ctx context.Context, tx *gorm.DB, creatorID string) ([]string, error)
}

// FolderRepository manages quiz folders.
type FolderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, folder *models.Folder) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Folder, error)
	Update(ctx context.Context, tx *gorm.DB, folder *models.Folder) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	ListByCreator(ctx context.Context, tx *gorm.DB, creatorID string) ([]*models.Folder, error)
}

// BookmarkRepository manages per-user quiz bookmarks.
type BookmarkRepository interface {
	Add(ctx context.Context, tx *gorm.DB, userID string, quizID uint) error
	Remove(ctx context.Context, tx *gorm.DB, userID string, quizID uint) error
	IsBookmarked(ctx context.Context, tx *gorm.DB, userID string, quizID uint) (bool, error)
	ListQuizIDs(ctx context.Context, tx *gorm.DB, userID string) ([]uint, error)
}

// EmailRepository persists queued outbound emails and their delivery log.
type EmailRepository interface {
	Create(ctx context.Context, tx *gorm.DB, message *models.EmailMessage) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.EmailMessage, error)
	Update(ctx context.Context, tx *gorm.DB, message *models.EmailMessage) error
	List(ctx context.Context, tx *gorm.DB, filters EmailFilters) ([]*models.EmailMessage, int64, error)
	ListQueued(ctx context.Context, tx *gorm.DB, limit int) ([]*models.EmailMessage, error)
}

// UserRepository is the read-side view of teacher accounts held in
// Casdoor.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Exists(ctx context.Context, id string) (bool, error)
}

// DashboardRepository aggregates the teacher-facing overview numbers.
type DashboardRepository interface {
	GetSummary(ctx context.Context, tx *gorm.DB, creatorID string) (*models.DashboardSummary, error)
	GetQuizStats(ctx context.Context, tx *gorm.DB, quizID uint) (*models.QuizStats, error)
	GetRecentAttempts(ctx context.Context, tx *gorm.DB, creatorID string, limit int) ([]models.AttemptSummary, error)
}
