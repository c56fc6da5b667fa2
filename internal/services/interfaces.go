package services

import (
	"context"
	"time"

	"github.com/quizforge/quiz-service/internal/grading"
	"github.com/quizforge/quiz-service/internal/models"
	"github.com/quizforge/quiz-service/internal/repositories"
)

// ===== RESPONSE DTOs =====

type QuizResponse struct {
	*models.Quiz
	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
}

// QuestionForTake is the student-facing view of a question: the answer
// key and explanation never leave the server before grading.
type QuestionForTake struct {
	ID       uint                `json:"id"`
	Kind     models.QuestionKind `json:"kind"`
	Text     string              `json:"text"`
	Options  []string            `json:"options,omitempty"`
	Marks    float64             `json:"marks"`
	Position int                 `json:"position"`
}

// TakeQuizResponse is what a student sees after resolving their link.
type TakeQuizResponse struct {
	AttemptID    uint                 `json:"attempt_id"`
	QuizTitle    string               `json:"quiz_title"`
	Description  *string              `json:"description,omitempty"`
	Duration     int                  `json:"duration"`
	StartedAt    *time.Time           `json:"started_at"`
	EndsAt       *time.Time           `json:"ends_at"`
	Questions    []QuestionForTake    `json:"questions"`
	Settings     *models.QuizSettings `json:"settings,omitempty"`
	WarningCount int                  `json:"warning_count"`
	MaxWarnings  int                  `json:"max_warnings"`
	SavedAnswers map[uint]string      `json:"saved_answers,omitempty"`
	Resumed      bool                 `json:"resumed"`
}

// WarningResponse tells the quiz client where the attempt stands after a
// proctoring violation was recorded.
type WarningResponse struct {
	WarningCount   int  `json:"warning_count"`
	MaxWarnings    int  `json:"max_warnings"`
	Remaining      int  `json:"remaining"`
	ForceSubmitted bool `json:"force_submitted"`
}

// AttemptResultResponse is the graded outcome shown to the student when
// the quiz settings allow it, and to teachers reviewing an attempt.
type AttemptResultResponse struct {
	AttemptID      uint            `json:"attempt_id"`
	QuizTitle      string          `json:"quiz_title"`
	Status         string          `json:"status"`
	TotalMarks     float64         `json:"total_marks"`
	MaxMarks       float64         `json:"max_marks"`
	Percentage     float64         `json:"percentage"`
	Passed         bool            `json:"passed"`
	AutoSubmitted  bool            `json:"auto_submitted"`
	EndReason      string          `json:"end_reason,omitempty"`
	CompletedAt    *time.Time      `json:"completed_at"`
	ProcessingTime int64           `json:"processing_time_ms"`
	Answers        []models.Answer `json:"answers,omitempty"`
}

// ImportResult summarizes a bulk roster import.
type ImportResult struct {
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// ExportFile is a generated spreadsheet ready to stream as an attachment.
type ExportFile struct {
	FileName    string
	ContentType string
	Content     []byte
}

// ===== SERVICE INTERFACES =====

type QuizService interface {
	Create(ctx context.Context, req *models.QuizCreateRequest, creatorID string) (*QuizResponse, error)
	GetByID(ctx context.Context, id uint, userID string) (*QuizResponse, error)
	GetByIDWithDetails(ctx context.Context, id uint, userID string) (*QuizResponse, error)
	Update(ctx context.Context, id uint, req *models.QuizUpdateRequest, userID string) (*QuizResponse, error)
	Delete(ctx context.Context, id uint, userID string) error

	List(ctx context.Context, params models.ListQuizzesParams, userID string) (*models.PaginatedResponse, error)

	UpdateStatus(ctx context.Context, id uint, req *models.ChangeQuizStatusRequest, userID string) error
	UpdateSettings(ctx context.Context, id uint, req *models.QuizSettingsRequest, userID string) error
	Duplicate(ctx context.Context, id uint, userID string) (*QuizResponse, error)

	ToggleBookmark(ctx context.Context, id uint, userID string) (bool, error)
	ListBookmarked(ctx context.Context, userID string) ([]*models.Quiz, error)
}

type QuestionService interface {
	Add(ctx context.Context, quizID uint, req *models.QuestionRequest, userID string) (*models.Question, error)
	AddBatch(ctx context.Context, quizID uint, reqs []models.QuestionRequest, userID string) ([]*models.Question, error)
	ListByQuiz(ctx context.Context, quizID uint, userID string) ([]*models.Question, error)
	Update(ctx context.Context, quizID, questionID uint, req *models.QuestionUpdateRequest, userID string) (*models.Question, error)
	Remove(ctx context.Context, quizID, questionID uint, userID string) error
	Reorder(ctx context.Context, quizID uint, req *models.ReorderQuestionsRequest, userID string) error
}

type FolderService interface {
	Create(ctx context.Context, req *models.FolderCreateRequest, creatorID string) (*models.Folder, error)
	GetByID(ctx context.Context, id uint, userID string) (*models.Folder, error)
	Update(ctx context.Context, id uint, req *models.FolderUpdateRequest, userID string) (*models.Folder, error)
	Delete(ctx context.Context, id uint, userID string) error
	List(ctx context.Context, userID string) ([]*models.Folder, error)
	ListQuizzes(ctx context.Context, folderID uint, userID string) ([]*models.Quiz, error)
	MoveQuiz(ctx context.Context, quizID uint, req *models.MoveQuizRequest, userID string) error
}

type StudentService interface {
	Create(ctx context.Context, req *models.StudentCreateRequest, creatorID string) (*models.Student, error)
	GetByID(ctx context.Context, id uint, userID string) (*models.Student, error)
	Update(ctx context.Context, id uint, req *models.StudentUpdateRequest, userID string) (*models.Student, error)
	Delete(ctx context.Context, id uint, userID string) error
	List(ctx context.Context, params models.ListStudentsParams, userID string) (*models.PaginatedResponse, error)
	Import(ctx context.Context, req *models.StudentImportRequest, userID string) (*ImportResult, error)
	ListGroups(ctx context.Context, userID string) ([]string, error)
}

type AttemptService interface {
	// Teacher side: link management.
	IssueLinks(ctx context.Context, quizID uint, req *models.IssueLinkRequest, userID string) ([]*models.AttemptLink, error)
	ListLinks(ctx context.Context, quizID uint, userID string) ([]*models.AttemptLink, error)
	RevokeLink(ctx context.Context, linkID uint, userID string) error

	// Student side: the public take flow, keyed only by the link token.
	Resolve(ctx context.Context, token, clientIP, userAgent string) (*TakeQuizResponse, error)
	SaveAnswer(ctx context.Context, token string, req *models.SaveAnswerRequest) error
	RecordWarning(ctx context.Context, token string, req *models.ReportWarningRequest) (*WarningResponse, error)
	Submit(ctx context.Context, token string, req *models.SubmitAttemptRequest) (*AttemptResultResponse, error)
	GetResult(ctx context.Context, token string) (*AttemptResultResponse, error)

	// Teacher side: review.
	GetByID(ctx context.Context, id uint, userID string) (*models.Attempt, error)
	GetResultByID(ctx context.Context, id uint, userID string) (*AttemptResultResponse, error)
	List(ctx context.Context, params models.ListAttemptsParams, userID string) (*models.PaginatedResponse, error)
	GetStats(ctx context.Context, quizID uint, userID string) (*repositories.AttemptStats, error)

	// HandleTimeouts force-submits attempts whose deadline passed. It is
	// called periodically by main and returns how many were closed.
	HandleTimeouts(ctx context.Context, limit int) (int, error)
}

type GradingService interface {
	// GradeAttempt runs the pipeline over an attempt's saved answers and
	// persists the graded rows plus the attempt rollup.
	GradeAttempt(ctx context.Context, attemptID uint) (*grading.Result, error)
	Regrade(ctx context.Context, attemptID uint, userID string) (*grading.Result, error)

	// GradeAnswer applies a teacher's manual override to one answer and
	// recomputes the attempt rollup.
	GradeAnswer(ctx context.Context, answerID uint, req *models.ManualGradeRequest, graderID string) (*models.Answer, error)

	Overview(ctx context.Context, quizID uint, userID string) (*repositories.GradingStats, error)

	MetricsSnapshot() grading.Stats
	ResetMetrics()
}

type ExportService interface {
	ExportQuizResults(ctx context.Context, quizID uint, userID string) (*ExportFile, error)
}

type EmailService interface {
	// Enqueue persists the message and announces it on the event bus; the
	// HTTP path returns as soon as the row is written.
	Enqueue(ctx context.Context, msg *models.EmailMessage) error
	EnqueueResultEmail(ctx context.Context, attempt *models.Attempt, quiz *models.Quiz, student *models.Student) error

	// Deliver sends one queued message, trying the API provider first and
	// falling back to SMTP. Called by the worker, not the HTTP path.
	Deliver(ctx context.Context, messageID uint) error
}

type NotificationEventService interface {
	PublishQuizPublished(ctx context.Context, quiz *models.Quiz) error
	PublishAttemptStarted(ctx context.Context, attempt *models.Attempt) error
	PublishAttemptCompleted(ctx context.Context, attempt *models.Attempt) error
	PublishAttemptGraded(ctx context.Context, attempt *models.Attempt) error
	PublishWarningRecorded(ctx context.Context, attempt *models.Attempt, warning *models.Warning) error
	PublishEmailQueued(ctx context.Context, messageID uint) error
}

type DashboardService interface {
	GetSummary(ctx context.Context, userID string) (*models.DashboardSummary, error)
	GetQuizStats(ctx context.Context, quizID uint, userID string) (*models.QuizStats, error)
}

// ===== SERVICE MANAGER =====

type ServiceManager interface {
	Quiz() QuizService
	Question() QuestionService
	Folder() FolderService
	Student() StudentService
	Attempt() AttemptService
	Grading() GradingService
	Export() ExportService
	Email() EmailService
	Events() NotificationEventService
	Dashboard() DashboardService

	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
