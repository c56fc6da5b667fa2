package models

import (
	"time"
)

// ===== QUIZ REQUESTS =====

type QuizCreateRequest struct {
	Title        string               `json:"title" validate:"required,quiz_title"`
	Description  *string              `json:"description" validate:"omitempty,max=1000"`
	Duration     int                  `json:"duration" validate:"required,quiz_duration"`
	PassingScore int                  `json:"passing_score" validate:"passing_score"`
	MaxWarnings  int                  `json:"max_warnings" validate:"omitempty,warning_limit"`
	DueDate      *time.Time           `json:"due_date" validate:"omitempty,future_date"`
	FolderID     *uint                `json:"folder_id"`
	Settings     *QuizSettingsRequest `json:"settings"`
	Questions    []QuestionRequest    `json:"questions" validate:"omitempty,dive"`
}

type QuizUpdateRequest struct {
	Title        *string              `json:"title" validate:"omitempty,quiz_title"`
	Description  *string              `json:"description" validate:"omitempty,max=1000"`
	Duration     *int                 `json:"duration" validate:"omitempty,quiz_duration"`
	PassingScore *int                 `json:"passing_score" validate:"omitempty,passing_score"`
	MaxWarnings  *int                 `json:"max_warnings" validate:"omitempty,warning_limit"`
	DueDate      *time.Time           `json:"due_date" validate:"omitempty,future_date"`
	FolderID     *uint                `json:"folder_id"`
	Settings     *QuizSettingsRequest `json:"settings"`
}

type QuizSettingsRequest struct {
	ShuffleQuestions    *bool `json:"shuffle_questions"`
	ShuffleOptions      *bool `json:"shuffle_options"`
	ShowResults         *bool `json:"show_results"`
	ShowCorrectAnswers  *bool `json:"show_correct_answers"`
	DetectTabSwitch     *bool `json:"detect_tab_switch"`
	DetectCopyPaste     *bool `json:"detect_copy_paste"`
	DetectRightClick    *bool `json:"detect_right_click"`
	AutoSubmitOnTimeout *bool `json:"auto_submit_on_timeout"`
	EmailResults        *bool `json:"email_results"`
}

type ChangeQuizStatusRequest struct {
	Status QuizStatus `json:"status" validate:"required,oneof=Draft Active Expired Archived"`
	Reason *string    `json:"reason" validate:"omitempty,max=500"`
}

// ===== QUESTION REQUESTS =====

type QuestionRequest struct {
	Kind        QuestionKind `json:"kind" validate:"required,question_kind"`
	Text        string       `json:"text" validate:"required,min=1,max=2000"`
	Options     []string     `json:"options" validate:"omitempty,max=10,dive,min=1,max=500"`
	Answer      string       `json:"answer" validate:"required,max=2000"`
	Marks       float64      `json:"marks" validate:"omitempty,marks_range"`
	Explanation *string      `json:"explanation" validate:"omitempty,max=1000"`
	Position    int          `json:"position" validate:"min=0"`
}

type QuestionUpdateRequest struct {
	Text        *string  `json:"text" validate:"omitempty,min=1,max=2000"`
	Options     []string `json:"options" validate:"omitempty,max=10,dive,min=1,max=500"`
	Answer      *string  `json:"answer" validate:"omitempty,max=2000"`
	Marks       *float64 `json:"marks" validate:"omitempty,marks_range"`
	Explanation *string  `json:"explanation" validate:"omitempty,max=1000"`
	Position    *int     `json:"position" validate:"omitempty,min=0"`
}

type ReorderQuestionsRequest struct {
	QuestionIDs []uint `json:"question_ids" validate:"required,min=1"`
}

// ===== FOLDER / BOOKMARK REQUESTS =====

type FolderCreateRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	Color       string  `json:"color" validate:"omitempty,hexcolor"`
}

type FolderUpdateRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	Color       *string `json:"color" validate:"omitempty,hexcolor"`
}

type MoveQuizRequest struct {
	FolderID *uint `json:"folder_id"` // nil moves the quiz out of any folder
}

// ===== STUDENT REQUESTS =====

type StudentCreateRequest struct {
	FullName string  `json:"full_name" validate:"required,min=1,max=200"`
	Email    string  `json:"email" validate:"required,email"`
	Group    *string `json:"group" validate:"omitempty,max=100"`
}

type StudentUpdateRequest struct {
	FullName *string `json:"full_name" validate:"omitempty,min=1,max=200"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Group    *string `json:"group" validate:"omitempty,max=100"`
}

type StudentImportRequest struct {
	Students []StudentCreateRequest `json:"students" validate:"required,min=1,max=500,dive"`
}

// ===== ATTEMPT LINK / TAKE REQUESTS =====

type IssueLinkRequest struct {
	StudentIDs []uint     `json:"student_ids" validate:"required,min=1,max=500"`
	ExpiresAt  *time.Time `json:"expires_at" validate:"omitempty,future_date"`
	SendEmail  bool       `json:"send_email"`
}

type SaveAnswerRequest struct {
	QuestionID uint   `json:"question_id" validate:"required"`
	Value      string `json:"value"`
	TimeSpent  int    `json:"time_spent" validate:"min=0"`
}

type SubmitAttemptRequest struct {
	Answers   []SaveAnswerRequest `json:"answers" validate:"omitempty,dive"`
	TimeSpent int                 `json:"time_spent" validate:"min=0"`
}

type ReportWarningRequest struct {
	Kind   string `json:"kind" validate:"required,oneof=tab_switch copy_paste right_click fullscreen_exit other"`
	Detail string `json:"detail" validate:"omitempty,max=500"`
}

// ===== GRADING REQUESTS =====

type ManualGradeRequest struct {
	Marks    float64 `json:"marks" validate:"min=0"`
	Feedback *string `json:"feedback" validate:"omitempty,max=2000"`
}

// ===== PAGINATION & FILTERING =====

type ListQuizzesParams struct {
	Page     int        `json:"page" validate:"min=0"`
	Size     int        `json:"size" validate:"min=1,max=100"`
	Status   QuizStatus `json:"status"`
	Search   string     `json:"search"`
	FolderID *uint      `json:"folder_id"`
	SortBy   string     `json:"sort_by"`
	SortDir  string     `json:"sort_dir" validate:"omitempty,oneof=asc desc"`
}

type ListAttemptsParams struct {
	Page      int           `json:"page" validate:"min=0"`
	Size      int           `json:"size" validate:"min=1,max=100"`
	QuizID    *uint         `json:"quiz_id"`
	StudentID *uint         `json:"student_id"`
	Status    AttemptStatus `json:"status"`
	DateFrom  *time.Time    `json:"date_from"`
	DateTo    *time.Time    `json:"date_to"`
	SortBy    string        `json:"sort_by"`
	SortDir   string        `json:"sort_dir" validate:"omitempty,oneof=asc desc"`
}

type ListStudentsParams struct {
	Page   int    `json:"page" validate:"min=0"`
	Size   int    `json:"size" validate:"min=1,max=100"`
	Group  string `json:"group"`
	Search string `json:"search"`
}

type PaginatedResponse struct {
	Content          interface{} `json:"content"`
	TotalElements    int64       `json:"total_elements"`
	TotalPages       int         `json:"total_pages"`
	Size             int         `json:"size"`
	Page             int         `json:"page"`
	First            bool        `json:"first"`
	Last             bool        `json:"last"`
	NumberOfElements int         `json:"number_of_elements"`
	Empty            bool        `json:"empty"`
}

// ===== DASHBOARD & STATS DTOS =====

type DashboardSummary struct {
	TotalQuizzes    int64            `json:"total_quizzes"`
	QuizzesByStatus map[string]int64 `json:"quizzes_by_status"`
	TotalStudents   int64            `json:"total_students"`
	AttemptsToday   int64            `json:"attempts_today"`
	AverageScore    float64          `json:"average_score"`
	PassRate        float64          `json:"pass_rate"`
	PendingReviews  int64            `json:"pending_reviews"`
	RecentAttempts  []AttemptSummary `json:"recent_attempts"`
}

type AttemptSummary struct {
	AttemptID     uint       `json:"attempt_id"`
	QuizID        uint       `json:"quiz_id"`
	QuizTitle     string     `json:"quiz_title"`
	StudentName   string     `json:"student_name"`
	StudentEmail  string     `json:"student_email"`
	Status        string     `json:"status"`
	TotalMarks    float64    `json:"total_marks"`
	MaxMarks      float64    `json:"max_marks"`
	Percentage    float64    `json:"percentage"`
	Passed        bool       `json:"passed"`
	WarningCount  int        `json:"warning_count"`
	AutoSubmitted bool       `json:"auto_submitted"`
	StartedAt     *time.Time `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at"`
}

type QuizStats struct {
	TotalAttempts     int64   `json:"total_attempts"`
	CompletedAttempts int64   `json:"completed_attempts"`
	AverageScore      float64 `json:"average_score"`
	AveragePercent    float64 `json:"average_percent"`
	PassRate          float64 `json:"pass_rate"`
	AverageTimeSpent  int     `json:"average_time_spent"`
	PendingReviews    int64   `json:"pending_reviews"`
}

// ===== ERROR / SUCCESS RESPONSES =====

type ValidationErrorResponse struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   string `json:"value"`
	Code    string `json:"code"`
}

type ErrorResponse struct {
	Error            string                    `json:"error"`
	Message          string                    `json:"message"`
	Details          interface{}               `json:"details,omitempty"`
	Timestamp        time.Time                 `json:"timestamp"`
	Path             string                    `json:"path"`
	ValidationErrors []ValidationErrorResponse `json:"validation_errors,omitempty"`
}

type SuccessResponse struct {
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
