package services

import (
	"errors"
	"fmt"

	"github.com/quizforge/quiz-service/internal/validator"
)

// ValidationErrors is re-exported so handlers can errors.As against the
// services package alone.
type ValidationErrors = validator.ValidationErrors

// Sentinel errors mapped to HTTP statuses in the handlers.
var (
	ErrQuizNotFound      = errors.New("quiz not found")
	ErrQuestionNotFound  = errors.New("question not found")
	ErrFolderNotFound    = errors.New("folder not found")
	ErrStudentNotFound   = errors.New("student not found")
	ErrAttemptNotFound   = errors.New("attempt not found")
	ErrAnswerNotFound    = errors.New("answer not found")
	ErrLinkNotFound      = errors.New("attempt link not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrEmailNotFound     = errors.New("email message not found")
	ErrDuplicateTitle    = errors.New("a quiz with this title already exists")
	ErrDuplicateEmail    = errors.New("a student with this email already exists")
	ErrQuizHasAttempts   = errors.New("quiz has recorded attempts")
	ErrLinkExpired       = errors.New("attempt link has expired")
	ErrLinkRevoked       = errors.New("attempt link has been revoked")
	ErrAttemptNotOpen    = errors.New("attempt is not in progress")
	ErrAttemptSubmitted  = errors.New("attempt has already been submitted")
	ErrAttemptNotGraded  = errors.New("attempt has not been graded yet")
	ErrResultsHidden     = errors.New("quiz settings do not allow showing results")
	ErrMarksOutOfRange   = errors.New("marks exceed the question maximum")
	ErrExportNoAttempts  = errors.New("quiz has no completed attempts to export")
	ErrEmailNotQueued    = errors.New("email message is not in the queued state")
	ErrServiceNotEnabled = errors.New("service is not enabled")
)

// BusinessRuleError reports a domain rule violation that is neither a
// validation failure nor a permission problem.
type BusinessRuleError struct {
	Rule    string
	Message string
	Context map[string]interface{}
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule %s violated: %s", e.Rule, e.Message)
}

func NewBusinessRuleError(rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message, Context: context}
}

// PermissionError reports that a user acted on a resource they do not own
// or lack the role for.
type PermissionError struct {
	UserID     string
	ResourceID uint
	Resource   string
	Action     string
	Reason     string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s cannot %s %s %d: %s", e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func NewPermissionError(userID string, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}
