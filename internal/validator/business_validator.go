package validator

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/quizforge/quiz-service/internal/grading"
	"github.com/quizforge/quiz-service/internal/models"
)

// BusinessValidator handles the rules that plain struct tags cannot
// express: status transitions, answer-key consistency, attempt gating.
type BusinessValidator struct {
	validate *validator.Validate
}

func NewBusinessValidator() *BusinessValidator {
	validate := validator.New()
	registerCustomRules(validate)
	return &BusinessValidator{validate: validate}
}

// Validate runs struct tag validation and returns the failures.
func (bv *BusinessValidator) Validate(s interface{}) ValidationErrors {
	if err := bv.validate.Struct(s); err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// ValidateQuizCreate validates quiz creation, including any inline questions.
func (bv *BusinessValidator) ValidateQuizCreate(req *models.QuizCreateRequest) ValidationErrors {
	var errs ValidationErrors

	errs = append(errs, bv.Validate(req)...)

	for i := range req.Questions {
		for _, qe := range bv.validateQuestionRules(req.Questions[i].Kind, req.Questions[i].Options, req.Questions[i].Answer) {
			qe.Field = fmt.Sprintf("questions[%d].%s", i, qe.Field)
			errs = append(errs, qe)
		}
	}

	return errs
}

// ValidateQuizUpdate validates quiz updates against the stored quiz.
// Active quizzes lock the fields that would change scoring for
// attempts already underway.
func (bv *BusinessValidator) ValidateQuizUpdate(req *models.QuizUpdateRequest, existing *models.Quiz) ValidationErrors {
	var errs ValidationErrors

	errs = append(errs, bv.Validate(req)...)

	if existing != nil && existing.Status == models.QuizStatusActive {
		if req.PassingScore != nil && *req.PassingScore != existing.PassingScore {
			errs = append(errs, ValidationError{
				Field:   "passing_score",
				Message: "cannot be changed while the quiz is active",
				Value:   *req.PassingScore,
				Rule:    "business_logic",
			})
		}
		if req.Duration != nil && *req.Duration != existing.Duration {
			errs = append(errs, ValidationError{
				Field:   "duration",
				Message: "cannot be changed while the quiz is active",
				Value:   *req.Duration,
				Rule:    "business_logic",
			})
		}
	}

	return errs
}

// ValidateQuestionCreate validates a standalone question payload.
func (bv *BusinessValidator) ValidateQuestionCreate(req *models.QuestionRequest) ValidationErrors {
	var errs ValidationErrors

	errs = append(errs, bv.Validate(req)...)
	errs = append(errs, bv.validateQuestionRules(req.Kind, req.Options, req.Answer)...)

	return errs
}

// ValidateQuestionUpdate validates a partial question update against the
// stored question, merging unchanged fields before checking consistency.
func (bv *BusinessValidator) ValidateQuestionUpdate(req *models.QuestionUpdateRequest, existing *models.Question) ValidationErrors {
	var errs ValidationErrors

	errs = append(errs, bv.Validate(req)...)
	if existing == nil {
		return errs
	}

	options := existing.OptionList()
	if req.Options != nil {
		options = req.Options
	}
	answer := existing.Answer
	if req.Answer != nil {
		answer = *req.Answer
	}
	errs = append(errs, bv.validateQuestionRules(existing.Kind, options, answer)...)

	return errs
}

// ValidateAttemptStart checks whether a student may start an attempt
// through an issued link.
func (bv *BusinessValidator) ValidateAttemptStart(status models.QuizStatus, dueDate *time.Time, linkExpiresAt *time.Time, linkUsed bool) ValidationErrors {
	var errs ValidationErrors
	now := time.Now()

	if status != models.QuizStatusActive {
		errs = append(errs, ValidationError{
			Field:   "quiz_status",
			Message: "quiz is not active",
			Value:   status,
			Rule:    "business_logic",
		})
	}

	if dueDate != nil && now.After(*dueDate) {
		errs = append(errs, ValidationError{
			Field:   "due_date",
			Message: "quiz is past its due date",
			Value:   dueDate,
			Rule:    "business_logic",
		})
	}

	if linkExpiresAt != nil && now.After(*linkExpiresAt) {
		errs = append(errs, ValidationError{
			Field:   "link",
			Message: "attempt link has expired",
			Value:   linkExpiresAt,
			Rule:    "business_logic",
		})
	}

	if linkUsed {
		errs = append(errs, ValidationError{
			Field:   "link",
			Message: "attempt link has already been used",
			Value:   linkUsed,
			Rule:    "business_logic",
		})
	}

	return errs
}

// ValidateStatusTransition validates quiz status transitions.
func (bv *BusinessValidator) ValidateStatusTransition(current, next models.QuizStatus, questionCount int) ValidationErrors {
	var errs ValidationErrors

	allowedTransitions := map[models.QuizStatus][]models.QuizStatus{
		models.QuizStatusDraft:    {models.QuizStatusActive, models.QuizStatusArchived},
		models.QuizStatusActive:   {models.QuizStatusExpired, models.QuizStatusArchived},
		models.QuizStatusExpired:  {models.QuizStatusActive, models.QuizStatusArchived},
		models.QuizStatusArchived: {}, // terminal
	}

	allowed := false
	for _, candidate := range allowedTransitions[current] {
		if next == candidate {
			allowed = true
			break
		}
	}

	if !allowed {
		errs = append(errs, ValidationError{
			Field:   "status",
			Message: fmt.Sprintf("cannot transition from %s to %s", current, next),
			Value:   next,
			Rule:    "status_transition",
		})
	}

	// Publishing requires at least one question.
	if next == models.QuizStatusActive && questionCount == 0 {
		errs = append(errs, ValidationError{
			Field:   "questions",
			Message: "quiz must have at least one question before publishing",
			Value:   questionCount,
			Rule:    "business_logic",
		})
	}

	return errs
}

// ValidateDeletePermission checks whether a quiz can be deleted.
func (bv *BusinessValidator) ValidateDeletePermission(hasAttempts bool, status models.QuizStatus) ValidationErrors {
	var errs ValidationErrors

	if hasAttempts {
		errs = append(errs, ValidationError{
			Field:   "attempts",
			Message: "cannot delete a quiz with recorded attempts",
			Value:   hasAttempts,
			Rule:    "business_logic",
		})
	}

	if status == models.QuizStatusActive {
		errs = append(errs, ValidationError{
			Field:   "status",
			Message: "cannot delete an active quiz",
			Value:   status,
			Rule:    "business_logic",
		})
	}

	return errs
}

// validateQuestionRules checks that a question's options and answer key
// are consistent with its kind. Choice questions need enough options
// and an answer that resolves to one of them; open questions need a
// non-empty model answer for the grader to compare against.
func (bv *BusinessValidator) validateQuestionRules(kind models.QuestionKind, options []string, answer string) ValidationErrors {
	var errs ValidationErrors

	if kind.IsChoice() {
		if len(options) < 2 {
			errs = append(errs, ValidationError{
				Field:   "options",
				Message: "choice questions need at least 2 options",
				Value:   len(options),
				Rule:    "business_logic",
			})
		} else if !answerMatchesOption(answer, options) {
			errs = append(errs, ValidationError{
				Field:   "answer",
				Message: "answer key must reference one of the options",
				Value:   answer,
				Rule:    "business_logic",
			})
		}
		return errs
	}

	if strings.TrimSpace(answer) == "" {
		errs = append(errs, ValidationError{
			Field:   "answer",
			Message: "open questions need a model answer for grading",
			Value:   answer,
			Rule:    "business_logic",
		})
	}

	return errs
}

// answerMatchesOption reports whether the answer key resolves to one of
// the options, either as a letter ("B", "Option B"), a 1-based number,
// or the option text itself.
func answerMatchesOption(answer string, options []string) bool {
	normalized := grading.NormalizeChoice(answer)
	if normalized == "" {
		return false
	}

	if len(normalized) == 1 && normalized[0] >= 'A' && normalized[0] <= 'D' {
		return int(normalized[0]-'A') < len(options)
	}

	if n, err := strconv.Atoi(normalized); err == nil {
		return n >= 1 && n <= len(options)
	}

	for _, option := range options {
		if strings.EqualFold(strings.TrimSpace(option), strings.TrimSpace(answer)) {
			return true
		}
	}
	return false
}
