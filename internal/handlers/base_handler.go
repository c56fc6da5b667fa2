package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quizforge/quiz-service/internal/models"
	"github.com/quizforge/quiz-service/internal/services"
	"github.com/quizforge/quiz-service/internal/utils"
)

// ErrorResponse and SuccessResponse are the JSON envelopes every endpoint
// uses. They live in models so services can reference them too.
type ErrorResponse = models.ErrorResponse
type SuccessResponse = models.SuccessResponse

// BaseHandler carries the pieces every handler shares: logging and the
// mapping from service errors to HTTP statuses.
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

func (h *BaseHandler) LogRequest(c *gin.Context, msg string) {
	utils.LoggerFromContext(c.Request.Context(), h.logger).Debug(msg,
		"method", c.Request.Method, "path", c.Request.URL.Path)
}

func (h *BaseHandler) LogError(c *gin.Context, err error, msg string) {
	utils.LoggerFromContext(c.Request.Context(), h.logger).Error(msg,
		"error", err, "method", c.Request.Method, "path", c.Request.URL.Path)
}

// parseIDParam reads a positive integer path parameter. On failure it has
// already written the 400 response; callers just return.
func (h *BaseHandler) parseIDParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		h.respondError(c, http.StatusBadRequest, "invalid_parameter",
			fmt.Sprintf("invalid %s parameter", name), raw)
		return 0, false
	}
	return uint(id), true
}

func (h *BaseHandler) respondError(c *gin.Context, status int, code, message string, details interface{}) {
	c.JSON(status, ErrorResponse{
		Error:     code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		Path:      c.Request.URL.Path,
	})
}

func (h *BaseHandler) respondInvalidPayload(c *gin.Context, err error) {
	h.respondError(c, http.StatusBadRequest, "invalid_payload", "Invalid request payload", err.Error())
}

// handleServiceError maps service-layer errors onto HTTP statuses. Every
// handler funnels errors through here so a sentinel means the same status
// on every route.
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrs services.ValidationErrors
	var permErr *services.PermissionError
	var ruleErr *services.BusinessRuleError

	switch {
	case errors.As(err, &validationErrs):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:            "validation_failed",
			Message:          "Validation failed",
			Timestamp:        time.Now().UTC(),
			Path:             c.Request.URL.Path,
			ValidationErrors: toValidationResponses(validationErrs),
		})

	case errors.As(err, &permErr):
		h.respondError(c, http.StatusForbidden, "forbidden", permErr.Reason, nil)

	case errors.As(err, &ruleErr):
		h.respondError(c, http.StatusUnprocessableEntity, ruleErr.Rule, ruleErr.Message, ruleErr.Context)

	case errors.Is(err, services.ErrQuizNotFound),
		errors.Is(err, services.ErrQuestionNotFound),
		errors.Is(err, services.ErrFolderNotFound),
		errors.Is(err, services.ErrStudentNotFound),
		errors.Is(err, services.ErrAttemptNotFound),
		errors.Is(err, services.ErrAnswerNotFound),
		errors.Is(err, services.ErrLinkNotFound),
		errors.Is(err, services.ErrUserNotFound):
		h.respondError(c, http.StatusNotFound, "not_found", err.Error(), nil)

	case errors.Is(err, services.ErrDuplicateTitle),
		errors.Is(err, services.ErrDuplicateEmail),
		errors.Is(err, services.ErrQuizHasAttempts),
		errors.Is(err, services.ErrAttemptSubmitted),
		errors.Is(err, services.ErrAttemptNotOpen),
		errors.Is(err, services.ErrAttemptNotGraded),
		errors.Is(err, services.ErrExportNoAttempts):
		h.respondError(c, http.StatusConflict, "conflict", err.Error(), nil)

	case errors.Is(err, services.ErrLinkExpired),
		errors.Is(err, services.ErrLinkRevoked):
		h.respondError(c, http.StatusGone, "link_expired", err.Error(), nil)

	case errors.Is(err, services.ErrResultsHidden):
		h.respondError(c, http.StatusForbidden, "results_hidden", err.Error(), nil)

	case errors.Is(err, services.ErrMarksOutOfRange):
		h.respondError(c, http.StatusBadRequest, "marks_out_of_range", err.Error(), nil)

	default:
		h.LogError(c, err, "Unexpected service error")
		h.respondError(c, http.StatusInternalServerError, "internal_error", "Internal server error", nil)
	}
}

func toValidationResponses(errs services.ValidationErrors) []models.ValidationErrorResponse {
	out := make([]models.ValidationErrorResponse, len(errs))
	for i, ve := range errs {
		out[i] = models.ValidationErrorResponse{
			Field:   ve.Field,
			Message: ve.Message,
			Value:   fmt.Sprintf("%v", ve.Value),
			Code:    ve.Rule,
		}
	}
	return out
}
