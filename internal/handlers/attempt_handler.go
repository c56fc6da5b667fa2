package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quizforge/quiz-service/internal/models"
	"github.com/quizforge/quiz-service/internal/services"
	"github.com/quizforge/quiz-service/internal/utils"
	"github.com/quizforge/quiz-service/internal/validator"
)

// AttemptHandler serves both sides of the attempt lifecycle: the
// authenticated teacher routes (links, review, stats) and the public
// take flow where the link token is the only credential.
type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
	validator      *validator.Validator
}

func NewAttemptHandler(
	attemptService services.AttemptService,
	validator *validator.Validator,
	logger utils.Logger,
) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
		validator:      validator,
	}
}

// ===== TEACHER SIDE: LINKS =====

// IssueLinks creates one single-use link per student for a quiz
// @Summary Issue attempt links
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path int true "Quiz ID"
// @Param request body models.IssueLinkRequest true "Students and options"
// @Success 201 {array} models.AttemptLink
// @Router /quizzes/{id}/links [post]
func (h *AttemptHandler) IssueLinks(c *gin.Context) {
	h.LogRequest(c, "Issuing attempt links")

	quizID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	var req models.IssueLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondInvalidPayload(c, err)
		return
	}

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		h.respondError(c, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
		return
	}

	links, err := h.attemptService.IssueLinks(c.Request.Context(), quizID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, links)
}

// ListLinks lists the links issued for a quiz
func (h *AttemptHandler) ListLinks(c *gin.Context) {
	h.LogRequest(c, "Listing attempt links")

	quizID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		h.respondError(c, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
		return
	}

	links, err := h.attemptService.ListLinks(c.Request.Context(), quizID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, links)
}

// RevokeLink invalidates an unused link
func (h *AttemptHandler) RevokeLink(c *gin.Context) {
	h.LogRequest(c, "Revoking attempt link")

	linkID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		h.respondError(c, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
		return
	}

	if err := h.attemptService.RevokeLink(c.Request.Context(), linkID, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Link revoked"})
}

// ===== STUDENT SIDE: PUBLIC TAKE FLOW =====

// ResolveLink exchanges a link token for a runnable attempt, resuming an
// open one if the student reloads the page
// @Summary Resolve attempt link
// @Tags take
// @Produce json
// @Param token path string true "Link token"
// @Success 200 {object} services.TakeQuizResponse
// @Failure 404 {object} ErrorResponse "Unknown token"
// @Failure 409 {object} ErrorResponse "Already submitted"
// @Router /take/{token} [get]
func (h *AttemptHandler) ResolveLink(c *gin.Context) {
	h.LogRequest(c, "Resolving attempt link")

	token := c.Param("token")
	resp, err := h.attemptService.Resolve(c.Request.Context(), token, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// SaveAnswer upserts one answer on the open attempt
func (h *AttemptHandler) SaveAnswer(c *gin.Context) {
	var req models.SaveAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondInvalidPayload(c, err)
		return
	}

	if err := h.attemptService.SaveAnswer(c.Request.Context(), c.Param("token"), &req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Answer saved"})
}

// ReportWarning records a proctoring violation. Hitting the quiz's
// warning limit force-submits the attempt.
func (h *AttemptHandler) ReportWarning(c *gin.Context) {
	var req models.ReportWarningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondInvalidPayload(c, err)
		return
	}

	resp, err := h.attemptService.RecordWarning(c.Request.Context(), c.Param("token"), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// SubmitAttempt closes the attempt, grades it and returns the result as
// far as the quiz settings allow
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	h.LogRequest(c, "Submitting attempt")

	var req models.SubmitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondInvalidPayload(c, err)
		return
	}

	result, err := h.attemptService.Submit(c.Request.Context(), c.Param("token"), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetTakeResult returns the graded result for a submitted attempt, again
// gated by the quiz settings
func (h *AttemptHandler) GetTakeResult(c *gin.Context) {
	result, err := h.attemptService.GetResult(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ===== TEACHER SIDE: REVIEW =====

// ListAttempts lists attempts on the caller's quizzes with paging and
// filters
func (h *AttemptHandler) ListAttempts(c *gin.Context) {
	h.LogRequest(c, "Listing attempts")

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		h.respondError(c, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
		return
	}

	params := models.ListAttemptsParams{
		Page:    parseIntQuery(c, "page", 0),
		Size:    parseIntQuery(c, "size", 20),
		Status:  models.AttemptStatus(c.Query("status")),
		SortBy:  c.Query("sort_by"),
		SortDir: c.Query("sort_dir"),
	}
	if raw := c.Query("quiz_id"); raw != "" {
		if quizID, err := strconv.ParseUint(raw, 10, 32); err == nil {
			id := uint(quizID)
			params.QuizID = &id
		}
	}
	if raw := c.Query("student_id"); raw != "" {
		if studentID, err := strconv.ParseUint(raw, 10, 32); err == nil {
			id := uint(studentID)
			params.StudentID = &id
		}
	}
	if raw := c.Query("date_from"); raw != "" {
		if from, err := time.Parse(time.RFC3339, raw); err == nil {
			params.DateFrom = &from
		}
	}
	if raw := c.Query("date_to"); raw != "" {
		if to, err := time.Parse(time.RFC3339, raw); err == nil {
			params.DateTo = &to
		}
	}

	result, err := h.attemptService.List(c.Request.Context(), params, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetAttempt returns one attempt with answers and warnings for review
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	h.LogRequest(c, "Getting attempt")

	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		h.respondError(c, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
		return
	}

	attempt, err := h.attemptService.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// GetAttemptResult returns the graded result view of an attempt. Teachers
// always see everything regardless of the quiz settings.
func (h *AttemptHandler) GetAttemptResult(c *gin.Context) {
	h.LogRequest(c, "Getting attempt result")

	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		h.respondError(c, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
		return
	}

	result, err := h.attemptService.GetResultByID(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetAttemptStats returns aggregate attempt statistics for a quiz
func (h *AttemptHandler) GetAttemptStats(c *gin.Context) {
	h.LogRequest(c, "Getting attempt stats")

	quizID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		h.respondError(c, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
		return
	}

	stats, err := h.attemptService.GetStats(c.Request.Context(), quizID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
