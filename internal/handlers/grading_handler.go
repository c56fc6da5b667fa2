package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quizforge/quiz-service/internal/models"
	"github.com/quizforge/quiz-service/internal/services"
	"github.com/quizforge/quiz-service/internal/utils"
	"github.com/quizforge/quiz-service/internal/validator"
)

type GradingHandler struct {
	BaseHandler
	gradingService services.GradingService
	validator      *validator.Validator
}

func NewGradingHandler(
	gradingService services.GradingService,
	validator *validator.Validator,
	logger utils.Logger,
) *GradingHandler {
	return &GradingHandler{
		BaseHandler:    NewBaseHandler(logger),
		gradingService: gradingService,
		validator:      validator,
	}
}

// GradeAnswer applies a manual override to one answer and recomputes the
// attempt's rollup
// @Summary Manually grade an answer
// @Tags grading
// @Accept json
// @Produce json
// @Param id path int true "Answer ID"
// @Param grade body models.ManualGradeRequest true "Marks and feedback"
// @Success 200 {object} models.Answer
// @Failure 400 {object} ErrorResponse "Marks exceed question maximum"
// @Router /grading/answers/{id} [post]
func (h *GradingHandler) GradeAnswer(c *gin.Context) {
	h.LogRequest(c, "Manually grading answer")

	answerID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	var req models.ManualGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondInvalidPayload(c, err)
		return
	}

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		h.respondError(c, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
		return
	}

	answer, err := h.gradingService.GradeAnswer(c.Request.Context(), answerID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, answer)
}

// RegradeAttempt reruns the grading pipeline over a completed attempt
func (h *GradingHandler) RegradeAttempt(c *gin.Context) {
	h.LogRequest(c, "Regrading attempt")

	attemptID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		h.respondError(c, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
		return
	}

	result, err := h.gradingService.Regrade(c.Request.Context(), attemptID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetGradingOverview returns a quiz's grading totals, including answers
// still waiting for manual review
func (h *GradingHandler) GetGradingOverview(c *gin.Context) {
	h.LogRequest(c, "Getting grading overview")

	quizID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		h.respondError(c, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
		return
	}

	overview, err := h.gradingService.Overview(c.Request.Context(), quizID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, overview)
}

// GetGradingMetrics returns the in-process grading pipeline counters
func (h *GradingHandler) GetGradingMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.gradingService.MetricsSnapshot())
}

// ResetGradingMetrics zeroes the grading pipeline counters
func (h *GradingHandler) ResetGradingMetrics(c *gin.Context) {
	h.gradingService.ResetMetrics()
	c.JSON(http.StatusOK, SuccessResponse{Message: "Grading metrics reset"})
}
