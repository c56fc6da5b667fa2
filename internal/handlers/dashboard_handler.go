package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quizforge/quiz-service/internal/services"
	"github.com/quizforge/quiz-service/internal/utils"
)

type DashboardHandler struct {
	BaseHandler
	dashboardService services.DashboardService
}

func NewDashboardHandler(dashboardService services.DashboardService, logger utils.Logger) *DashboardHandler {
	return &DashboardHandler{
		BaseHandler:      NewBaseHandler(logger),
		dashboardService: dashboardService,
	}
}

// GetSummary returns the teacher's overview: quiz counts by status,
// roster size, today's attempts, average score, pass rate, pending
// reviews and the most recent attempts
// @Summary Dashboard summary
// @Tags dashboard
// @Produce json
// @Success 200 {object} models.DashboardSummary
// @Router /dashboard [get]
func (h *DashboardHandler) GetSummary(c *gin.Context) {
	h.LogRequest(c, "Getting dashboard summary")

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		h.respondError(c, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
		return
	}

	summary, err := h.dashboardService.GetSummary(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// GetQuizStats returns per-quiz aggregates for the dashboard drilldown
func (h *DashboardHandler) GetQuizStats(c *gin.Context) {
	h.LogRequest(c, "Getting quiz stats")

	quizID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		h.respondError(c, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
		return
	}

	stats, err := h.dashboardService.GetQuizStats(c.Request.Context(), quizID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
