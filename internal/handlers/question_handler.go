package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quizforge/quiz-service/internal/models"
	"github.com/quizforge/quiz-service/internal/services"
	"github.com/quizforge/quiz-service/internal/utils"
	"github.com/quizforge/quiz-service/internal/validator"
)

// QuestionHandler serves question management nested under a quiz. There
// is no standalone question resource: a question always belongs to
// exactly one quiz.
type QuestionHandler struct {
	BaseHandler
	questionService services.QuestionService
	validator       *validator.Validator
}

func NewQuestionHandler(
	questionService services.QuestionService,
	validator *validator.Validator,
	logger utils.Logger,
) *QuestionHandler {
	return &QuestionHandler{
		BaseHandler:     NewBaseHandler(logger),
		questionService: questionService,
		validator:       validator,
	}
}

// AddQuestion appends one question to a quiz
// @Summary Add question
// @Tags questions
// @Accept json
// @Produce json
// @Param id path int true "Quiz ID"
// @Param question body models.QuestionRequest true "Question data"
// @Success 201 {object} models.Question
// @Router /quizzes/{id}/questions [post]
func (h *QuestionHandler) AddQuestion(c *gin.Context) {
	h.LogRequest(c, "Adding question")

	quizID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	var req models.QuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondInvalidPayload(c, err)
		return
	}

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		h.respondError(c, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
		return
	}

	question, err := h.questionService.Add(c.Request.Context(), quizID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, question)
}

// AddQuestionsBatch appends several questions in one call
func (h *QuestionHandler) AddQuestionsBatch(c *gin.Context) {
	h.LogRequest(c, "Adding questions batch")

	quizID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	var reqs []models.QuestionRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		h.respondInvalidPayload(c, err)
		return
	}

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		h.respondError(c, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
		return
	}

	questions, err := h.questionService.AddBatch(c.Request.Context(), quizID, reqs, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, questions)
}

// ListQuestions lists a quiz's questions in position order
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	h.LogRequest(c, "Listing questions")

	quizID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		h.respondError(c, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
		return
	}

	questions, err := h.questionService.ListByQuiz(c.Request.Context(), quizID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, questions)
}

// UpdateQuestion applies a partial update to one question
func (h *QuestionHandler) UpdateQuestion(c *gin.Context) {
	h.LogRequest(c, "Updating question")

	quizID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	questionID, ok := h.parseIDParam(c, "question_id")
	if !ok {
		return
	}

	var req models.QuestionUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondInvalidPayload(c, err)
		return
	}

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		h.respondError(c, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
		return
	}

	question, err := h.questionService.Update(c.Request.Context(), quizID, questionID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, question)
}

// RemoveQuestion deletes one question from a quiz
func (h *QuestionHandler) RemoveQuestion(c *gin.Context) {
	h.LogRequest(c, "Removing question")

	quizID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	questionID, ok := h.parseIDParam(c, "question_id")
	if !ok {
		return
	}

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		h.respondError(c, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
		return
	}

	if err := h.questionService.Remove(c.Request.Context(), quizID, questionID, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Question removed"})
}

// ReorderQuestions rewrites the position of every question in the quiz.
// The request must list every question exactly once.
func (h *QuestionHandler) ReorderQuestions(c *gin.Context) {
	h.LogRequest(c, "Reordering questions")

	quizID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	var req models.ReorderQuestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondInvalidPayload(c, err)
		return
	}

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		h.respondError(c, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
		return
	}

	if err := h.questionService.Reorder(c.Request.Context(), quizID, &req, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Questions reordered"})
}
