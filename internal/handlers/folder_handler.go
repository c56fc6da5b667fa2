package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quizforge/quiz-service/internal/models"
	"github.com/quizforge/quiz-service/internal/services"
	"github.com/quizforge/quiz-service/internal/utils"
	"github.com/quizforge/quiz-service/internal/validator"
)

type FolderHandler struct {
	BaseHandler
	folderService services.FolderService
	validator     *validator.Validator
}

func NewFolderHandler(
	folderService services.FolderService,
	validator *validator.Validator,
	logger utils.Logger,
) *FolderHandler {
	return &FolderHandler{
		BaseHandler:   NewBaseHandler(logger),
		folderService: folderService,
		validator:     validator,
	}
}

// CreateFolder creates a new quiz folder
func (h *FolderHandler) CreateFolder(c *gin.Context) {
	h.LogRequest(c, "Creating folder")

	var req models.FolderCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondInvalidPayload(c, err)
		return
	}

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		h.respondError(c, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
		return
	}

	folder, err := h.folderService.Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, folder)
}

// ListFolders lists the caller's folders
func (h *FolderHandler) ListFolders(c *gin.Context) {
	h.LogRequest(c, "Listing folders")

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		h.respondError(c, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
		return
	}

	folders, err := h.folderService.List(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, folders)
}

// GetFolder returns one folder
func (h *FolderHandler) GetFolder(c *gin.Context) {
	h.LogRequest(c, "Getting folder")

	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		h.respondError(c, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
		return
	}

	folder, err := h.folderService.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, folder)
}

// UpdateFolder renames or recolors a folder
func (h *FolderHandler) UpdateFolder(c *gin.Context) {
	h.LogRequest(c, "Updating folder")

	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	var req models.FolderUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondInvalidPayload(c, err)
		return
	}

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		h.respondError(c, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
		return
	}

	folder, err := h.folderService.Update(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, folder)
}

// DeleteFolder removes a folder. Quizzes inside it survive without a
// folder.
func (h *FolderHandler) DeleteFolder(c *gin.Context) {
	h.LogRequest(c, "Deleting folder")

	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		h.respondError(c, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
		return
	}

	if err := h.folderService.Delete(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Folder deleted"})
}

// ListFolderQuizzes lists the quizzes inside a folder
func (h *FolderHandler) ListFolderQuizzes(c *gin.Context) {
	h.LogRequest(c, "Listing folder quizzes")

	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		h.respondError(c, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
		return
	}

	quizzes, err := h.folderService.ListQuizzes(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, quizzes)
}

// MoveQuiz moves a quiz into a folder, or out of any folder when the
// body carries a null folder_id
func (h *FolderHandler) MoveQuiz(c *gin.Context) {
	h.LogRequest(c, "Moving quiz")

	quizID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	var req models.MoveQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondInvalidPayload(c, err)
		return
	}

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		h.respondError(c, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
		return
	}

	if err := h.folderService.MoveQuiz(c.Request.Context(), quizID, &req, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Quiz moved"})
}
