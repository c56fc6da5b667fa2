package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"gorm.io/datatypes"

	"github.com/quizforge/quiz-service/internal/models"
	"github.com/quizforge/quiz-service/internal/repositories"
)

// checkOwnership gates every mutating quiz operation to the creator.
func (s *quizService) checkOwnership(quiz *models.Quiz, userID, action string) error {
	if quiz.CreatedBy != userID {
		return NewPermissionError(userID, quiz.ID, "quiz", action, "not the quiz owner")
	}
	return nil
}

func (s *quizService) buildQuizResponse(ctx context.Context, quiz *models.Quiz, userID string) *QuizResponse {
	isOwner := quiz.CreatedBy == userID
	return &QuizResponse{
		Quiz:      quiz,
		CanEdit:   isOwner && quiz.Status != models.QuizStatusArchived,
		CanDelete: isOwner && quiz.Status != models.QuizStatusActive,
	}
}

func (s *quizService) buildQuizFromRequest(req *models.QuizCreateRequest, creatorID string) *models.Quiz {
	maxWarnings := req.MaxWarnings
	if maxWarnings == 0 {
		maxWarnings = 3
	}
	passingScore := req.PassingScore
	if passingScore == 0 {
		passingScore = 70
	}

	quiz := &models.Quiz{
		Title:        req.Title,
		Description:  req.Description,
		Status:       models.QuizStatusDraft,
		Duration:     req.Duration,
		PassingScore: passingScore,
		MaxWarnings:  maxWarnings,
		DueDate:      req.DueDate,
		FolderID:     req.FolderID,
		CreatedBy:    creatorID,
	}

	quiz.Settings = defaultSettings()
	if req.Settings != nil {
		applySettingsRequest(quiz.Settings, req.Settings)
	}

	return quiz
}

func (s *quizService) applySettingsUpdate(ctx context.Context, repo repositories.Repository, quizID uint, req *models.QuizSettingsRequest) error {
	quiz, err := repo.Quiz().GetByIDWithDetails(ctx, nil, quizID)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	settings := quiz.Settings
	if settings == nil {
		settings = defaultSettings()
		settings.QuizID = quizID
	}
	applySettingsRequest(settings, req)

	if err := repo.Quiz().UpdateSettings(ctx, nil, settings); err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}
	return nil
}

func (s *quizService) bookmarkedSet(ctx context.Context, userID string) (map[uint]bool, error) {
	ids, err := s.repo.Bookmark().ListQuizIDs(ctx, nil, userID)
	if err != nil {
		return map[uint]bool{}, err
	}
	set := make(map[uint]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

func defaultSettings() *models.QuizSettings {
	return &models.QuizSettings{
		ShowResults:         true,
		DetectTabSwitch:     true,
		DetectCopyPaste:     true,
		AutoSubmitOnTimeout: true,
		EmailResults:        true,
	}
}

func applySettingsRequest(settings *models.QuizSettings, req *models.QuizSettingsRequest) {
	if req.ShuffleQuestions != nil {
		settings.ShuffleQuestions = *req.ShuffleQuestions
	}
	if req.ShuffleOptions != nil {
		settings.ShuffleOptions = *req.ShuffleOptions
	}
	if req.ShowResults != nil {
		settings.ShowResults = *req.ShowResults
	}
	if req.ShowCorrectAnswers != nil {
		settings.ShowCorrectAnswers = *req.ShowCorrectAnswers
	}
	if req.DetectTabSwitch != nil {
		settings.DetectTabSwitch = *req.DetectTabSwitch
	}
	if req.DetectCopyPaste != nil {
		settings.DetectCopyPaste = *req.DetectCopyPaste
	}
	if req.DetectRightClick != nil {
		settings.DetectRightClick = *req.DetectRightClick
	}
	if req.AutoSubmitOnTimeout != nil {
		settings.AutoSubmitOnTimeout = *req.AutoSubmitOnTimeout
	}
	if req.EmailResults != nil {
		settings.EmailResults = *req.EmailResults
	}
}

func applyQuizUpdate(quiz *models.Quiz, req *models.QuizUpdateRequest) {
	if req.Title != nil {
		quiz.Title = *req.Title
	}
	if req.Description != nil {
		quiz.Description = req.Description
	}
	if req.Duration != nil {
		quiz.Duration = *req.Duration
	}
	if req.PassingScore != nil {
		quiz.PassingScore = *req.PassingScore
	}
	if req.MaxWarnings != nil {
		quiz.MaxWarnings = *req.MaxWarnings
	}
	if req.DueDate != nil {
		quiz.DueDate = req.DueDate
	}
	if req.FolderID != nil {
		quiz.FolderID = req.FolderID
	}
}

func buildQuestionFromRequest(quizID uint, req *models.QuestionRequest, position int) *models.Question {
	marks := req.Marks
	if marks <= 0 {
		marks = 1
	}
	pos := req.Position
	if pos == 0 {
		pos = position
	}

	question := &models.Question{
		QuizID:      quizID,
		Kind:        req.Kind,
		Text:        req.Text,
		Answer:      req.Answer,
		Marks:       marks,
		Explanation: req.Explanation,
		Position:    pos,
	}
	if len(req.Options) > 0 {
		if raw, err := json.Marshal(req.Options); err == nil {
			question.Options = datatypes.JSON(raw)
		}
	}
	return question
}

func cloneQuiz(source *models.Quiz, title string) *models.Quiz {
	copy := &models.Quiz{
		Title:        title,
		Description:  source.Description,
		Status:       models.QuizStatusDraft,
		Duration:     source.Duration,
		PassingScore: source.PassingScore,
		MaxWarnings:  source.MaxWarnings,
		DueDate:      source.DueDate,
		FolderID:     source.FolderID,
		CreatedBy:    source.CreatedBy,
	}
	if source.Settings != nil {
		settings := *source.Settings
		settings.ID = 0
		settings.QuizID = 0
		copy.Settings = &settings
	}
	return copy
}

func cloneQuestions(quizID uint, source []models.Question) []*models.Question {
	out := make([]*models.Question, len(source))
	for i := range source {
		q := source[i]
		q.ID = 0
		q.QuizID = quizID
		out[i] = &q
	}
	return out
}

func quizFiltersFromParams(params models.ListQuizzesParams, userID string) repositories.QuizFilters {
	size := params.Size
	if size <= 0 {
		size = 20
	}
	filters := repositories.QuizFilters{
		CreatedBy: &userID,
		FolderID:  params.FolderID,
		Search:    params.Search,
		Limit:     size,
		Offset:    params.Page * size,
		SortBy:    params.SortBy,
		SortOrder: params.SortDir,
	}
	if params.Status != "" {
		status := params.Status
		filters.Status = &status
	}
	return filters
}

// paginate wraps a result page in the envelope every list endpoint uses.
func paginate(content interface{}, count int, total int64, page, size int) *models.PaginatedResponse {
	if size <= 0 {
		size = 20
	}
	totalPages := int(math.Ceil(float64(total) / float64(size)))

	return &models.PaginatedResponse{
		Content:          content,
		TotalElements:    total,
		TotalPages:       totalPages,
		Size:             size,
		Page:             page,
		First:            page == 0,
		Last:             page >= totalPages-1,
		NumberOfElements: count,
		Empty:            count == 0,
	}
}
