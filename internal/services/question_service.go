package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/quizforge/quiz-service/internal/models"
	"github.com/quizforge/quiz-service/internal/repositories"
	"github.com/quizforge/quiz-service/internal/validator"
)

type questionService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
}

func NewQuestionService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, v *validator.Validator) QuestionService {
	return &questionService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: v,
	}
}

// ownedQuiz loads the quiz and checks the caller owns it.
func (s *questionService) ownedQuiz(ctx context.Context, quizID uint, userID, action string) (*models.Quiz, error) {
	quiz, err := s.repo.Quiz().GetByID(ctx, nil, quizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}
	if quiz.CreatedBy != userID {
		return nil, NewPermissionError(userID, quizID, "quiz", action, "not the quiz owner")
	}
	return quiz, nil
}

func (s *questionService) Add(ctx context.Context, quizID uint, req *models.QuestionRequest, userID string) (*models.Question, error) {
	s.logger.Info("Adding question", "quiz_id", quizID, "kind", req.Kind, "user_id", userID)

	if _, err := s.ownedQuiz(ctx, quizID, userID, "add_question"); err != nil {
		return nil, err
	}

	if errs := s.validator.GetBusinessValidator().ValidateQuestionCreate(req); len(errs) > 0 {
		return nil, errs
	}

	maxPos, err := s.repo.Question().MaxPosition(ctx, nil, quizID)
	if err != nil {
		return nil, fmt.Errorf("failed to get question position: %w", err)
	}

	question := buildQuestionFromRequest(quizID, req, maxPos+1)
	question.Position = maxPos + 1

	if err := s.repo.Question().Create(ctx, nil, question); err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}

	return question, nil
}

func (s *questionService) AddBatch(ctx context.Context, quizID uint, reqs []models.QuestionRequest, userID string) ([]*models.Question, error) {
	s.logger.Info("Adding question batch", "quiz_id", quizID, "count", len(reqs), "user_id", userID)

	if _, err := s.ownedQuiz(ctx, quizID, userID, "add_questions"); err != nil {
		return nil, err
	}

	var errs ValidationErrors
	for i := range reqs {
		for _, qe := range s.validator.GetBusinessValidator().ValidateQuestionCreate(&reqs[i]) {
			qe.Field = fmt.Sprintf("questions[%d].%s", i, qe.Field)
			errs = append(errs, qe)
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	maxPos, err := s.repo.Question().MaxPosition(ctx, nil, quizID)
	if err != nil {
		return nil, fmt.Errorf("failed to get question position: %w", err)
	}

	questions := make([]*models.Question, len(reqs))
	for i := range reqs {
		questions[i] = buildQuestionFromRequest(quizID, &reqs[i], maxPos+1+i)
		questions[i].Position = maxPos + 1 + i
	}

	if err := s.repo.Question().CreateBatch(ctx, nil, questions); err != nil {
		return nil, fmt.Errorf("failed to create questions: %w", err)
	}

	return questions, nil
}

func (s *questionService) ListByQuiz(ctx context.Context, quizID uint, userID string) ([]*models.Question, error) {
	if _, err := s.ownedQuiz(ctx, quizID, userID, "list_questions"); err != nil {
		return nil, err
	}

	questions, err := s.repo.Question().GetByQuiz(ctx, nil, quizID)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	return questions, nil
}

func (s *questionService) Update(ctx context.Context, quizID, questionID uint, req *models.QuestionUpdateRequest, userID string) (*models.Question, error) {
	s.logger.Info("Updating question", "quiz_id", quizID, "question_id", questionID, "user_id", userID)

	if _, err := s.ownedQuiz(ctx, quizID, userID, "update_question"); err != nil {
		return nil, err
	}

	question, err := s.repo.Question().GetByID(ctx, nil, questionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	if question.QuizID != quizID {
		return nil, ErrQuestionNotFound
	}

	if errs := s.validator.GetBusinessValidator().ValidateQuestionUpdate(req, question); len(errs) > 0 {
		return nil, errs
	}

	applyQuestionUpdate(question, req)

	if err := s.repo.Question().Update(ctx, nil, question); err != nil {
		return nil, fmt.Errorf("failed to update question: %w", err)
	}

	return question, nil
}

func (s *questionService) Remove(ctx context.Context, quizID, questionID uint, userID string) error {
	s.logger.Info("Removing question", "quiz_id", quizID, "question_id", questionID, "user_id", userID)

	if _, err := s.ownedQuiz(ctx, quizID, userID, "remove_question"); err != nil {
		return err
	}

	question, err := s.repo.Question().GetByID(ctx, nil, questionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrQuestionNotFound
		}
		return fmt.Errorf("failed to get question: %w", err)
	}
	if question.QuizID != quizID {
		return ErrQuestionNotFound
	}

	if err := s.repo.Question().Delete(ctx, nil, questionID); err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}
	return nil
}

func (s *questionService) Reorder(ctx context.Context, quizID uint, req *models.ReorderQuestionsRequest, userID string) error {
	s.logger.Info("Reordering questions", "quiz_id", quizID, "user_id", userID)

	if err := s.validator.Validate(req); err != nil {
		return err
	}

	if _, err := s.ownedQuiz(ctx, quizID, userID, "reorder_questions"); err != nil {
		return err
	}

	count, err := s.repo.Question().CountByQuiz(ctx, nil, quizID)
	if err != nil {
		return fmt.Errorf("failed to count questions: %w", err)
	}
	if int(count) != len(req.QuestionIDs) {
		return NewBusinessRuleError("reorder_complete", "reorder must include every question of the quiz", map[string]interface{}{
			"expected": count,
			"received": len(req.QuestionIDs),
		})
	}

	if err := s.repo.Question().Reorder(ctx, nil, quizID, req.QuestionIDs); err != nil {
		return fmt.Errorf("failed to reorder questions: %w", err)
	}
	return nil
}

func applyQuestionUpdate(question *models.Question, req *models.QuestionUpdateRequest) {
	if req.Text != nil {
		question.Text = *req.Text
	}
	if req.Options != nil {
		if raw, err := json.Marshal(req.Options); err == nil {
			question.Options = datatypes.JSON(raw)
		}
	}
	if req.Answer != nil {
		question.Answer = *req.Answer
	}
	if req.Marks != nil {
		question.Marks = *req.Marks
	}
	if req.Explanation != nil {
		question.Explanation = req.Explanation
	}
	if req.Position != nil {
		question.Position = *req.Position
	}
}
