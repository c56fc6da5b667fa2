package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/quizforge/quiz-service/internal/models"
	"github.com/quizforge/quiz-service/internal/repositories"
	"github.com/quizforge/quiz-service/internal/validator"
)

type quizService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	events    NotificationEventService
}

func NewQuizService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, v *validator.Validator, events NotificationEventService) QuizService {
	return &quizService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: v,
		events:    events,
	}
}

// ===== CORE CRUD =====

func (s *quizService) Create(ctx context.Context, req *models.QuizCreateRequest, creatorID string) (*QuizResponse, error) {
	s.logger.Info("Creating quiz", "title", req.Title, "creator_id", creatorID)

	if errs := s.validator.GetBusinessValidator().ValidateQuizCreate(req); len(errs) > 0 {
		return nil, errs
	}

	exists, err := s.repo.Quiz().ExistsByTitle(ctx, nil, req.Title, creatorID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to check title uniqueness: %w", err)
	}
	if exists {
		return nil, ErrDuplicateTitle
	}

	quiz := s.buildQuizFromRequest(req, creatorID)

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Quiz().Create(ctx, nil, quiz); err != nil {
			return fmt.Errorf("failed to create quiz: %w", err)
		}

		if len(req.Questions) > 0 {
			questions := make([]*models.Question, len(req.Questions))
			for i := range req.Questions {
				questions[i] = buildQuestionFromRequest(quiz.ID, &req.Questions[i], i)
			}
			if err := txRepo.Question().CreateBatch(ctx, nil, questions); err != nil {
				return fmt.Errorf("failed to create questions: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Quiz created", "quiz_id", quiz.ID, "creator_id", creatorID)
	return s.GetByIDWithDetails(ctx, quiz.ID, creatorID)
}

func (s *quizService) GetByID(ctx context.Context, id uint, userID string) (*QuizResponse, error) {
	quiz, err := s.repo.Quiz().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	if err := s.checkOwnership(quiz, userID, "read"); err != nil {
		return nil, err
	}

	return s.buildQuizResponse(ctx, quiz, userID), nil
}

func (s *quizService) GetByIDWithDetails(ctx context.Context, id uint, userID string) (*QuizResponse, error) {
	quiz, err := s.repo.Quiz().GetByIDWithDetails(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz details: %w", err)
	}

	if err := s.checkOwnership(quiz, userID, "read"); err != nil {
		return nil, err
	}

	return s.buildQuizResponse(ctx, quiz, userID), nil
}

func (s *quizService) Update(ctx context.Context, id uint, req *models.QuizUpdateRequest, userID string) (*QuizResponse, error) {
	s.logger.Info("Updating quiz", "quiz_id", id, "user_id", userID)

	quiz, err := s.repo.Quiz().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	if err := s.checkOwnership(quiz, userID, "update"); err != nil {
		return nil, err
	}

	if errs := s.validator.GetBusinessValidator().ValidateQuizUpdate(req, quiz); len(errs) > 0 {
		return nil, errs
	}

	if req.Title != nil && *req.Title != quiz.Title {
		exists, err := s.repo.Quiz().ExistsByTitle(ctx, nil, *req.Title, userID, &id)
		if err != nil {
			return nil, fmt.Errorf("failed to check title uniqueness: %w", err)
		}
		if exists {
			return nil, ErrDuplicateTitle
		}
	}

	applyQuizUpdate(quiz, req)

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Quiz().Update(ctx, nil, quiz); err != nil {
			return fmt.Errorf("failed to update quiz: %w", err)
		}
		if req.Settings != nil {
			return s.applySettingsUpdate(ctx, txRepo, quiz.ID, req.Settings)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetByIDWithDetails(ctx, id, userID)
}

func (s *quizService) Delete(ctx context.Context, id uint, userID string) error {
	s.logger.Info("Deleting quiz", "quiz_id", id, "user_id", userID)

	quiz, err := s.repo.Quiz().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrQuizNotFound
		}
		return fmt.Errorf("failed to get quiz: %w", err)
	}

	if err := s.checkOwnership(quiz, userID, "delete"); err != nil {
		return err
	}

	hasAttempts, err := s.repo.Quiz().HasAttempts(ctx, nil, id)
	if err != nil {
		return fmt.Errorf("failed to check attempts: %w", err)
	}

	if errs := s.validator.GetBusinessValidator().ValidateDeletePermission(hasAttempts, quiz.Status); len(errs) > 0 {
		return errs
	}

	if err := s.repo.Quiz().Delete(ctx, nil, id); err != nil {
		return fmt.Errorf("failed to delete quiz: %w", err)
	}

	s.logger.Info("Quiz deleted", "quiz_id", id)
	return nil
}

// ===== LIST =====

func (s *quizService) List(ctx context.Context, params models.ListQuizzesParams, userID string) (*models.PaginatedResponse, error) {
	filters := quizFiltersFromParams(params, userID)

	quizzes, total, err := s.repo.Quiz().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list quizzes: %w", err)
	}

	bookmarked, err := s.bookmarkedSet(ctx, userID)
	if err != nil {
		s.logger.Warn("Failed to load bookmarks for listing", "user_id", userID, "error", err)
	}

	responses := make([]*QuizResponse, len(quizzes))
	for i, quiz := range quizzes {
		quiz.IsBookmarked = bookmarked[quiz.ID]
		responses[i] = s.buildQuizResponse(ctx, quiz, userID)
	}

	return paginate(responses, len(responses), total, params.Page, params.Size), nil
}

// ===== STATUS & SETTINGS =====

func (s *quizService) UpdateStatus(ctx context.Context, id uint, req *models.ChangeQuizStatusRequest, userID string) error {
	s.logger.Info("Changing quiz status", "quiz_id", id, "status", req.Status, "user_id", userID)

	if err := s.validator.Validate(req); err != nil {
		return err
	}

	quiz, err := s.repo.Quiz().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrQuizNotFound
		}
		return fmt.Errorf("failed to get quiz: %w", err)
	}

	if err := s.checkOwnership(quiz, userID, "change_status"); err != nil {
		return err
	}

	questionCount, err := s.repo.Question().CountByQuiz(ctx, nil, id)
	if err != nil {
		return fmt.Errorf("failed to count questions: %w", err)
	}

	if errs := s.validator.GetBusinessValidator().ValidateStatusTransition(quiz.Status, req.Status, int(questionCount)); len(errs) > 0 {
		return errs
	}

	if err := s.repo.Quiz().UpdateStatus(ctx, nil, id, req.Status); err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	if req.Status == models.QuizStatusActive && s.events != nil {
		quiz.Status = req.Status
		if err := s.events.PublishQuizPublished(ctx, quiz); err != nil {
			s.logger.Error("Failed to publish quiz.published event", "quiz_id", id, "error", err)
		}
	}

	return nil
}

func (s *quizService) UpdateSettings(ctx context.Context, id uint, req *models.QuizSettingsRequest, userID string) error {
	quiz, err := s.repo.Quiz().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrQuizNotFound
		}
		return fmt.Errorf("failed to get quiz: %w", err)
	}

	if err := s.checkOwnership(quiz, userID, "update_settings"); err != nil {
		return err
	}

	return s.applySettingsUpdate(ctx, s.repo, id, req)
}

// Duplicate deep-copies a quiz with its settings and questions into a new
// Draft owned by the same teacher.
func (s *quizService) Duplicate(ctx context.Context, id uint, userID string) (*QuizResponse, error) {
	s.logger.Info("Duplicating quiz", "quiz_id", id, "user_id", userID)

	source, err := s.repo.Quiz().GetByIDWithDetails(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	if err := s.checkOwnership(source, userID, "duplicate"); err != nil {
		return nil, err
	}

	copy := cloneQuiz(source, s.duplicateTitle(ctx, source.Title, userID))

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Quiz().Create(ctx, nil, copy); err != nil {
			return fmt.Errorf("failed to create quiz copy: %w", err)
		}
		if len(source.Questions) > 0 {
			questions := cloneQuestions(copy.ID, source.Questions)
			if err := txRepo.Question().CreateBatch(ctx, nil, questions); err != nil {
				return fmt.Errorf("failed to copy questions: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetByIDWithDetails(ctx, copy.ID, userID)
}

// ===== BOOKMARKS =====

func (s *quizService) ToggleBookmark(ctx context.Context, id uint, userID string) (bool, error) {
	if _, err := s.GetByID(ctx, id, userID); err != nil {
		return false, err
	}

	bookmarked, err := s.repo.Bookmark().IsBookmarked(ctx, nil, userID, id)
	if err != nil {
		return false, fmt.Errorf("failed to check bookmark: %w", err)
	}

	if bookmarked {
		if err := s.repo.Bookmark().Remove(ctx, nil, userID, id); err != nil {
			return false, fmt.Errorf("failed to remove bookmark: %w", err)
		}
		return false, nil
	}

	if err := s.repo.Bookmark().Add(ctx, nil, userID, id); err != nil {
		return false, fmt.Errorf("failed to add bookmark: %w", err)
	}
	return true, nil
}

func (s *quizService) ListBookmarked(ctx context.Context, userID string) ([]*models.Quiz, error) {
	ids, err := s.repo.Bookmark().ListQuizIDs(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}

	quizzes := make([]*models.Quiz, 0, len(ids))
	for _, id := range ids {
		quiz, err := s.repo.Quiz().GetByID(ctx, nil, id)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				continue
			}
			return nil, fmt.Errorf("failed to get bookmarked quiz %d: %w", id, err)
		}
		if quiz.CreatedBy != userID {
			continue
		}
		quiz.IsBookmarked = true
		quizzes = append(quizzes, quiz)
	}
	return quizzes, nil
}

// duplicateTitle finds a free "<title> (copy)" variant.
func (s *quizService) duplicateTitle(ctx context.Context, title, userID string) string {
	candidate := title + " (copy)"
	for i := 2; i <= 20; i++ {
		exists, err := s.repo.Quiz().ExistsByTitle(ctx, nil, candidate, userID, nil)
		if err != nil || !exists {
			return candidate
		}
		candidate = fmt.Sprintf("%s (copy %d)", title, i)
	}
	return fmt.Sprintf("%s (copy %d)", title, time.Now().Unix())
}
