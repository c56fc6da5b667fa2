package services

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/quizforge/quiz-service/internal/models"
	"github.com/quizforge/quiz-service/internal/repositories"
	"github.com/quizforge/quiz-service/internal/validator"
)

type folderService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
}

func NewFolderService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, v *validator.Validator) FolderService {
	return &folderService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: v,
	}
}

func (s *folderService) Create(ctx context.Context, req *models.FolderCreateRequest, creatorID string) (*models.Folder, error) {
	s.logger.Info("Creating folder", "name", req.Name, "user_id", creatorID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	folder := &models.Folder{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
		CreatedBy:   creatorID,
	}

	if err := s.repo.Folder().Create(ctx, nil, folder); err != nil {
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}
	return folder, nil
}

func (s *folderService) GetByID(ctx context.Context, id uint, userID string) (*models.Folder, error) {
	folder, err := s.getOwned(ctx, id, userID, "read")
	if err != nil {
		return nil, err
	}
	return folder, nil
}

func (s *folderService) Update(ctx context.Context, id uint, req *models.FolderUpdateRequest, userID string) (*models.Folder, error) {
	s.logger.Info("Updating folder", "folder_id", id, "user_id", userID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	folder, err := s.getOwned(ctx, id, userID, "update")
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		folder.Name = *req.Name
	}
	if req.Description != nil {
		folder.Description = req.Description
	}
	if req.Color != nil {
		folder.Color = *req.Color
	}

	if err := s.repo.Folder().Update(ctx, nil, folder); err != nil {
		return nil, fmt.Errorf("failed to update folder: %w", err)
	}
	return folder, nil
}

// Delete removes the folder; quizzes inside it survive with FolderID
// cleared by the repository.
func (s *folderService) Delete(ctx context.Context, id uint, userID string) error {
	s.logger.Info("Deleting folder", "folder_id", id, "user_id", userID)

	if _, err := s.getOwned(ctx, id, userID, "delete"); err != nil {
		return err
	}

	if err := s.repo.Folder().Delete(ctx, nil, id); err != nil {
		return fmt.Errorf("failed to delete folder: %w", err)
	}
	return nil
}

func (s *folderService) List(ctx context.Context, userID string) ([]*models.Folder, error) {
	folders, err := s.repo.Folder().ListByCreator(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	return folders, nil
}

func (s *folderService) ListQuizzes(ctx context.Context, folderID uint, userID string) ([]*models.Quiz, error) {
	if _, err := s.getOwned(ctx, folderID, userID, "read"); err != nil {
		return nil, err
	}

	quizzes, _, err := s.repo.Quiz().List(ctx, nil, repositories.QuizFilters{
		CreatedBy: &userID,
		FolderID:  &folderID,
		Limit:     1000,
		SortBy:    "created_at",
		SortOrder: "desc",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list folder quizzes: %w", err)
	}
	return quizzes, nil
}

func (s *folderService) MoveQuiz(ctx context.Context, quizID uint, req *models.MoveQuizRequest, userID string) error {
	s.logger.Info("Moving quiz", "quiz_id", quizID, "user_id", userID)

	quiz, err := s.repo.Quiz().GetByID(ctx, nil, quizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrQuizNotFound
		}
		return fmt.Errorf("failed to get quiz: %w", err)
	}
	if quiz.CreatedBy != userID {
		return NewPermissionError(userID, quizID, "quiz", "move", "not the quiz owner")
	}

	if req.FolderID != nil {
		if _, err := s.getOwned(ctx, *req.FolderID, userID, "move_into"); err != nil {
			return err
		}
	}

	quiz.FolderID = req.FolderID
	if err := s.repo.Quiz().Update(ctx, nil, quiz); err != nil {
		return fmt.Errorf("failed to move quiz: %w", err)
	}
	return nil
}

func (s *folderService) getOwned(ctx context.Context, id uint, userID, action string) (*models.Folder, error) {
	folder, err := s.repo.Folder().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrFolderNotFound
		}
		return nil, fmt.Errorf("failed to get folder: %w", err)
	}
	if folder.CreatedBy != userID {
		return nil, NewPermissionError(userID, id, "folder", action, "not the folder owner")
	}
	return folder, nil
}
