package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/gorm"

	"github.com/quizforge/quiz-service/internal/models"
	"github.com/quizforge/quiz-service/internal/repositories"
	"github.com/quizforge/quiz-service/internal/validator"
)

type studentService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
}

func NewStudentService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, v *validator.Validator) StudentService {
	return &studentService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: v,
	}
}

func (s *studentService) Create(ctx context.Context, req *models.StudentCreateRequest, creatorID string) (*models.Student, error) {
	s.logger.Info("Creating student", "email", req.Email, "user_id", creatorID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	email := normalizeEmail(req.Email)
	existing, err := s.repo.Student().GetByEmail(ctx, nil, creatorID, email)
	if err != nil && !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to check student email: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateEmail
	}

	student := &models.Student{
		FullName:  strings.TrimSpace(req.FullName),
		Email:     email,
		Group:     req.Group,
		CreatedBy: creatorID,
	}

	if err := s.repo.Student().Create(ctx, nil, student); err != nil {
		return nil, fmt.Errorf("failed to create student: %w", err)
	}
	return student, nil
}

func (s *studentService) GetByID(ctx context.Context, id uint, userID string) (*models.Student, error) {
	return s.getOwned(ctx, id, userID, "read")
}

func (s *studentService) Update(ctx context.Context, id uint, req *models.StudentUpdateRequest, userID string) (*models.Student, error) {
	s.logger.Info("Updating student", "student_id", id, "user_id", userID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	student, err := s.getOwned(ctx, id, userID, "update")
	if err != nil {
		return nil, err
	}

	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		if email != student.Email {
			existing, err := s.repo.Student().GetByEmail(ctx, nil, userID, email)
			if err != nil && !repositories.IsNotFoundError(err) {
				return nil, fmt.Errorf("failed to check student email: %w", err)
			}
			if existing != nil && existing.ID != id {
				return nil, ErrDuplicateEmail
			}
			student.Email = email
		}
	}
	if req.FullName != nil {
		student.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Group != nil {
		student.Group = req.Group
	}

	if err := s.repo.Student().Update(ctx, nil, student); err != nil {
		return nil, fmt.Errorf("failed to update student: %w", err)
	}
	return student, nil
}

func (s *studentService) Delete(ctx context.Context, id uint, userID string) error {
	s.logger.Info("Deleting student", "student_id", id, "user_id", userID)

	if _, err := s.getOwned(ctx, id, userID, "delete"); err != nil {
		return err
	}

	if err := s.repo.Student().Delete(ctx, nil, id); err != nil {
		return fmt.Errorf("failed to delete student: %w", err)
	}
	return nil
}

func (s *studentService) List(ctx context.Context, params models.ListStudentsParams, userID string) (*models.PaginatedResponse, error) {
	size := params.Size
	if size <= 0 {
		size = 20
	}

	filters := repositories.StudentFilters{
		CreatedBy: &userID,
		Search:    params.Search,
		Limit:     size,
		Offset:    params.Page * size,
	}
	if params.Group != "" {
		group := params.Group
		filters.Group = &group
	}

	students, total, err := s.repo.Student().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}

	return paginate(students, len(students), total, params.Page, size), nil
}

// Import creates roster entries in bulk. Rows whose email already exists
// for this teacher are skipped, not treated as errors.
func (s *studentService) Import(ctx context.Context, req *models.StudentImportRequest, userID string) (*ImportResult, error) {
	s.logger.Info("Importing students", "count", len(req.Students), "user_id", userID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	result := &ImportResult{}
	seen := make(map[string]bool, len(req.Students))
	var toCreate []*models.Student

	for i := range req.Students {
		row := &req.Students[i]
		email := normalizeEmail(row.Email)

		if seen[email] {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: duplicate email %s within import", i+1, email))
			continue
		}
		seen[email] = true

		existing, err := s.repo.Student().GetByEmail(ctx, nil, userID, email)
		if err != nil && !repositories.IsNotFoundError(err) {
			return nil, fmt.Errorf("failed to check student email: %w", err)
		}
		if existing != nil {
			result.Skipped++
			continue
		}

		toCreate = append(toCreate, &models.Student{
			FullName:  strings.TrimSpace(row.FullName),
			Email:     email,
			Group:     row.Group,
			CreatedBy: userID,
		})
	}

	if len(toCreate) > 0 {
		if err := s.repo.Student().CreateBatch(ctx, nil, toCreate); err != nil {
			return nil, fmt.Errorf("failed to import students: %w", err)
		}
	}
	result.Created = len(toCreate)

	s.logger.Info("Student import finished", "created", result.Created, "skipped", result.Skipped, "user_id", userID)
	return result, nil
}

func (s *studentService) ListGroups(ctx context.Context, userID string) ([]string, error) {
	groups, err := s.repo.Student().ListGroups(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	return groups, nil
}

func (s *studentService) getOwned(ctx context.Context, id uint, userID, action string) (*models.Student, error) {
	student, err := s.repo.Student().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	if student.CreatedBy != userID {
		return nil, NewPermissionError(userID, id, "student", action, "not the roster owner")
	}
	return student, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
