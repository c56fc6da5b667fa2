package postgres

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quizforge/quiz-service/internal/cache"
	"github.com/quizforge/quiz-service/internal/models"
	"github.com/quizforge/quiz-service/internal/repositories"
)

type StudentPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewStudentPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.StudentRepository {
	return &StudentPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (s *StudentPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

func (s *StudentPostgreSQL) Create(ctx context.Context, tx *gorm.DB, student *models.Student) error {
	if err := s.getDB(tx).WithContext(ctx).Create(student).Error; err != nil {
		return fmt.Errorf("failed to create student: %w", err)
	}

	cache.SafeInvalidatePattern(ctx, s.cacheManager.Student, "list:*")

	return nil
}

// CreateBatch imports a roster. Rows whose email already exists for
// this creator are skipped rather than failing the batch.
func (s *StudentPostgreSQL) CreateBatch(ctx context.Context, tx *gorm.DB, students []*models.Student) error {
	if len(students) == 0 {
		return nil
	}

	err := s.getDB(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "created_by"}, {Name: "email"}},
			DoNothing: true,
		}).
		Create(&students).Error
	if err != nil {
		return fmt.Errorf("failed to import students: %w", err)
	}

	cache.SafeInvalidatePattern(ctx, s.cacheManager.Student, "list:*")

	return nil
}

func (s *StudentPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Student, error) {
	var student models.Student
	if err := s.getDB(tx).WithContext(ctx).First(&student, id).Error; err != nil {
		return nil, err
	}
	return &student, nil
}

func (s *StudentPostgreSQL) GetByEmail(ctx context.Context, tx *gorm.DB, creatorID, email string) (*models.Student, error) {
	var student models.Student
	err := s.getDB(tx).WithContext(ctx).
		Where("created_by = ? AND email = ?", creatorID, email).
		First(&student).Error
	if err != nil {
		return nil, err
	}
	return &student, nil
}

func (s *StudentPostgreSQL) Update(ctx context.Context, tx *gorm.DB, student *models.Student) error {
	err := s.getDB(tx).WithContext(ctx).
		Model(&models.Student{}).
		Where("id = ?", student.ID).
		Updates(map[string]interface{}{
			"full_name": student.FullName,
			"email":     student.Email,
			"group":     student.Group,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update student: %w", err)
	}

	s.cacheManager.InvalidateStudent(ctx, student.ID)

	return nil
}

// Delete soft deletes a student; their attempts stay on record.
func (s *StudentPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	if err := s.getDB(tx).WithContext(ctx).Delete(&models.Student{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete student: %w", err)
	}

	s.cacheManager.InvalidateStudent(ctx, id)

	return nil
}

func (s *StudentPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.StudentFilters) ([]*models.Student, int64, error) {
	query := s.getDB(tx).WithContext(ctx).Model(&models.Student{})

	if filters.CreatedBy != nil {
		query = query.Where("created_by = ?", *filters.CreatedBy)
	}
	if filters.Group != nil {
		query = query.Where(`"group" = ?`, *filters.Group)
	}
	if filters.Search != "" {
		pattern := "%" + filters.Search + "%"
		query = query.Where("full_name ILIKE ? OR email ILIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count students: %w", err)
	}

	query = ApplyPaginationAndSort(query, "full_name", "asc", filters.Limit, filters.Offset)

	var students []*models.Student
	if err := query.Find(&students).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list students: %w", err)
	}

	// Attempt counts for the roster view.
	for _, student := range students {
		var count int64
		err := s.getDB(tx).WithContext(ctx).
			Model(&models.Attempt{}).
			Where("student_id = ?", student.ID).
			Count(&count).Error
		if err == nil {
			student.AttemptCount = int(count)
		}
	}

	return students, total, nil
}

// ListGroups returns the distinct group names a creator has used.
func (s *StudentPostgreSQL) ListGroups(ctx context.Context, tx *gorm.DB, creatorID string) ([]string, error) {
	var groups []string
	err := s.getDB(tx).WithContext(ctx).
		Model(&models.Student{}).
		Distinct(`"group"`).
		Where(`created_by = ? AND "group" IS NOT NULL AND "group" != ''`, creatorID).
		Order(`"group" ASC`).
		Pluck(`"group"`, &groups).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	return groups, nil
}
