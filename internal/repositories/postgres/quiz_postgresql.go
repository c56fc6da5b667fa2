package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/quizforge/quiz-service/internal/cache"
	"github.com/quizforge/quiz-service/internal/models"
	"github.com/quizforge/quiz-service/internal/repositories"
)

type QuizPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewQuizPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.QuizRepository {
	return &QuizPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

// getDB returns the transaction DB if provided, otherwise the default DB.
func (q *QuizPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return q.db
}

// Create inserts a quiz together with its settings row.
func (q *QuizPostgreSQL) Create(ctx context.Context, tx *gorm.DB, quiz *models.Quiz) error {
	if err := q.getDB(tx).WithContext(ctx).Create(quiz).Error; err != nil {
		return fmt.Errorf("failed to create quiz: %w", err)
	}

	cache.SafeInvalidatePattern(ctx, q.cacheManager.Quiz, "list:*")
	cache.SafeInvalidatePattern(ctx, q.cacheManager.Dashboard, "*")

	return nil
}

// GetByID retrieves a quiz with its settings, via cache.
func (q *QuizPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Quiz, error) {
	cacheKey := fmt.Sprintf("id:%d", id)
	var quiz models.Quiz

	err := q.cacheManager.Quiz.CacheOrExecute(ctx, cacheKey, &quiz, cache.QuizTTL, func() (interface{}, error) {
		var dbQuiz models.Quiz
		err := q.getDB(tx).WithContext(ctx).
			Preload("Settings").
			First(&dbQuiz, id).Error
		if err != nil {
			return nil, err
		}
		return &dbQuiz, nil
	})
	if err != nil {
		return nil, err
	}

	return &quiz, nil
}

// GetByIDWithDetails retrieves a quiz with settings and questions in
// position order, plus the computed counters.
func (q *QuizPostgreSQL) GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.Quiz, error) {
	cacheKey := fmt.Sprintf("id:%d:details", id)
	var quiz models.Quiz

	err := q.cacheManager.Quiz.CacheOrExecute(ctx, cacheKey, &quiz, cache.QuizTTL, func() (interface{}, error) {
		var dbQuiz models.Quiz
		err := q.getDB(tx).WithContext(ctx).
			Preload("Settings").
			Preload("Questions", func(db *gorm.DB) *gorm.DB {
				return db.Order("questions.position ASC")
			}).
			First(&dbQuiz, id).Error
		if err != nil {
			return nil, err
		}

		q.calculateComputedFields(ctx, tx, &dbQuiz)
		return &dbQuiz, nil
	})
	if err != nil {
		return nil, err
	}

	return &quiz, nil
}

// Update writes the mutable quiz columns and bumps the version.
func (q *QuizPostgreSQL) Update(ctx context.Context, tx *gorm.DB, quiz *models.Quiz) error {
	err := q.getDB(tx).WithContext(ctx).
		Model(&models.Quiz{}).
		Where("id = ?", quiz.ID).
		Updates(map[string]interface{}{
			"title":         quiz.Title,
			"description":   quiz.Description,
			"duration":      quiz.Duration,
			"passing_score": quiz.PassingScore,
			"max_warnings":  quiz.MaxWarnings,
			"due_date":      quiz.DueDate,
			"folder_id":     quiz.FolderID,
			"version":       gorm.Expr("version + 1"),
			"updated_at":    time.Now(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update quiz: %w", err)
	}

	q.cacheManager.InvalidateQuiz(ctx, quiz.ID)

	return nil
}

// UpdateStatus transitions a quiz to a new status.
func (q *QuizPostgreSQL) UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.QuizStatus) error {
	err := q.getDB(tx).WithContext(ctx).
		Model(&models.Quiz{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update quiz status: %w", err)
	}

	q.cacheManager.InvalidateQuiz(ctx, id)

	return nil
}

// UpdateSettings upserts the settings row for a quiz.
func (q *QuizPostgreSQL) UpdateSettings(ctx context.Context, tx *gorm.DB, settings *models.QuizSettings) error {
	err := q.getDB(tx).WithContext(ctx).
		Where("quiz_id = ?", settings.QuizID).
		Assign(map[string]interface{}{
			"shuffle_questions":      settings.ShuffleQuestions,
			"shuffle_options":        settings.ShuffleOptions,
			"show_results":           settings.ShowResults,
			"show_correct_answers":   settings.ShowCorrectAnswers,
			"detect_tab_switch":      settings.DetectTabSwitch,
			"detect_copy_paste":      settings.DetectCopyPaste,
			"detect_right_click":     settings.DetectRightClick,
			"auto_submit_on_timeout": settings.AutoSubmitOnTimeout,
			"email_results":          settings.EmailResults,
		}).
		FirstOrCreate(&models.QuizSettings{}, models.QuizSettings{QuizID: settings.QuizID}).Error
	if err != nil {
		return fmt.Errorf("failed to update quiz settings: %w", err)
	}

	q.cacheManager.InvalidateQuiz(ctx, settings.QuizID)

	return nil
}

// Delete hard deletes a quiz; questions and settings cascade.
func (q *QuizPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	if err := q.getDB(tx).WithContext(ctx).Unscoped().Delete(&models.Quiz{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete quiz: %w", err)
	}

	q.cacheManager.InvalidateQuiz(ctx, id)

	return nil
}

// List retrieves quizzes matching the filters with a total count.
func (q *QuizPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.QuizFilters) ([]*models.Quiz, int64, error) {
	query := q.getDB(tx).WithContext(ctx).Model(&models.Quiz{})
	query = q.applyFilters(query, filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count quizzes: %w", err)
	}

	query = ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	var quizzes []*models.Quiz
	if err := query.Preload("Settings").Find(&quizzes).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list quizzes: %w", err)
	}

	for _, quiz := range quizzes {
		q.calculateComputedFields(ctx, tx, quiz)
	}

	return quizzes, total, nil
}

// CountByStatus counts a creator's quizzes per status.
func (q *QuizPostgreSQL) CountByStatus(ctx context.Context, tx *gorm.DB, creatorID string) (map[models.QuizStatus]int64, error) {
	type row struct {
		Status models.QuizStatus
		Count  int64
	}

	var rows []row
	err := q.getDB(tx).WithContext(ctx).
		Model(&models.Quiz{}).
		Select("status, COUNT(*) as count").
		Where("created_by = ?", creatorID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count quizzes by status: %w", err)
	}

	counts := make(map[models.QuizStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// HasAttempts reports whether any attempt exists for the quiz.
func (q *QuizPostgreSQL) HasAttempts(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	count, err := q.helpers.CountAttemptsByQuiz(ctx, tx, id)
	if err != nil {
		return false, fmt.Errorf("failed to check attempts: %w", err)
	}
	return count > 0, nil
}

// ExistsByTitle checks title uniqueness within one creator's quizzes.
func (q *QuizPostgreSQL) ExistsByTitle(ctx context.Context, tx *gorm.DB, title, creatorID string, excludeID *uint) (bool, error) {
	query := q.getDB(tx).WithContext(ctx).
		Model(&models.Quiz{}).
		Where("title = ? AND created_by = ?", title, creatorID)
	if excludeID != nil {
		query = query.Where("id != ?", *excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check title: %w", err)
	}
	return count > 0, nil
}

// ExpireOverdue flips active quizzes whose due date has passed to
// Expired and returns how many rows changed.
func (q *QuizPostgreSQL) ExpireOverdue(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error) {
	result := q.getDB(tx).WithContext(ctx).
		Model(&models.Quiz{}).
		Where("status = ? AND due_date IS NOT NULL AND due_date < ?", models.QuizStatusActive, now).
		Updates(map[string]interface{}{
			"status":     models.QuizStatusExpired,
			"updated_at": now,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to expire quizzes: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		cache.SafeInvalidatePattern(ctx, q.cacheManager.Quiz, "*")
	}

	return result.RowsAffected, nil
}

func (q *QuizPostgreSQL) applyFilters(query *gorm.DB, filters repositories.QuizFilters) *gorm.DB {
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.CreatedBy != nil {
		query = query.Where("created_by = ?", *filters.CreatedBy)
	}
	if filters.FolderID != nil {
		query = query.Where("folder_id = ?", *filters.FolderID)
	}
	if filters.Search != "" {
		query = query.Where("title ILIKE ?", "%"+filters.Search+"%")
	}
	return query
}

func (q *QuizPostgreSQL) calculateComputedFields(ctx context.Context, tx *gorm.DB, quiz *models.Quiz) {
	if count, err := q.helpers.CountQuestionsByQuiz(ctx, tx, quiz.ID); err == nil {
		quiz.QuestionCount = int(count)
	}
	if count, err := q.helpers.CountAttemptsByQuiz(ctx, tx, quiz.ID); err == nil {
		quiz.AttemptCount = int(count)
	}

	// Non-positive marks grade as 1, so the rollup must match.
	var maxMarks *float64
	err := q.getDB(tx).WithContext(ctx).
		Model(&models.Question{}).
		Select("SUM(CASE WHEN marks > 0 THEN marks ELSE 1 END)").
		Where("quiz_id = ?", quiz.ID).
		Scan(&maxMarks).Error
	if err == nil && maxMarks != nil {
		quiz.MaxMarks = *maxMarks
	}
}
