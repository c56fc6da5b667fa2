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

type AttemptPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewAttemptPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.AttemptRepository {
	return &AttemptPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (a *AttemptPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}

func (a *AttemptPostgreSQL) Create(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error {
	if err := a.getDB(tx).WithContext(ctx).Create(attempt).Error; err != nil {
		return fmt.Errorf("failed to create attempt: %w", err)
	}

	a.cacheManager.InvalidateAttempt(ctx, attempt.ID, attempt.QuizID)

	return nil
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	var attempt models.Attempt
	if err := a.getDB(tx).WithContext(ctx).First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

// GetByIDWithDetails loads the attempt with quiz, student and answers
// joined to their questions in position order.
func (a *AttemptPostgreSQL) GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	var attempt models.Attempt
	err := a.getDB(tx).WithContext(ctx).
		Preload("Quiz").
		Preload("Quiz.Settings").
		Preload("Student").
		Preload("Answers", func(db *gorm.DB) *gorm.DB {
			return db.Joins("JOIN questions ON questions.id = answers.question_id").
				Order("questions.position ASC")
		}).
		Preload("Answers.Question").
		Preload("Warnings").
		First(&attempt, id).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// GetOpenByLinkToken finds the in-progress attempt started through a
// link, used to resume rather than double-start.
func (a *AttemptPostgreSQL) GetOpenByLinkToken(ctx context.Context, tx *gorm.DB, token string) (*models.Attempt, error) {
	var attempt models.Attempt
	err := a.getDB(tx).WithContext(ctx).
		Where("link_token = ? AND status = ?", token, models.AttemptInProgress).
		First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// GetLatestByLinkToken finds the newest attempt started through a link
// regardless of status, used by the public result view.
func (a *AttemptPostgreSQL) GetLatestByLinkToken(ctx context.Context, tx *gorm.DB, token string) (*models.Attempt, error) {
	var attempt models.Attempt
	err := a.getDB(tx).WithContext(ctx).
		Where("link_token = ?", token).
		Order("created_at DESC").
		First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// Update persists lifecycle and rollup fields. Answers are written by
// the answer repository, not here.
func (a *AttemptPostgreSQL) Update(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error {
	err := a.getDB(tx).WithContext(ctx).
		Model(&models.Attempt{}).
		Where("id = ?", attempt.ID).
		Updates(map[string]interface{}{
			"status":          attempt.Status,
			"started_at":      attempt.StartedAt,
			"ended_at":        attempt.EndedAt,
			"completed_at":    attempt.CompletedAt,
			"time_spent":      attempt.TimeSpent,
			"warning_count":   attempt.WarningCount,
			"auto_submitted":  attempt.AutoSubmitted,
			"end_reason":      attempt.EndReason,
			"total_marks":     attempt.TotalMarks,
			"max_marks":       attempt.MaxMarks,
			"percentage":      attempt.Percentage,
			"passed":          attempt.Passed,
			"is_graded":       attempt.IsGraded,
			"graded_at":       attempt.GradedAt,
			"processing_time": attempt.ProcessingTime,
			"updated_at":      time.Now(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update attempt: %w", err)
	}

	a.cacheManager.InvalidateAttempt(ctx, attempt.ID, attempt.QuizID)

	return nil
}

func (a *AttemptPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.AttemptFilters) ([]*models.Attempt, int64, error) {
	query := a.getDB(tx).WithContext(ctx).Model(&models.Attempt{})
	query = a.applyFilters(query, filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count attempts: %w", err)
	}

	query = ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	var attempts []*models.Attempt
	if err := query.Preload("Quiz").Preload("Student").Find(&attempts).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list attempts: %w", err)
	}

	return attempts, total, nil
}

// AddWarning appends a warning row and bumps the attempt's counter
// atomically, returning the new count.
func (a *AttemptPostgreSQL) AddWarning(ctx context.Context, tx *gorm.DB, warning *models.Warning) (int, error) {
	db := a.getDB(tx).WithContext(ctx)

	if err := db.Create(warning).Error; err != nil {
		return 0, fmt.Errorf("failed to create warning: %w", err)
	}

	err := db.Model(&models.Attempt{}).
		Where("id = ?", warning.AttemptID).
		UpdateColumn("warning_count", gorm.Expr("warning_count + 1")).Error
	if err != nil {
		return 0, fmt.Errorf("failed to increment warning count: %w", err)
	}

	var count int
	err = db.Model(&models.Attempt{}).
		Select("warning_count").
		Where("id = ?", warning.AttemptID).
		Scan(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to read warning count: %w", err)
	}

	cache.SafeInvalidatePattern(ctx, a.cacheManager.Attempt, fmt.Sprintf("id:%d*", warning.AttemptID))

	return count, nil
}

// ListExpired returns in-progress attempts whose deadline has passed,
// oldest first, for the timeout sweeper.
func (a *AttemptPostgreSQL) ListExpired(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]*models.Attempt, error) {
	query := a.getDB(tx).WithContext(ctx).
		Where("status = ? AND ended_at IS NOT NULL AND ended_at < ?", models.AttemptInProgress, now).
		Order("ended_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var attempts []*models.Attempt
	if err := query.Find(&attempts).Error; err != nil {
		return nil, fmt.Errorf("failed to list expired attempts: %w", err)
	}
	return attempts, nil
}

// GetStats aggregates attempt numbers for one quiz, cached briefly.
func (a *AttemptPostgreSQL) GetStats(ctx context.Context, tx *gorm.DB, quizID uint) (*repositories.AttemptStats, error) {
	cacheKey := fmt.Sprintf("quiz:%d:attempts", quizID)
	var stats repositories.AttemptStats

	err := a.cacheManager.Stats.CacheOrExecute(ctx, cacheKey, &stats, cache.StatsTTL, func() (interface{}, error) {
		db := a.getDB(tx).WithContext(ctx)

		var totalAttempts int64
		if err := db.Model(&models.Attempt{}).Where("quiz_id = ?", quizID).Count(&totalAttempts).Error; err != nil {
			return nil, err
		}

		type statusRow struct {
			Status models.AttemptStatus
			Count  int64
		}
		var statusRows []statusRow
		err := db.Model(&models.Attempt{}).
			Select("status, COUNT(*) as count").
			Where("quiz_id = ?", quizID).
			Group("status").
			Scan(&statusRows).Error
		if err != nil {
			return nil, err
		}

		statusBreakdown := make(map[models.AttemptStatus]int, len(statusRows))
		for _, r := range statusRows {
			statusBreakdown[r.Status] = int(r.Count)
		}

		var avgScore, avgTimeSpent *float64
		var completedCount, passedCount *int64
		row := db.Model(&models.Attempt{}).
			Where("quiz_id = ? AND status = ?", quizID, models.AttemptCompleted).
			Select("AVG(percentage), AVG(time_spent), COUNT(*), SUM(CASE WHEN passed = true THEN 1 ELSE 0 END)").
			Row()
		if err := row.Scan(&avgScore, &avgTimeSpent, &completedCount, &passedCount); err != nil {
			return nil, err
		}

		result := repositories.AttemptStats{
			TotalAttempts:   int(totalAttempts),
			StatusBreakdown: statusBreakdown,
		}
		if avgScore != nil {
			result.AverageScore = *avgScore
		}
		if avgTimeSpent != nil {
			result.AverageTimeSpent = int(*avgTimeSpent)
		}
		if completedCount != nil && *completedCount > 0 {
			if passedCount != nil {
				result.PassRate = float64(*passedCount) / float64(*completedCount)
			}
			if totalAttempts > 0 {
				result.CompletionRate = float64(*completedCount) / float64(totalAttempts)
			}
		}

		return &result, nil
	})
	if err != nil {
		return nil, err
	}

	return &stats, nil
}

func (a *AttemptPostgreSQL) applyFilters(query *gorm.DB, filters repositories.AttemptFilters) *gorm.DB {
	if filters.QuizID != nil {
		query = query.Where("quiz_id = ?", *filters.QuizID)
	}
	if filters.StudentID != nil {
		query = query.Where("student_id = ?", *filters.StudentID)
	}
	if filters.CreatedBy != nil {
		query = query.Where("quiz_id IN (?)",
			a.db.Model(&models.Quiz{}).Select("id").Where("created_by = ?", *filters.CreatedBy))
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.NeedsReview != nil && *filters.NeedsReview {
		query = query.Where("id IN (?)",
			a.db.Model(&models.Answer{}).Select("attempt_id").Where("needs_review = true"))
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}
	return query
}
