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

type dashboardRepository struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewDashboardRepository(db *gorm.DB, redisClient *redis.Client) repositories.DashboardRepository {
	return &dashboardRepository{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (r *dashboardRepository) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

// GetSummary assembles the teacher's overview page in one call, cached
// briefly because every number churns with each submission.
func (r *dashboardRepository) GetSummary(ctx context.Context, tx *gorm.DB, creatorID string) (*models.DashboardSummary, error) {
	cacheKey := fmt.Sprintf("summary:%s", creatorID)
	var summary models.DashboardSummary

	err := r.cacheManager.Dashboard.CacheOrExecute(ctx, cacheKey, &summary, cache.DashboardTTL, func() (interface{}, error) {
		db := r.getDB(tx).WithContext(ctx)
		result := models.DashboardSummary{
			QuizzesByStatus: make(map[string]int64),
		}

		if err := db.Model(&models.Quiz{}).
			Where("created_by = ?", creatorID).
			Count(&result.TotalQuizzes).Error; err != nil {
			return nil, fmt.Errorf("failed to count quizzes: %w", err)
		}

		type statusRow struct {
			Status string
			Count  int64
		}
		var statusRows []statusRow
		if err := db.Model(&models.Quiz{}).
			Select("status, COUNT(*) as count").
			Where("created_by = ?", creatorID).
			Group("status").
			Scan(&statusRows).Error; err != nil {
			return nil, fmt.Errorf("failed to count quizzes by status: %w", err)
		}
		for _, row := range statusRows {
			result.QuizzesByStatus[row.Status] = row.Count
		}

		if err := db.Model(&models.Student{}).
			Where("created_by = ?", creatorID).
			Count(&result.TotalStudents).Error; err != nil {
			return nil, fmt.Errorf("failed to count students: %w", err)
		}

		today := time.Now().Truncate(24 * time.Hour)
		if err := db.Model(&models.Attempt{}).
			Joins("JOIN quizzes ON quizzes.id = attempts.quiz_id").
			Where("quizzes.created_by = ? AND attempts.created_at >= ?", creatorID, today).
			Count(&result.AttemptsToday).Error; err != nil {
			return nil, fmt.Errorf("failed to count today's attempts: %w", err)
		}

		var avgScore *float64
		var completed, passed *int64
		row := db.Model(&models.Attempt{}).
			Joins("JOIN quizzes ON quizzes.id = attempts.quiz_id").
			Where("quizzes.created_by = ? AND attempts.status = ?", creatorID, models.AttemptCompleted).
			Select("AVG(attempts.percentage), COUNT(*), SUM(CASE WHEN attempts.passed = true THEN 1 ELSE 0 END)").
			Row()
		if err := row.Scan(&avgScore, &completed, &passed); err != nil {
			return nil, fmt.Errorf("failed to aggregate attempt scores: %w", err)
		}
		if avgScore != nil {
			result.AverageScore = *avgScore
		}
		if completed != nil && *completed > 0 && passed != nil {
			result.PassRate = float64(*passed) / float64(*completed) * 100
		}

		if err := db.Model(&models.Answer{}).
			Joins("JOIN attempts ON attempts.id = answers.attempt_id").
			Joins("JOIN quizzes ON quizzes.id = attempts.quiz_id").
			Where("quizzes.created_by = ? AND answers.needs_review = true", creatorID).
			Count(&result.PendingReviews).Error; err != nil {
			return nil, fmt.Errorf("failed to count pending reviews: %w", err)
		}

		recent, err := r.GetRecentAttempts(ctx, tx, creatorID, 10)
		if err != nil {
			return nil, err
		}
		result.RecentAttempts = recent

		return &result, nil
	})
	if err != nil {
		return nil, err
	}

	return &summary, nil
}

// GetQuizStats aggregates per-quiz results for the teacher's results
// page.
func (r *dashboardRepository) GetQuizStats(ctx context.Context, tx *gorm.DB, quizID uint) (*models.QuizStats, error) {
	cacheKey := fmt.Sprintf("quiz:%d:summary", quizID)
	var stats models.QuizStats

	err := r.cacheManager.Stats.CacheOrExecute(ctx, cacheKey, &stats, cache.StatsTTL, func() (interface{}, error) {
		db := r.getDB(tx).WithContext(ctx)
		var result models.QuizStats

		if err := db.Model(&models.Attempt{}).
			Where("quiz_id = ?", quizID).
			Count(&result.TotalAttempts).Error; err != nil {
			return nil, fmt.Errorf("failed to count attempts: %w", err)
		}

		var avgMarks, avgPercent, avgTime *float64
		var completed, passed *int64
		row := db.Model(&models.Attempt{}).
			Where("quiz_id = ? AND status = ?", quizID, models.AttemptCompleted).
			Select("AVG(total_marks), AVG(percentage), AVG(time_spent), COUNT(*), SUM(CASE WHEN passed = true THEN 1 ELSE 0 END)").
			Row()
		if err := row.Scan(&avgMarks, &avgPercent, &avgTime, &completed, &passed); err != nil {
			return nil, fmt.Errorf("failed to aggregate quiz attempts: %w", err)
		}

		if completed != nil {
			result.CompletedAttempts = *completed
		}
		if avgMarks != nil {
			result.AverageScore = *avgMarks
		}
		if avgPercent != nil {
			result.AveragePercent = *avgPercent
		}
		if avgTime != nil {
			result.AverageTimeSpent = int(*avgTime)
		}
		if completed != nil && *completed > 0 && passed != nil {
			result.PassRate = float64(*passed) / float64(*completed) * 100
		}

		if err := db.Model(&models.Answer{}).
			Joins("JOIN attempts ON attempts.id = answers.attempt_id").
			Where("attempts.quiz_id = ? AND answers.needs_review = true", quizID).
			Count(&result.PendingReviews).Error; err != nil {
			return nil, fmt.Errorf("failed to count pending reviews: %w", err)
		}

		return &result, nil
	})
	if err != nil {
		return nil, err
	}

	return &stats, nil
}

// GetRecentAttempts lists the creator's latest attempts, newest first.
func (r *dashboardRepository) GetRecentAttempts(ctx context.Context, tx *gorm.DB, creatorID string, limit int) ([]models.AttemptSummary, error) {
	if limit <= 0 {
		limit = 10
	}

	var attempts []*models.Attempt
	err := r.getDB(tx).WithContext(ctx).
		Joins("JOIN quizzes ON quizzes.id = attempts.quiz_id").
		Where("quizzes.created_by = ?", creatorID).
		Order("attempts.created_at DESC").
		Limit(limit).
		Preload("Quiz").
		Preload("Student").
		Find(&attempts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list recent attempts: %w", err)
	}

	summaries := make([]models.AttemptSummary, 0, len(attempts))
	for _, attempt := range attempts {
		summary := models.AttemptSummary{
			AttemptID:     attempt.ID,
			QuizID:        attempt.QuizID,
			Status:        string(attempt.Status),
			TotalMarks:    attempt.TotalMarks,
			MaxMarks:      attempt.MaxMarks,
			Percentage:    attempt.Percentage,
			Passed:        attempt.Passed,
			WarningCount:  attempt.WarningCount,
			AutoSubmitted: attempt.AutoSubmitted,
			StartedAt:     attempt.StartedAt,
			CompletedAt:   attempt.CompletedAt,
		}
		if attempt.Quiz != nil {
			summary.QuizTitle = attempt.Quiz.Title
		}
		if attempt.Student != nil {
			summary.StudentName = attempt.Student.FullName
			summary.StudentEmail = attempt.Student.Email
		}
		summaries = append(summaries, summary)
	}

	return summaries, nil
}
