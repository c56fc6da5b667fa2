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

type AnswerPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewAnswerPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.AnswerRepository {
	return &AnswerPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (a *AnswerPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}

// Upsert saves a student's answer, overwriting any earlier value for
// the same question. Autosave hits this repeatedly while the student
// types, so it has to be one statement.
func (a *AnswerPostgreSQL) Upsert(ctx context.Context, tx *gorm.DB, answer *models.Answer) error {
	err := a.getDB(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "time_spent", "updated_at"}),
		}).
		Create(answer).Error
	if err != nil {
		return fmt.Errorf("failed to save answer: %w", err)
	}

	cache.SafeInvalidatePattern(ctx, a.cacheManager.Attempt, fmt.Sprintf("id:%d*", answer.AttemptID))

	return nil
}

func (a *AnswerPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Answer, error) {
	var answer models.Answer
	err := a.getDB(tx).WithContext(ctx).
		Preload("Question").
		First(&answer, id).Error
	if err != nil {
		return nil, err
	}
	return &answer, nil
}

func (a *AnswerPostgreSQL) GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.Answer, error) {
	var answers []*models.Answer
	err := a.getDB(tx).WithContext(ctx).
		Preload("Question").
		Where("attempt_id = ?", attemptID).
		Find(&answers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt answers: %w", err)
	}
	return answers, nil
}

// UpdateGrading writes one answer's grading outcome.
func (a *AnswerPostgreSQL) UpdateGrading(ctx context.Context, tx *gorm.DB, answer *models.Answer) error {
	err := a.getDB(tx).WithContext(ctx).
		Model(&models.Answer{}).
		Where("id = ?", answer.ID).
		Updates(map[string]interface{}{
			"marks":             answer.Marks,
			"max_marks":         answer.MaxMarks,
			"is_correct":        answer.IsCorrect,
			"explanation":       answer.Explanation,
			"confidence":        answer.Confidence,
			"key_points_found":  answer.KeyPointsFound,
			"key_points_missed": answer.KeyPointsMissed,
			"needs_review":      answer.NeedsReview,
			"is_graded":         answer.IsGraded,
			"graded_by":         answer.GradedBy,
			"graded_at":         answer.GradedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update answer grading: %w", err)
	}

	cache.SafeInvalidatePattern(ctx, a.cacheManager.Attempt, fmt.Sprintf("id:%d*", answer.AttemptID))

	return nil
}

// BulkUpdateGrading persists a whole attempt's grading outcome.
func (a *AnswerPostgreSQL) BulkUpdateGrading(ctx context.Context, tx *gorm.DB, answers []*models.Answer) error {
	if len(answers) == 0 {
		return nil
	}

	db := a.getDB(tx).WithContext(ctx)
	for _, answer := range answers {
		err := db.Model(&models.Answer{}).
			Where("id = ?", answer.ID).
			Updates(map[string]interface{}{
				"marks":             answer.Marks,
				"max_marks":         answer.MaxMarks,
				"is_correct":        answer.IsCorrect,
				"explanation":       answer.Explanation,
				"confidence":        answer.Confidence,
				"key_points_found":  answer.KeyPointsFound,
				"key_points_missed": answer.KeyPointsMissed,
				"needs_review":      answer.NeedsReview,
				"is_graded":         answer.IsGraded,
				"graded_by":         answer.GradedBy,
				"graded_at":         answer.GradedAt,
			}).Error
		if err != nil {
			return fmt.Errorf("failed to update answer %d grading: %w", answer.ID, err)
		}
	}

	cache.SafeInvalidatePattern(ctx, a.cacheManager.Attempt, fmt.Sprintf("id:%d*", answers[0].AttemptID))

	return nil
}

// GetGradingStats summarizes grading state across a quiz's answers.
func (a *AnswerPostgreSQL) GetGradingStats(ctx context.Context, tx *gorm.DB, quizID uint) (*repositories.GradingStats, error) {
	cacheKey := fmt.Sprintf("quiz:%d:grading", quizID)
	var stats repositories.GradingStats

	err := a.cacheManager.Stats.CacheOrExecute(ctx, cacheKey, &stats, cache.StatsTTL, func() (interface{}, error) {
		var result repositories.GradingStats

		row := a.getDB(tx).WithContext(ctx).
			Model(&models.Answer{}).
			Joins("JOIN attempts ON attempts.id = answers.attempt_id").
			Where("attempts.quiz_id = ?", quizID).
			Select(`COUNT(*),
				SUM(CASE WHEN answers.is_graded = true THEN 1 ELSE 0 END),
				SUM(CASE WHEN answers.needs_review = true THEN 1 ELSE 0 END),
				SUM(CASE WHEN answers.graded_by = 'auto' THEN 1 ELSE 0 END),
				SUM(CASE WHEN answers.is_graded = true AND answers.graded_by != 'auto' THEN 1 ELSE 0 END),
				COALESCE(AVG(CASE WHEN answers.is_graded = true THEN answers.marks END), 0)`).
			Row()

		var total, graded, pending, auto, manual *int64
		var avgMarks *float64
		if err := row.Scan(&total, &graded, &pending, &auto, &manual, &avgMarks); err != nil {
			return nil, fmt.Errorf("failed to get grading stats: %w", err)
		}

		if total != nil {
			result.TotalAnswers = int(*total)
		}
		if graded != nil {
			result.GradedAnswers = int(*graded)
		}
		if pending != nil {
			result.PendingReview = int(*pending)
		}
		if auto != nil {
			result.AutoGraded = int(*auto)
		}
		if manual != nil {
			result.ManualGraded = int(*manual)
		}
		if avgMarks != nil {
			result.AverageMarks = *avgMarks
		}

		return &result, nil
	})
	if err != nil {
		return nil, err
	}

	return &stats, nil
}
