package postgres

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/quizforge/quiz-service/internal/cache"
	"github.com/quizforge/quiz-service/internal/models"
	"github.com/quizforge/quiz-service/internal/repositories"
)

type QuestionPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewQuestionPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.QuestionRepository {
	return &QuestionPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (q *QuestionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return q.db
}

func (q *QuestionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	if err := q.getDB(tx).WithContext(ctx).Create(question).Error; err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}

	q.invalidate(ctx, question.QuizID)

	return nil
}

func (q *QuestionPostgreSQL) CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.Question) error {
	if len(questions) == 0 {
		return nil
	}
	if err := q.getDB(tx).WithContext(ctx).Create(&questions).Error; err != nil {
		return fmt.Errorf("failed to create questions: %w", err)
	}

	q.invalidate(ctx, questions[0].QuizID)

	return nil
}

func (q *QuestionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	var question models.Question
	if err := q.getDB(tx).WithContext(ctx).First(&question, id).Error; err != nil {
		return nil, err
	}
	return &question, nil
}

// GetByQuiz returns the quiz's questions in position order, via cache.
func (q *QuestionPostgreSQL) GetByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) ([]*models.Question, error) {
	cacheKey := fmt.Sprintf("quiz:%d", quizID)
	var questions []*models.Question

	err := q.cacheManager.Question.CacheOrExecute(ctx, cacheKey, &questions, cache.QuestionTTL, func() (interface{}, error) {
		var dbQuestions []*models.Question
		err := q.getDB(tx).WithContext(ctx).
			Where("quiz_id = ?", quizID).
			Order("position ASC").
			Find(&dbQuestions).Error
		if err != nil {
			return nil, fmt.Errorf("failed to get quiz questions: %w", err)
		}
		return dbQuestions, nil
	})
	if err != nil {
		return nil, err
	}

	return questions, nil
}

func (q *QuestionPostgreSQL) Update(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	err := q.getDB(tx).WithContext(ctx).
		Model(&models.Question{}).
		Where("id = ?", question.ID).
		Updates(map[string]interface{}{
			"text":        question.Text,
			"options":     question.Options,
			"answer":      question.Answer,
			"marks":       question.Marks,
			"explanation": question.Explanation,
			"position":    question.Position,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update question: %w", err)
	}

	q.invalidate(ctx, question.QuizID)

	return nil
}

func (q *QuestionPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	var question models.Question
	if err := q.getDB(tx).WithContext(ctx).Select("id, quiz_id").First(&question, id).Error; err != nil {
		return err
	}

	if err := q.getDB(tx).WithContext(ctx).Delete(&models.Question{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}

	q.invalidate(ctx, question.QuizID)

	return nil
}

// Reorder rewrites the position column to match the given ID order.
func (q *QuestionPostgreSQL) Reorder(ctx context.Context, tx *gorm.DB, quizID uint, questionIDs []uint) error {
	db := q.getDB(tx).WithContext(ctx)

	for position, id := range questionIDs {
		err := db.Model(&models.Question{}).
			Where("id = ? AND quiz_id = ?", id, quizID).
			Update("position", position).Error
		if err != nil {
			return fmt.Errorf("failed to reorder question %d: %w", id, err)
		}
	}

	q.invalidate(ctx, quizID)

	return nil
}

func (q *QuestionPostgreSQL) CountByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) (int64, error) {
	var count int64
	err := q.getDB(tx).WithContext(ctx).
		Model(&models.Question{}).
		Where("quiz_id = ?", quizID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count questions: %w", err)
	}
	return count, nil
}

// SumMarks totals the quiz's maximum achievable marks, counting
// non-positive marks as 1 the way the grader does.
func (q *QuestionPostgreSQL) SumMarks(ctx context.Context, tx *gorm.DB, quizID uint) (float64, error) {
	var sum *float64
	err := q.getDB(tx).WithContext(ctx).
		Model(&models.Question{}).
		Select("SUM(CASE WHEN marks > 0 THEN marks ELSE 1 END)").
		Where("quiz_id = ?", quizID).
		Scan(&sum).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum marks: %w", err)
	}
	if sum == nil {
		return 0, nil
	}
	return *sum, nil
}

func (q *QuestionPostgreSQL) MaxPosition(ctx context.Context, tx *gorm.DB, quizID uint) (int, error) {
	var max *int
	err := q.getDB(tx).WithContext(ctx).
		Model(&models.Question{}).
		Select("MAX(position)").
		Where("quiz_id = ?", quizID).
		Scan(&max).Error
	if err != nil {
		return 0, fmt.Errorf("failed to get max position: %w", err)
	}
	if max == nil {
		return -1, nil
	}
	return *max, nil
}

func (q *QuestionPostgreSQL) invalidate(ctx context.Context, quizID uint) {
	cache.SafeInvalidatePattern(ctx, q.cacheManager.Question, fmt.Sprintf("quiz:%d*", quizID))
	cache.SafeInvalidatePattern(ctx, q.cacheManager.Quiz, fmt.Sprintf("id:%d*", quizID))
	cache.SafeInvalidatePattern(ctx, q.cacheManager.Stats, fmt.Sprintf("quiz:%d*", quizID))
}
