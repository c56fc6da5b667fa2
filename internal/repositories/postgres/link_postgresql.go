package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/quizforge/quiz-service/internal/models"
	"github.com/quizforge/quiz-service/internal/repositories"
)

// Links are always fetched by their unique token right before use, so
// there is nothing worth caching here.
type LinkPostgreSQL struct {
	db *gorm.DB
}

func NewLinkPostgreSQL(db *gorm.DB) repositories.AttemptLinkRepository {
	return &LinkPostgreSQL{db: db}
}

func (l *LinkPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return l.db
}

func (l *LinkPostgreSQL) CreateBatch(ctx context.Context, tx *gorm.DB, links []*models.AttemptLink) error {
	if len(links) == 0 {
		return nil
	}
	if err := l.getDB(tx).WithContext(ctx).Create(&links).Error; err != nil {
		return fmt.Errorf("failed to create attempt links: %w", err)
	}
	return nil
}

func (l *LinkPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.AttemptLink, error) {
	var link models.AttemptLink
	err := l.getDB(tx).WithContext(ctx).
		Preload("Quiz").
		Preload("Student").
		First(&link, id).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// GetByToken loads a link with its quiz (and settings) and student, the
// full context the take flow needs.
func (l *LinkPostgreSQL) GetByToken(ctx context.Context, tx *gorm.DB, token string) (*models.AttemptLink, error) {
	var link models.AttemptLink
	err := l.getDB(tx).WithContext(ctx).
		Preload("Quiz").
		Preload("Quiz.Settings").
		Preload("Student").
		Where("token = ?", token).
		First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (l *LinkPostgreSQL) MarkUsed(ctx context.Context, tx *gorm.DB, id uint, usedAt time.Time) error {
	err := l.getDB(tx).WithContext(ctx).
		Model(&models.AttemptLink{}).
		Where("id = ?", id).
		Update("used_at", usedAt).Error
	if err != nil {
		return fmt.Errorf("failed to mark link used: %w", err)
	}
	return nil
}

func (l *LinkPostgreSQL) ListByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) ([]*models.AttemptLink, error) {
	var links []*models.AttemptLink
	err := l.getDB(tx).WithContext(ctx).
		Preload("Student").
		Where("quiz_id = ?", quizID).
		Order("created_at DESC").
		Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list attempt links: %w", err)
	}
	return links, nil
}

// Revoke expires a link immediately by backdating its expiry.
func (l *LinkPostgreSQL) Revoke(ctx context.Context, tx *gorm.DB, id uint) error {
	err := l.getDB(tx).WithContext(ctx).
		Model(&models.AttemptLink{}).
		Where("id = ?", id).
		Update("expires_at", time.Now()).Error
	if err != nil {
		return fmt.Errorf("failed to revoke link: %w", err)
	}
	return nil
}
