package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/quizforge/quiz-service/internal/models"
	"github.com/quizforge/quiz-service/internal/repositories"
)

// The email table is both the outbound queue and the delivery log, so
// reads always want the live row. No cache tier.
type EmailPostgreSQL struct {
	db *gorm.DB
}

func NewEmailPostgreSQL(db *gorm.DB) repositories.EmailRepository {
	return &EmailPostgreSQL{db: db}
}

func (e *EmailPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return e.db
}

func (e *EmailPostgreSQL) Create(ctx context.Context, tx *gorm.DB, message *models.EmailMessage) error {
	if err := e.getDB(tx).WithContext(ctx).Create(message).Error; err != nil {
		return fmt.Errorf("failed to queue email: %w", err)
	}
	return nil
}

func (e *EmailPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.EmailMessage, error) {
	var message models.EmailMessage
	if err := e.getDB(tx).WithContext(ctx).First(&message, id).Error; err != nil {
		return nil, err
	}
	return &message, nil
}

// Update writes the delivery outcome fields.
func (e *EmailPostgreSQL) Update(ctx context.Context, tx *gorm.DB, message *models.EmailMessage) error {
	err := e.getDB(tx).WithContext(ctx).
		Model(&models.EmailMessage{}).
		Where("id = ?", message.ID).
		Updates(map[string]interface{}{
			"status":     message.Status,
			"provider":   message.Provider,
			"attempts":   message.Attempts,
			"last_error": message.LastError,
			"sent_at":    message.SentAt,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update email message: %w", err)
	}
	return nil
}

func (e *EmailPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.EmailFilters) ([]*models.EmailMessage, int64, error) {
	query := e.getDB(tx).WithContext(ctx).Model(&models.EmailMessage{})

	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count email messages: %w", err)
	}

	query = ApplyPaginationAndSort(query, "created_at", "desc", filters.Limit, filters.Offset)

	var messages []*models.EmailMessage
	if err := query.Find(&messages).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list email messages: %w", err)
	}

	return messages, total, nil
}

// ListQueued returns the oldest queued messages, for the worker's
// startup catch-up pass.
func (e *EmailPostgreSQL) ListQueued(ctx context.Context, tx *gorm.DB, limit int) ([]*models.EmailMessage, error) {
	query := e.getDB(tx).WithContext(ctx).
		Where("status = ?", models.EmailQueued).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var messages []*models.EmailMessage
	if err := query.Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("failed to list queued emails: %w", err)
	}
	return messages, nil
}
