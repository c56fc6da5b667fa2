package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/quizforge/quiz-service/internal/models"
	"github.com/quizforge/quiz-service/internal/repositories"
)

// Folders and bookmarks are tiny per-teacher tables; they read fast
// enough without a cache tier.
type FolderPostgreSQL struct {
	db *gorm.DB
}

func NewFolderPostgreSQL(db *gorm.DB) repositories.FolderRepository {
	return &FolderPostgreSQL{db: db}
}

func (f *FolderPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return f.db
}

func (f *FolderPostgreSQL) Create(ctx context.Context, tx *gorm.DB, folder *models.Folder) error {
	if err := f.getDB(tx).WithContext(ctx).Create(folder).Error; err != nil {
		return fmt.Errorf("failed to create folder: %w", err)
	}
	return nil
}

func (f *FolderPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Folder, error) {
	var folder models.Folder
	if err := f.getDB(tx).WithContext(ctx).First(&folder, id).Error; err != nil {
		return nil, err
	}
	return &folder, nil
}

func (f *FolderPostgreSQL) Update(ctx context.Context, tx *gorm.DB, folder *models.Folder) error {
	err := f.getDB(tx).WithContext(ctx).
		Model(&models.Folder{}).
		Where("id = ?", folder.ID).
		Updates(map[string]interface{}{
			"name":        folder.Name,
			"description": folder.Description,
			"color":       folder.Color,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update folder: %w", err)
	}
	return nil
}

// Delete removes the folder; contained quizzes are detached, not
// deleted.
func (f *FolderPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := f.getDB(tx).WithContext(ctx)

	err := db.Model(&models.Quiz{}).
		Where("folder_id = ?", id).
		Update("folder_id", nil).Error
	if err != nil {
		return fmt.Errorf("failed to detach quizzes: %w", err)
	}

	if err := db.Delete(&models.Folder{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete folder: %w", err)
	}
	return nil
}

// ListByCreator returns the creator's folders with their quiz counts.
func (f *FolderPostgreSQL) ListByCreator(ctx context.Context, tx *gorm.DB, creatorID string) ([]*models.Folder, error) {
	var folders []*models.Folder
	err := f.getDB(tx).WithContext(ctx).
		Where("created_by = ?", creatorID).
		Order("name ASC").
		Find(&folders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}

	for _, folder := range folders {
		var count int64
		err := f.getDB(tx).WithContext(ctx).
			Model(&models.Quiz{}).
			Where("folder_id = ?", folder.ID).
			Count(&count).Error
		if err == nil {
			folder.QuizCount = int(count)
		}
	}

	return folders, nil
}

type BookmarkPostgreSQL struct {
	db *gorm.DB
}

func NewBookmarkPostgreSQL(db *gorm.DB) repositories.BookmarkRepository {
	return &BookmarkPostgreSQL{db: db}
}

func (b *BookmarkPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return b.db
}

// Add is idempotent: bookmarking twice keeps one row.
func (b *BookmarkPostgreSQL) Add(ctx context.Context, tx *gorm.DB, userID string, quizID uint) error {
	bookmark := models.Bookmark{UserID: userID, QuizID: quizID}
	err := b.getDB(tx).WithContext(ctx).
		Where("user_id = ? AND quiz_id = ?", userID, quizID).
		FirstOrCreate(&bookmark).Error
	if err != nil {
		return fmt.Errorf("failed to add bookmark: %w", err)
	}
	return nil
}

func (b *BookmarkPostgreSQL) Remove(ctx context.Context, tx *gorm.DB, userID string, quizID uint) error {
	err := b.getDB(tx).WithContext(ctx).
		Where("user_id = ? AND quiz_id = ?", userID, quizID).
		Delete(&models.Bookmark{}).Error
	if err != nil {
		return fmt.Errorf("failed to remove bookmark: %w", err)
	}
	return nil
}

func (b *BookmarkPostgreSQL) IsBookmarked(ctx context.Context, tx *gorm.DB, userID string, quizID uint) (bool, error) {
	var count int64
	err := b.getDB(tx).WithContext(ctx).
		Model(&models.Bookmark{}).
		Where("user_id = ? AND quiz_id = ?", userID, quizID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check bookmark: %w", err)
	}
	return count > 0, nil
}

func (b *BookmarkPostgreSQL) ListQuizIDs(ctx context.Context, tx *gorm.DB, userID string) ([]uint, error) {
	var quizIDs []uint
	err := b.getDB(tx).WithContext(ctx).
		Model(&models.Bookmark{}).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Pluck("quiz_id", &quizIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	return quizIDs, nil
}
