package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// IsNotFoundError reports whether err means the requested row does not
// exist, so services can map it to their own sentinel errors.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// Repository aggregates every domain repository behind one handle so
// services can stay storage-agnostic.
type Repository interface {
	Quiz() QuizRepository
	Question() QuestionRepository

	AttemptLink() AttemptLinkRepository
	Attempt() AttemptRepository
	Answer() AnswerRepository

	Student() StudentRepository
	Folder() FolderRepository
	Bookmark() BookmarkRepository

	Email() EmailRepository

	// User identity is read from Casdoor, not Postgres.
	User() UserRepository

	Dashboard() DashboardRepository

	// WithTransaction runs fn with a Repository bound to one transaction.
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	Ping(ctx context.Context) error
	Close() error
}

// RepositoryManager owns the repository lifecycle.
type RepositoryManager interface {
	Initialize() error
	GetRepository() Repository
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
