package services

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/quizforge/quiz-service/internal/config"
	"github.com/quizforge/quiz-service/internal/events"
	"github.com/quizforge/quiz-service/internal/grading"
	"github.com/quizforge/quiz-service/internal/repositories"
	"github.com/quizforge/quiz-service/internal/validator"
)

// ManagerDeps carries everything the service layer is built from. All
// fields are required except Publisher, which falls back to the
// in-process bus when nil.
type ManagerDeps struct {
	Repo      repositories.Repository
	DB        *gorm.DB
	Logger    *slog.Logger
	Validator *validator.Validator
	Config    *config.Config
	Grader    *grading.AttemptGrader
	Metrics   grading.Recorder
	Publisher events.EventPublisher
}

type serviceManager struct {
	deps        ManagerDeps
	initialized bool

	quiz      QuizService
	question  QuestionService
	folder    FolderService
	student   StudentService
	attempt   AttemptService
	grading   GradingService
	export    ExportService
	email     EmailService
	events    NotificationEventService
	dashboard DashboardService
}

func NewServiceManager(deps ManagerDeps) ServiceManager {
	return &serviceManager{deps: deps}
}

// Initialize wires the services in dependency order: events first, then
// email and grading, then the attempt flow that fans out to all three.
func (m *serviceManager) Initialize(ctx context.Context) error {
	if m.initialized {
		return nil
	}

	d := m.deps
	if d.Repo == nil || d.Logger == nil || d.Validator == nil || d.Config == nil || d.Grader == nil {
		return fmt.Errorf("service manager: missing required dependencies")
	}

	publisher := d.Publisher
	if publisher == nil {
		publisher = events.NewChannelBus(d.Logger)
		m.deps.Publisher = publisher
	}

	m.events = NewNotificationEventService(publisher, d.Logger)
	m.email = NewEmailService(d.Repo, d.Logger, d.Config.Email, m.events)
	m.grading = NewGradingService(d.Repo, d.DB, d.Logger, d.Validator, d.Grader, d.Metrics)

	m.quiz = NewQuizService(d.Repo, d.DB, d.Logger, d.Validator, m.events)
	m.question = NewQuestionService(d.Repo, d.DB, d.Logger, d.Validator)
	m.folder = NewFolderService(d.Repo, d.DB, d.Logger, d.Validator)
	m.student = NewStudentService(d.Repo, d.DB, d.Logger, d.Validator)
	m.attempt = NewAttemptService(d.Repo, d.DB, d.Logger, d.Validator, m.grading, m.events, m.email)
	m.export = NewExportService(d.Repo, d.DB, d.Logger)
	m.dashboard = NewDashboardService(d.Repo, d.DB, d.Logger)

	m.initialized = true
	d.Logger.Info("Service manager initialized")
	return nil
}

func (m *serviceManager) HealthCheck(ctx context.Context) error {
	if !m.initialized {
		return fmt.Errorf("service manager not initialized")
	}
	if err := m.deps.Repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}
	return nil
}

func (m *serviceManager) Shutdown(ctx context.Context) error {
	if !m.initialized {
		return nil
	}
	if m.deps.Publisher != nil {
		if err := m.deps.Publisher.Close(); err != nil {
			return fmt.Errorf("failed to close event publisher: %w", err)
		}
	}
	m.deps.Logger.Info("Service manager shut down")
	return nil
}

func (m *serviceManager) Quiz() QuizService {
	m.mustBeInitialized()
	return m.quiz
}

func (m *serviceManager) Question() QuestionService {
	m.mustBeInitialized()
	return m.question
}

func (m *serviceManager) Folder() FolderService {
	m.mustBeInitialized()
	return m.folder
}

func (m *serviceManager) Student() StudentService {
	m.mustBeInitialized()
	return m.student
}

func (m *serviceManager) Attempt() AttemptService {
	m.mustBeInitialized()
	return m.attempt
}

func (m *serviceManager) Grading() GradingService {
	m.mustBeInitialized()
	return m.grading
}

func (m *serviceManager) Export() ExportService {
	m.mustBeInitialized()
	return m.export
}

func (m *serviceManager) Email() EmailService {
	m.mustBeInitialized()
	return m.email
}

func (m *serviceManager) Events() NotificationEventService {
	m.mustBeInitialized()
	return m.events
}

func (m *serviceManager) Dashboard() DashboardService {
	m.mustBeInitialized()
	return m.dashboard
}

func (m *serviceManager) mustBeInitialized() {
	if !m.initialized {
		panic("service manager used before Initialize")
	}
}
