package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quizforge/quiz-service/internal/models"
	"github.com/quizforge/quiz-service/internal/repositories"
	"github.com/quizforge/quiz-service/internal/validator"
)

type attemptService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	grading   GradingService
	events    NotificationEventService
	email     EmailService
}

func NewAttemptService(
	repo repositories.Repository,
	db *gorm.DB,
	logger *slog.Logger,
	v *validator.Validator,
	gradingService GradingService,
	events NotificationEventService,
	emailService EmailService,
) AttemptService {
	return &attemptService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: v,
		grading:   gradingService,
		events:    events,
		email:     emailService,
	}
}

// ===== TEACHER SIDE: LINK MANAGEMENT =====

func (s *attemptService) IssueLinks(ctx context.Context, quizID uint, req *models.IssueLinkRequest, userID string) ([]*models.AttemptLink, error) {
	s.logger.Info("Issuing attempt links", "quiz_id", quizID, "students", len(req.StudentIDs), "user_id", userID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	quiz, err := s.ownedQuiz(ctx, quizID, userID, "issue_links")
	if err != nil {
		return nil, err
	}

	students := make([]*models.Student, 0, len(req.StudentIDs))
	for _, studentID := range req.StudentIDs {
		student, err := s.repo.Student().GetByID(ctx, nil, studentID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return nil, ErrStudentNotFound
			}
			return nil, fmt.Errorf("failed to get student: %w", err)
		}
		if student.CreatedBy != userID {
			return nil, NewPermissionError(userID, studentID, "student", "issue_link", "not the roster owner")
		}
		students = append(students, student)
	}

	links := make([]*models.AttemptLink, len(students))
	for i, student := range students {
		links[i] = &models.AttemptLink{
			Token:     uuid.NewString(),
			QuizID:    quizID,
			StudentID: student.ID,
			CreatedBy: userID,
			ExpiresAt: req.ExpiresAt,
		}
	}

	if err := s.repo.AttemptLink().CreateBatch(ctx, nil, links); err != nil {
		return nil, fmt.Errorf("failed to create attempt links: %w", err)
	}

	if req.SendEmail {
		for i, link := range links {
			if err := s.email.Enqueue(ctx, buildInviteEmail(quiz, students[i], link)); err != nil {
				s.logger.Warn("Failed to enqueue invite email",
					"link_id", link.ID, "student_id", students[i].ID, "error", err)
			}
		}
	}

	return links, nil
}

func (s *attemptService) ListLinks(ctx context.Context, quizID uint, userID string) ([]*models.AttemptLink, error) {
	if _, err := s.ownedQuiz(ctx, quizID, userID, "list_links"); err != nil {
		return nil, err
	}

	links, err := s.repo.AttemptLink().ListByQuiz(ctx, nil, quizID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempt links: %w", err)
	}
	return links, nil
}

func (s *attemptService) RevokeLink(ctx context.Context, linkID uint, userID string) error {
	s.logger.Info("Revoking attempt link", "link_id", linkID, "user_id", userID)

	link, err := s.repo.AttemptLink().GetByID(ctx, nil, linkID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrLinkNotFound
		}
		return fmt.Errorf("failed to get attempt link: %w", err)
	}
	if link.CreatedBy != userID {
		return NewPermissionError(userID, linkID, "attempt_link", "revoke", "not the link issuer")
	}

	if err := s.repo.AttemptLink().Revoke(ctx, nil, linkID); err != nil {
		return fmt.Errorf("failed to revoke attempt link: %w", err)
	}
	return nil
}

// ===== STUDENT SIDE: TAKE FLOW =====

// Resolve exchanges a link token for a runnable attempt. A student who
// reopens the page mid-attempt resumes the existing one with their saved
// answers instead of starting over.
func (s *attemptService) Resolve(ctx context.Context, token, clientIP, userAgent string) (*TakeQuizResponse, error) {
	link, err := s.repo.AttemptLink().GetByToken(ctx, nil, token)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to resolve link: %w", err)
	}
	quiz := link.Quiz

	open, err := s.repo.Attempt().GetOpenByLinkToken(ctx, nil, token)
	if err != nil && !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to check open attempt: %w", err)
	}
	if open != nil {
		if open.DeadlinePassed(time.Now()) {
			s.closeAttempt(ctx, open, models.AttemptTimeOut, models.AttemptEndReasonTimeout, true)
			return nil, ErrAttemptSubmitted
		}
		return s.buildTakeResponse(ctx, open, quiz, true)
	}

	if link.UsedAt != nil {
		return nil, ErrAttemptSubmitted
	}
	if errs := s.validator.GetBusinessValidator().ValidateAttemptStart(quiz.Status, quiz.DueDate, link.ExpiresAt, false); len(errs) > 0 {
		return nil, errs
	}

	now := time.Now()
	deadline := now.Add(time.Duration(quiz.Duration) * time.Minute)
	if quiz.DueDate != nil && quiz.DueDate.Before(deadline) {
		deadline = *quiz.DueDate
	}

	attempt := &models.Attempt{
		QuizID:    quiz.ID,
		StudentID: link.StudentID,
		LinkToken: token,
		Status:    models.AttemptInProgress,
		StartedAt: &now,
		EndedAt:   &deadline,
		IPAddress: clientIP,
		UserAgent: userAgent,
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Attempt().Create(ctx, nil, attempt); err != nil {
			return fmt.Errorf("failed to create attempt: %w", err)
		}
		if err := txRepo.AttemptLink().MarkUsed(ctx, nil, link.ID, now); err != nil {
			return fmt.Errorf("failed to mark link used: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.events.PublishAttemptStarted(ctx, attempt); err != nil {
		s.logger.Warn("Failed to publish attempt started event", "attempt_id", attempt.ID, "error", err)
	}

	s.logger.Info("Attempt started",
		"attempt_id", attempt.ID, "quiz_id", quiz.ID, "student_id", link.StudentID)

	return s.buildTakeResponse(ctx, attempt, quiz, false)
}

func (s *attemptService) SaveAnswer(ctx context.Context, token string, req *models.SaveAnswerRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}

	attempt, err := s.openAttempt(ctx, token)
	if err != nil {
		return err
	}

	question, err := s.repo.Question().GetByID(ctx, nil, req.QuestionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrQuestionNotFound
		}
		return fmt.Errorf("failed to get question: %w", err)
	}
	if question.QuizID != attempt.QuizID {
		return ErrQuestionNotFound
	}

	answer := &models.Answer{
		AttemptID:  attempt.ID,
		QuestionID: req.QuestionID,
		Value:      req.Value,
		TimeSpent:  req.TimeSpent,
	}
	if err := s.repo.Answer().Upsert(ctx, nil, answer); err != nil {
		return fmt.Errorf("failed to save answer: %w", err)
	}
	return nil
}

// RecordWarning logs one proctoring violation. Hitting the quiz's
// warning limit force-submits the attempt on the spot.
func (s *attemptService) RecordWarning(ctx context.Context, token string, req *models.ReportWarningRequest) (*WarningResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	attempt, err := s.openAttempt(ctx, token)
	if err != nil {
		return nil, err
	}

	quiz, err := s.repo.Quiz().GetByID(ctx, nil, attempt.QuizID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	warning := &models.Warning{
		AttemptID: attempt.ID,
		Kind:      req.Kind,
		Detail:    req.Detail,
	}
	count, err := s.repo.Attempt().AddWarning(ctx, nil, warning)
	if err != nil {
		return nil, fmt.Errorf("failed to record warning: %w", err)
	}
	attempt.WarningCount = count

	if err := s.events.PublishWarningRecorded(ctx, attempt, warning); err != nil {
		s.logger.Warn("Failed to publish warning event", "attempt_id", attempt.ID, "error", err)
	}

	s.logger.Info("Warning recorded",
		"attempt_id", attempt.ID, "kind", req.Kind, "count", count, "max", quiz.MaxWarnings)

	response := &WarningResponse{
		WarningCount: count,
		MaxWarnings:  quiz.MaxWarnings,
	}
	if remaining := quiz.MaxWarnings - count; remaining > 0 {
		response.Remaining = remaining
		return response, nil
	}

	s.closeAttempt(ctx, attempt, models.AttemptCompleted, models.AttemptEndReasonMaxWarnings, true)
	response.ForceSubmitted = true
	return response, nil
}

func (s *attemptService) Submit(ctx context.Context, token string, req *models.SubmitAttemptRequest) (*AttemptResultResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	attempt, err := s.openAttempt(ctx, token)
	if err != nil {
		return nil, err
	}

	for i := range req.Answers {
		answer := &models.Answer{
			AttemptID:  attempt.ID,
			QuestionID: req.Answers[i].QuestionID,
			Value:      req.Answers[i].Value,
			TimeSpent:  req.Answers[i].TimeSpent,
		}
		if err := s.repo.Answer().Upsert(ctx, nil, answer); err != nil {
			return nil, fmt.Errorf("failed to save answer: %w", err)
		}
	}
	if req.TimeSpent > 0 {
		attempt.TimeSpent = req.TimeSpent
	}

	s.closeAttempt(ctx, attempt, models.AttemptCompleted, models.AttemptEndReasonSubmitted, false)

	graded, err := s.repo.Attempt().GetByIDWithDetails(ctx, nil, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload attempt: %w", err)
	}
	return s.buildResultResponse(graded, graded.Quiz), nil
}

func (s *attemptService) GetResult(ctx context.Context, token string) (*AttemptResultResponse, error) {
	link, err := s.repo.AttemptLink().GetByToken(ctx, nil, token)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to resolve link: %w", err)
	}

	attempt, err := s.repo.Attempt().GetLatestByLinkToken(ctx, nil, token)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	if attempt.IsOpen() || !attempt.IsGraded {
		return nil, ErrAttemptNotGraded
	}
	if link.Quiz != nil && link.Quiz.Settings != nil && !link.Quiz.Settings.ShowResults {
		return nil, ErrResultsHidden
	}

	detailed, err := s.repo.Attempt().GetByIDWithDetails(ctx, nil, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load attempt details: %w", err)
	}
	return s.buildResultResponse(detailed, detailed.Quiz), nil
}

// ===== TEACHER SIDE: REVIEW =====

func (s *attemptService) GetByID(ctx context.Context, id uint, userID string) (*models.Attempt, error) {
	return s.ownedAttempt(ctx, id, userID, "read")
}

func (s *attemptService) GetResultByID(ctx context.Context, id uint, userID string) (*AttemptResultResponse, error) {
	attempt, err := s.ownedAttempt(ctx, id, userID, "read_result")
	if err != nil {
		return nil, err
	}
	if !attempt.IsGraded {
		return nil, ErrAttemptNotGraded
	}

	response := s.buildResultResponse(attempt, attempt.Quiz)
	// Teachers always see the per-answer breakdown.
	response.Answers = attempt.Answers
	return response, nil
}

func (s *attemptService) List(ctx context.Context, params models.ListAttemptsParams, userID string) (*models.PaginatedResponse, error) {
	size := params.Size
	if size <= 0 {
		size = 20
	}

	filters := repositories.AttemptFilters{
		QuizID:    params.QuizID,
		StudentID: params.StudentID,
		CreatedBy: &userID,
		DateFrom:  params.DateFrom,
		DateTo:    params.DateTo,
		Limit:     size,
		Offset:    params.Page * size,
		SortBy:    params.SortBy,
		SortOrder: params.SortDir,
	}
	if params.Status != "" {
		status := params.Status
		filters.Status = &status
	}

	attempts, total, err := s.repo.Attempt().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}

	return paginate(attempts, len(attempts), total, params.Page, size), nil
}

func (s *attemptService) GetStats(ctx context.Context, quizID uint, userID string) (*repositories.AttemptStats, error) {
	if _, err := s.ownedQuiz(ctx, quizID, userID, "read_stats"); err != nil {
		return nil, err
	}

	stats, err := s.repo.Attempt().GetStats(ctx, nil, quizID)
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt stats: %w", err)
	}
	return stats, nil
}

// HandleTimeouts sweeps in-progress attempts whose deadline passed and
// closes them as timeouts. Called periodically from main.
func (s *attemptService) HandleTimeouts(ctx context.Context, limit int) (int, error) {
	expired, err := s.repo.Attempt().ListExpired(ctx, nil, time.Now(), limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired attempts: %w", err)
	}

	closed := 0
	for _, attempt := range expired {
		s.closeAttempt(ctx, attempt, models.AttemptTimeOut, models.AttemptEndReasonTimeout, true)
		closed++
	}

	if closed > 0 {
		s.logger.Info("Timed-out attempts closed", "count", closed)
	}
	return closed, nil
}
