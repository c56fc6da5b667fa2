package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/quizforge/quiz-service/internal/grading"
	"github.com/quizforge/quiz-service/internal/models"
	"github.com/quizforge/quiz-service/internal/repositories"
	"github.com/quizforge/quiz-service/internal/validator"
)

type gradingService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	grader    *grading.AttemptGrader
	metrics   grading.Recorder
}

func NewGradingService(
	repo repositories.Repository,
	db *gorm.DB,
	logger *slog.Logger,
	v *validator.Validator,
	grader *grading.AttemptGrader,
	metrics grading.Recorder,
) GradingService {
	return &gradingService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: v,
		grader:    grader,
		metrics:   metrics,
	}
}

// GradeAttempt runs the grading pipeline over an attempt and persists
// the outcome: one graded row per question plus the attempt rollup.
func (s *gradingService) GradeAttempt(ctx context.Context, attemptID uint) (*grading.Result, error) {
	attempt, err := s.repo.Attempt().GetByIDWithDetails(ctx, nil, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	if attempt.IsOpen() {
		return nil, ErrAttemptNotOpen
	}
	quiz := attempt.Quiz
	if quiz == nil {
		return nil, ErrQuizNotFound
	}

	questions, err := s.repo.Question().GetByQuiz(ctx, nil, attempt.QuizID)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}

	rows, err := s.answerRows(ctx, attempt.ID, questions)
	if err != nil {
		return nil, err
	}

	views := make([]grading.Question, len(questions))
	answers := make([]string, len(questions))
	for i, q := range questions {
		views[i] = gradingView(q)
		answers[i] = rows[i].Value
	}

	result, err := s.grader.Grade(ctx, views, answers, grading.Options{})
	if err != nil {
		return nil, fmt.Errorf("grading pipeline failed: %w", err)
	}

	for i := range result.GradedAnswers {
		applyGradedAnswer(rows[i], &result.GradedAnswers[i], result.GradedAt)
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Answer().BulkUpdateGrading(ctx, nil, rows); err != nil {
			return fmt.Errorf("failed to persist graded answers: %w", err)
		}

		gradedAt := result.GradedAt
		attempt.TotalMarks = result.TotalMarks
		attempt.MaxMarks = result.MaxMarks
		attempt.Percentage = result.Percentage
		attempt.Passed = result.Percentage >= float64(quiz.PassingScore)
		attempt.IsGraded = true
		attempt.GradedAt = &gradedAt
		attempt.ProcessingTime = result.ProcessingTime.Milliseconds()

		if err := txRepo.Attempt().Update(ctx, nil, attempt); err != nil {
			return fmt.Errorf("failed to persist attempt rollup: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Attempt graded",
		"attempt_id", attempt.ID,
		"quiz_id", attempt.QuizID,
		"total_marks", result.TotalMarks,
		"max_marks", result.MaxMarks,
		"percentage", result.Percentage,
		"passed", attempt.Passed)

	return result, nil
}

// Regrade reruns the pipeline for a teacher, typically after fixing an
// answer key or when the external grader was down.
func (s *gradingService) Regrade(ctx context.Context, attemptID uint, userID string) (*grading.Result, error) {
	s.logger.Info("Regrading attempt", "attempt_id", attemptID, "user_id", userID)

	attempt, err := s.repo.Attempt().GetByIDWithDetails(ctx, nil, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	if attempt.Quiz == nil || attempt.Quiz.CreatedBy != userID {
		return nil, NewPermissionError(userID, attemptID, "attempt", "regrade", "not the quiz owner")
	}
	if attempt.IsOpen() {
		return nil, ErrAttemptNotOpen
	}

	return s.GradeAttempt(ctx, attemptID)
}

// GradeAnswer applies a teacher's manual override to one answer and
// recomputes the attempt rollup from the stored rows.
func (s *gradingService) GradeAnswer(ctx context.Context, answerID uint, req *models.ManualGradeRequest, graderID string) (*models.Answer, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	answer, err := s.repo.Answer().GetByID(ctx, nil, answerID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAnswerNotFound
		}
		return nil, fmt.Errorf("failed to get answer: %w", err)
	}

	attempt, err := s.repo.Attempt().GetByIDWithDetails(ctx, nil, answer.AttemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	if attempt.Quiz == nil || attempt.Quiz.CreatedBy != graderID {
		return nil, NewPermissionError(graderID, answerID, "answer", "grade", "not the quiz owner")
	}

	maxMarks := answer.MaxMarks
	if maxMarks <= 0 && answer.Question != nil {
		maxMarks = answer.Question.EffectiveMarks()
	}
	if req.Marks > maxMarks {
		return nil, ErrMarksOutOfRange
	}

	now := time.Now()
	correct := req.Marks >= maxMarks
	answer.Marks = req.Marks
	answer.MaxMarks = maxMarks
	answer.IsCorrect = &correct
	answer.Explanation = req.Feedback
	answer.NeedsReview = false
	answer.IsGraded = true
	answer.GradedBy = graderID
	answer.GradedAt = &now

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Answer().UpdateGrading(ctx, nil, answer); err != nil {
			return fmt.Errorf("failed to update answer grading: %w", err)
		}
		return s.recomputeRollup(ctx, txRepo, attempt)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Answer manually graded",
		"answer_id", answerID, "attempt_id", answer.AttemptID, "marks", req.Marks, "grader", graderID)

	return answer, nil
}

func (s *gradingService) Overview(ctx context.Context, quizID uint, userID string) (*repositories.GradingStats, error) {
	quiz, err := s.repo.Quiz().GetByID(ctx, nil, quizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}
	if quiz.CreatedBy != userID {
		return nil, NewPermissionError(userID, quizID, "quiz", "grading_overview", "not the quiz owner")
	}

	stats, err := s.repo.Answer().GetGradingStats(ctx, nil, quizID)
	if err != nil {
		return nil, fmt.Errorf("failed to get grading stats: %w", err)
	}
	return stats, nil
}

func (s *gradingService) MetricsSnapshot() grading.Stats {
	return s.metrics.Snapshot()
}

func (s *gradingService) ResetMetrics() {
	s.metrics.Reset()
}

// answerRows returns one persisted answer row per question, in question
// order, creating blank rows for questions the student never answered so
// every question carries a grading outcome.
func (s *gradingService) answerRows(ctx context.Context, attemptID uint, questions []*models.Question) ([]*models.Answer, error) {
	saved, err := s.repo.Answer().GetByAttempt(ctx, nil, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to load answers: %w", err)
	}
	byQuestion := make(map[uint]*models.Answer, len(saved))
	for _, a := range saved {
		byQuestion[a.QuestionID] = a
	}

	rows := make([]*models.Answer, len(questions))
	for i, q := range questions {
		if existing, ok := byQuestion[q.ID]; ok {
			rows[i] = existing
			continue
		}
		blank := &models.Answer{AttemptID: attemptID, QuestionID: q.ID}
		if err := s.repo.Answer().Upsert(ctx, nil, blank); err != nil {
			return nil, fmt.Errorf("failed to create blank answer: %w", err)
		}
		rows[i] = blank
	}
	return rows, nil
}

// recomputeRollup rebuilds the attempt totals from its stored answer
// rows after a manual override.
func (s *gradingService) recomputeRollup(ctx context.Context, repo repositories.Repository, attempt *models.Attempt) error {
	answers, err := repo.Answer().GetByAttempt(ctx, nil, attempt.ID)
	if err != nil {
		return fmt.Errorf("failed to load answers: %w", err)
	}

	var total, max float64
	for _, a := range answers {
		total += a.Marks
		max += a.MaxMarks
	}

	attempt.TotalMarks = total
	attempt.MaxMarks = max
	if max > 0 {
		attempt.Percentage = total / max * 100
	} else {
		attempt.Percentage = 0
	}
	if attempt.Quiz != nil {
		attempt.Passed = attempt.Percentage >= float64(attempt.Quiz.PassingScore)
	}

	if err := repo.Attempt().Update(ctx, nil, attempt); err != nil {
		return fmt.Errorf("failed to update attempt rollup: %w", err)
	}
	return nil
}

// gradingView maps a persisted question onto the pipeline's view of it.
func gradingView(q *models.Question) grading.Question {
	view := grading.Question{
		ID:      strconv.FormatUint(uint64(q.ID), 10),
		Text:    q.Text,
		Kind:    grading.ParseKind(string(q.Kind)),
		Options: q.OptionList(),
		Answer:  q.Answer,
		Marks:   q.EffectiveMarks(),
	}
	if q.Explanation != nil {
		view.Explanation = *q.Explanation
	}
	return view
}

// applyGradedAnswer copies one pipeline outcome onto its persisted row.
func applyGradedAnswer(row *models.Answer, ga *grading.GradedAnswer, gradedAt time.Time) {
	at := gradedAt
	correct := ga.IsCorrect

	row.Marks = ga.Marks
	row.MaxMarks = ga.MaxMarks
	row.IsCorrect = &correct
	row.NeedsReview = ga.NeedsReview
	row.IsGraded = true
	row.GradedBy = "auto"
	row.GradedAt = &at

	if ga.Explanation != "" {
		explanation := ga.Explanation
		row.Explanation = &explanation
	}
	if ga.AIGraded {
		confidence := ga.Confidence
		row.Confidence = &confidence
		row.KeyPointsFound = marshalKeyPoints(ga.KeyPointsFound)
		row.KeyPointsMissed = marshalKeyPoints(ga.KeyPointsMissing)
	}
}

func marshalKeyPoints(points []string) datatypes.JSON {
	if len(points) == 0 {
		return nil
	}
	raw, err := json.Marshal(points)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}
