package services

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/quizforge/quiz-service/internal/models"
	"github.com/quizforge/quiz-service/internal/repositories"
)

func (s *attemptService) ownedQuiz(ctx context.Context, quizID uint, userID, action string) (*models.Quiz, error) {
	quiz, err := s.repo.Quiz().GetByID(ctx, nil, quizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}
	if quiz.CreatedBy != userID {
		return nil, NewPermissionError(userID, quizID, "quiz", action, "not the quiz owner")
	}
	return quiz, nil
}

func (s *attemptService) ownedAttempt(ctx context.Context, id uint, userID, action string) (*models.Attempt, error) {
	attempt, err := s.repo.Attempt().GetByIDWithDetails(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	if attempt.Quiz == nil || attempt.Quiz.CreatedBy != userID {
		return nil, NewPermissionError(userID, id, "attempt", action, "not the quiz owner")
	}
	return attempt, nil
}

// openAttempt resolves the in-progress attempt behind a link token,
// closing it first if its deadline already passed.
func (s *attemptService) openAttempt(ctx context.Context, token string) (*models.Attempt, error) {
	attempt, err := s.repo.Attempt().GetOpenByLinkToken(ctx, nil, token)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			if _, lookupErr := s.repo.Attempt().GetLatestByLinkToken(ctx, nil, token); lookupErr == nil {
				return nil, ErrAttemptSubmitted
			}
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if attempt.DeadlinePassed(time.Now()) {
		s.closeAttempt(ctx, attempt, models.AttemptTimeOut, models.AttemptEndReasonTimeout, true)
		return nil, ErrAttemptNotOpen
	}
	return attempt, nil
}

// closeAttempt finalizes the attempt's lifecycle fields, then grades it
// and fans out the completion events. Grading failures are logged, not
// returned: the submission itself already succeeded and a teacher can
// regrade later.
func (s *attemptService) closeAttempt(ctx context.Context, attempt *models.Attempt, status models.AttemptStatus, endReason string, autoSubmitted bool) {
	now := time.Now()
	attempt.Status = status
	attempt.CompletedAt = &now
	attempt.EndReason = endReason
	attempt.AutoSubmitted = autoSubmitted
	if attempt.TimeSpent == 0 && attempt.StartedAt != nil {
		attempt.TimeSpent = int(now.Sub(*attempt.StartedAt).Seconds())
	}

	if err := s.repo.Attempt().Update(ctx, nil, attempt); err != nil {
		s.logger.Error("Failed to close attempt", "attempt_id", attempt.ID, "error", err)
		return
	}

	if err := s.events.PublishAttemptCompleted(ctx, attempt); err != nil {
		s.logger.Warn("Failed to publish attempt completed event", "attempt_id", attempt.ID, "error", err)
	}

	s.logger.Info("Attempt closed",
		"attempt_id", attempt.ID, "status", status, "end_reason", endReason, "auto_submitted", autoSubmitted)

	if _, err := s.grading.GradeAttempt(ctx, attempt.ID); err != nil {
		s.logger.Error("Failed to grade attempt", "attempt_id", attempt.ID, "error", err)
		return
	}

	graded, err := s.repo.Attempt().GetByIDWithDetails(ctx, nil, attempt.ID)
	if err != nil {
		s.logger.Error("Failed to reload graded attempt", "attempt_id", attempt.ID, "error", err)
		return
	}

	if err := s.events.PublishAttemptGraded(ctx, graded); err != nil {
		s.logger.Warn("Failed to publish attempt graded event", "attempt_id", graded.ID, "error", err)
	}

	if graded.Quiz != nil && graded.Quiz.Settings != nil && graded.Quiz.Settings.EmailResults && graded.Student != nil {
		if err := s.email.EnqueueResultEmail(ctx, graded, graded.Quiz, graded.Student); err != nil {
			s.logger.Warn("Failed to enqueue result email", "attempt_id", graded.ID, "error", err)
		}
	}
}

// buildTakeResponse assembles the student-facing view of an attempt:
// questions without answer keys, plus saved answers when resuming.
func (s *attemptService) buildTakeResponse(ctx context.Context, attempt *models.Attempt, quiz *models.Quiz, resumed bool) (*TakeQuizResponse, error) {
	questions, err := s.repo.Question().GetByQuiz(ctx, nil, quiz.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}

	views := make([]QuestionForTake, len(questions))
	for i, q := range questions {
		views[i] = QuestionForTake{
			ID:       q.ID,
			Kind:     q.Kind,
			Text:     q.Text,
			Options:  q.OptionList(),
			Marks:    q.EffectiveMarks(),
			Position: q.Position,
		}
	}

	if quiz.Settings != nil && quiz.Settings.ShuffleQuestions {
		// Seeded per attempt so a resumed student sees the same order.
		shuffleQuestions(views, int64(attempt.ID))
	}

	response := &TakeQuizResponse{
		AttemptID:    attempt.ID,
		QuizTitle:    quiz.Title,
		Description:  quiz.Description,
		Duration:     quiz.Duration,
		StartedAt:    attempt.StartedAt,
		EndsAt:       attempt.EndedAt,
		Questions:    views,
		Settings:     quiz.Settings,
		WarningCount: attempt.WarningCount,
		MaxWarnings:  quiz.MaxWarnings,
		Resumed:      resumed,
	}

	if resumed {
		saved, err := s.repo.Answer().GetByAttempt(ctx, nil, attempt.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load saved answers: %w", err)
		}
		answers := make(map[uint]string, len(saved))
		for _, a := range saved {
			answers[a.QuestionID] = a.Value
		}
		response.SavedAnswers = answers
	}

	return response, nil
}

// buildResultResponse assembles the graded outcome of an attempt. Quiz
// settings gate what students see; hidden results collapse to the bare
// completion facts.
func (s *attemptService) buildResultResponse(attempt *models.Attempt, quiz *models.Quiz) *AttemptResultResponse {
	response := &AttemptResultResponse{
		AttemptID:      attempt.ID,
		Status:         string(attempt.Status),
		AutoSubmitted:  attempt.AutoSubmitted,
		EndReason:      attempt.EndReason,
		CompletedAt:    attempt.CompletedAt,
		ProcessingTime: attempt.ProcessingTime,
	}
	if quiz == nil {
		return response
	}
	response.QuizTitle = quiz.Title

	showResults := quiz.Settings == nil || quiz.Settings.ShowResults
	if !showResults {
		return response
	}

	response.TotalMarks = attempt.TotalMarks
	response.MaxMarks = attempt.MaxMarks
	response.Percentage = attempt.Percentage
	response.Passed = attempt.Passed

	if quiz.Settings != nil && quiz.Settings.ShowCorrectAnswers {
		response.Answers = attempt.Answers
	}
	return response
}

func buildInviteEmail(quiz *models.Quiz, student *models.Student, link *models.AttemptLink) *models.EmailMessage {
	body := fmt.Sprintf(
		"Hello %s,\n\nYou have been invited to take the quiz %q.\nTime limit: %d minutes.\n\nYour access token: %s\n",
		student.FullName, quiz.Title, quiz.Duration, link.Token)
	if link.ExpiresAt != nil {
		body += fmt.Sprintf("\nThe link expires at %s.\n", link.ExpiresAt.Format(time.RFC1123))
	}
	if quiz.DueDate != nil {
		body += fmt.Sprintf("\nThe quiz is due by %s.\n", quiz.DueDate.Format(time.RFC1123))
	}

	return &models.EmailMessage{
		To:      student.Email,
		Subject: fmt.Sprintf("Invitation: %s", quiz.Title),
		Body:    body,
		Status:  models.EmailQueued,
	}
}

func shuffleQuestions(views []QuestionForTake, seed int64) {
	r := rand.New(rand.NewSource(seed))
	r.Shuffle(len(views), func(i, j int) {
		views[i], views[j] = views[j], views[i]
	})
}
