package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/quizforge/quiz-service/internal/models"
	"github.com/quizforge/quiz-service/internal/repositories"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// exportService renders a quiz's graded attempts into an XLSX workbook:
// one summary sheet plus a per-answer breakdown sheet.
type exportService struct {
	repo   repositories.Repository
	db     *gorm.DB
	logger *slog.Logger
}

func NewExportService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger) ExportService {
	return &exportService{
		repo:   repo,
		db:     db,
		logger: logger,
	}
}

func (s *exportService) ExportQuizResults(ctx context.Context, quizID uint, userID string) (*ExportFile, error) {
	s.logger.Info("Exporting quiz results", "quiz_id", quizID, "user_id", userID)

	quiz, err := s.repo.Quiz().GetByID(ctx, nil, quizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}
	if quiz.CreatedBy != userID {
		return nil, NewPermissionError(userID, quizID, "quiz", "export", "not the quiz owner")
	}

	attempts, _, err := s.repo.Attempt().List(ctx, nil, repositories.AttemptFilters{
		QuizID:    &quizID,
		Limit:     10000,
		SortBy:    "created_at",
		SortOrder: "asc",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}

	completed := make([]*models.Attempt, 0, len(attempts))
	for _, a := range attempts {
		if !a.IsOpen() {
			completed = append(completed, a)
		}
	}
	if len(completed) == 0 {
		return nil, ErrExportNoAttempts
	}

	content, err := s.renderWorkbook(ctx, quiz, completed)
	if err != nil {
		return nil, err
	}

	return &ExportFile{
		FileName:    fmt.Sprintf("quiz-%d-results-%s.xlsx", quizID, time.Now().Format("2006-01-02")),
		ContentType: xlsxContentType,
		Content:     content,
	}, nil
}

func (s *exportService) renderWorkbook(ctx context.Context, quiz *models.Quiz, attempts []*models.Attempt) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const summarySheet = "Summary"
	const answersSheet = "Answers"

	f.SetSheetName(f.GetSheetName(0), summarySheet)
	if _, err := f.NewSheet(answersSheet); err != nil {
		return nil, fmt.Errorf("failed to create answers sheet: %w", err)
	}

	summaryHeader := []interface{}{
		"Attempt ID", "Student", "Email", "Group", "Status",
		"Total Marks", "Max Marks", "Percentage", "Passed",
		"Warnings", "Auto Submitted", "End Reason", "Time Spent (s)",
		"Started At", "Completed At",
	}
	if err := f.SetSheetRow(summarySheet, "A1", &summaryHeader); err != nil {
		return nil, fmt.Errorf("failed to write summary header: %w", err)
	}

	answersHeader := []interface{}{
		"Attempt ID", "Student", "Question", "Kind", "Answer",
		"Marks", "Max Marks", "Correct", "Needs Review", "Graded By", "Explanation",
	}
	if err := f.SetSheetRow(answersSheet, "A1", &answersHeader); err != nil {
		return nil, fmt.Errorf("failed to write answers header: %w", err)
	}

	answerRow := 2
	for i, attempt := range attempts {
		detailed, err := s.repo.Attempt().GetByIDWithDetails(ctx, nil, attempt.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load attempt %d: %w", attempt.ID, err)
		}

		var name, email, group string
		if detailed.Student != nil {
			name = detailed.Student.FullName
			email = detailed.Student.Email
			if detailed.Student.Group != nil {
				group = *detailed.Student.Group
			}
		}

		row := []interface{}{
			detailed.ID, name, email, group, string(detailed.Status),
			detailed.TotalMarks, detailed.MaxMarks, detailed.Percentage, detailed.Passed,
			detailed.WarningCount, detailed.AutoSubmitted, detailed.EndReason, detailed.TimeSpent,
			formatExportTime(detailed.StartedAt), formatExportTime(detailed.CompletedAt),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write summary row: %w", err)
		}

		for j := range detailed.Answers {
			answer := &detailed.Answers[j]
			var questionText, kind string
			if answer.Question != nil {
				questionText = answer.Question.Text
				kind = string(answer.Question.Kind)
			}
			var explanation string
			if answer.Explanation != nil {
				explanation = *answer.Explanation
			}

			arow := []interface{}{
				detailed.ID, name, questionText, kind, answer.Value,
				answer.Marks, answer.MaxMarks, isCorrectLabel(answer.IsCorrect),
				answer.NeedsReview, answer.GradedBy, explanation,
			}
			acell, _ := excelize.CoordinatesToCellName(1, answerRow)
			if err := f.SetSheetRow(answersSheet, acell, &arow); err != nil {
				return nil, fmt.Errorf("failed to write answer row: %w", err)
			}
			answerRow++
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func formatExportTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}

func isCorrectLabel(correct *bool) string {
	if correct == nil {
		return ""
	}
	if *correct {
		return "yes"
	}
	return "no"
}
