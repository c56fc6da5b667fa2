package services

import (
	"context"
	"errors"
	"testing"

	"github.com/quizforge/quiz-service/internal/events"
	"github.com/quizforge/quiz-service/internal/models"
	"github.com/quizforge/quiz-service/internal/validator"
)

type quizFixture struct {
	repo      *memoryRepository
	service   QuizService
	publisher *events.MockEventPublisher
}

func newQuizFixture(t *testing.T) *quizFixture {
	t.Helper()
	repo := newMemoryRepository()
	logger := testLogger()
	publisher := events.NewMockEventPublisher(logger)
	service := NewQuizService(repo, nil, logger, validator.New(), NewNotificationEventService(publisher, logger))
	return &quizFixture{repo: repo, service: service, publisher: publisher}
}

func validQuizCreate() *models.QuizCreateRequest {
	return &models.QuizCreateRequest{
		Title:        "Algebra basics",
		Duration:     30,
		PassingScore: 50,
		Questions: []models.QuestionRequest{
			{Kind: models.KindMCQ, Text: "2 + 2 = ?", Options: []string{"3", "4", "5"}, Answer: "B", Marks: 1},
			{Kind: models.KindShortAnswer, Text: "Name the smallest prime.", Answer: "2", Marks: 1},
		},
	}
}

func TestQuizCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("creates quiz with inline questions", func(t *testing.T) {
		f := newQuizFixture(t)

		resp, err := f.service.Create(ctx, validQuizCreate(), testTeacher)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if resp.Status != models.QuizStatusDraft {
			t.Errorf("Status = %s, want Draft", resp.Status)
		}
		if len(resp.Questions) != 2 {
			t.Errorf("got %d questions, want 2", len(resp.Questions))
		}
		if !resp.CanEdit || !resp.CanDelete {
			t.Error("creator must be able to edit and delete")
		}
	})

	t.Run("duplicate title", func(t *testing.T) {
		f := newQuizFixture(t)
		if _, err := f.service.Create(ctx, validQuizCreate(), testTeacher); err != nil {
			t.Fatalf("first Create: %v", err)
		}
		if _, err := f.service.Create(ctx, validQuizCreate(), testTeacher); !errors.Is(err, ErrDuplicateTitle) {
			t.Errorf("err = %v, want ErrDuplicateTitle", err)
		}
	})

	t.Run("same title is fine for another teacher", func(t *testing.T) {
		f := newQuizFixture(t)
		if _, err := f.service.Create(ctx, validQuizCreate(), testTeacher); err != nil {
			t.Fatalf("first Create: %v", err)
		}
		if _, err := f.service.Create(ctx, validQuizCreate(), "teacher-2"); err != nil {
			t.Errorf("second Create: %v", err)
		}
	})

	t.Run("mcq without options", func(t *testing.T) {
		f := newQuizFixture(t)
		req := validQuizCreate()
		req.Questions[0].Options = nil

		var verrs ValidationErrors
		if _, err := f.service.Create(ctx, req, testTeacher); !errors.As(err, &verrs) {
			t.Errorf("err = %v, want ValidationErrors", err)
		}
	})
}

func TestQuizUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("updates draft fields", func(t *testing.T) {
		f := newQuizFixture(t)
		created, err := f.service.Create(ctx, validQuizCreate(), testTeacher)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}

		title := "Algebra basics v2"
		duration := 45
		updated, err := f.service.Update(ctx, created.ID, &models.QuizUpdateRequest{
			Title:    &title,
			Duration: &duration,
		}, testTeacher)
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if updated.Title != title || updated.Duration != 45 {
			t.Errorf("got %q/%d", updated.Title, updated.Duration)
		}
	})

	t.Run("passing score is locked while active", func(t *testing.T) {
		f := newQuizFixture(t)
		created, err := f.service.Create(ctx, validQuizCreate(), testTeacher)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if err := f.service.UpdateStatus(ctx, created.ID, &models.ChangeQuizStatusRequest{Status: models.QuizStatusActive}, testTeacher); err != nil {
			t.Fatalf("activate: %v", err)
		}

		score := 80
		var verrs ValidationErrors
		if _, err := f.service.Update(ctx, created.ID, &models.QuizUpdateRequest{PassingScore: &score}, testTeacher); !errors.As(err, &verrs) {
			t.Errorf("err = %v, want ValidationErrors", err)
		}
	})

	t.Run("not the owner", func(t *testing.T) {
		f := newQuizFixture(t)
		created, err := f.service.Create(ctx, validQuizCreate(), testTeacher)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}

		title := "hijacked"
		var permErr *PermissionError
		if _, err := f.service.Update(ctx, created.ID, &models.QuizUpdateRequest{Title: &title}, "intruder"); !errors.As(err, &permErr) {
			t.Errorf("err = %v, want PermissionError", err)
		}
	})
}

func TestQuizStatusTransitions(t *testing.T) {
	ctx := context.Background()

	t.Run("activating publishes an event", func(t *testing.T) {
		f := newQuizFixture(t)
		created, err := f.service.Create(ctx, validQuizCreate(), testTeacher)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}

		if err := f.service.UpdateStatus(ctx, created.ID, &models.ChangeQuizStatusRequest{Status: models.QuizStatusActive}, testTeacher); err != nil {
			t.Fatalf("UpdateStatus: %v", err)
		}

		published := f.publisher.GetPublishedEvents()
		if len(published) != 1 || published[0].Type != events.EventQuizPublished {
			t.Fatalf("expected one quiz.published event, got %d events", len(published))
		}
	})

	t.Run("cannot activate without questions", func(t *testing.T) {
		f := newQuizFixture(t)
		req := validQuizCreate()
		req.Questions = nil
		created, err := f.service.Create(ctx, req, testTeacher)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}

		var verrs ValidationErrors
		err = f.service.UpdateStatus(ctx, created.ID, &models.ChangeQuizStatusRequest{Status: models.QuizStatusActive}, testTeacher)
		if !errors.As(err, &verrs) {
			t.Errorf("err = %v, want ValidationErrors", err)
		}
	})

	t.Run("archived is terminal", func(t *testing.T) {
		f := newQuizFixture(t)
		created, err := f.service.Create(ctx, validQuizCreate(), testTeacher)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if err := f.service.UpdateStatus(ctx, created.ID, &models.ChangeQuizStatusRequest{Status: models.QuizStatusArchived}, testTeacher); err != nil {
			t.Fatalf("archive: %v", err)
		}

		var verrs ValidationErrors
		err = f.service.UpdateStatus(ctx, created.ID, &models.ChangeQuizStatusRequest{Status: models.QuizStatusActive}, testTeacher)
		if !errors.As(err, &verrs) {
			t.Errorf("err = %v, want ValidationErrors", err)
		}
	})
}

func TestQuizDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes an attempt-free quiz", func(t *testing.T) {
		f := newQuizFixture(t)
		created, err := f.service.Create(ctx, validQuizCreate(), testTeacher)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if err := f.service.Delete(ctx, created.ID, testTeacher); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := f.service.GetByID(ctx, created.ID, testTeacher); !errors.Is(err, ErrQuizNotFound) {
			t.Errorf("err = %v, want ErrQuizNotFound", err)
		}
	})

	t.Run("refuses when attempts exist", func(t *testing.T) {
		f := newQuizFixture(t)
		created, err := f.service.Create(ctx, validQuizCreate(), testTeacher)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}

		attempt := &models.Attempt{QuizID: created.ID, StudentID: 1, LinkToken: "t", Status: models.AttemptCompleted}
		if err := f.repo.Attempt().Create(ctx, nil, attempt); err != nil {
			t.Fatalf("seed attempt: %v", err)
		}

		var verrs ValidationErrors
		if err := f.service.Delete(ctx, created.ID, testTeacher); !errors.As(err, &verrs) {
			t.Errorf("err = %v, want ValidationErrors", err)
		}
	})
}

func TestQuizDuplicate(t *testing.T) {
	ctx := context.Background()
	f := newQuizFixture(t)

	created, err := f.service.Create(ctx, validQuizCreate(), testTeacher)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	dup, err := f.service.Duplicate(ctx, created.ID, testTeacher)
	if err != nil {
		t.Fatalf("Duplicate: %v", err)
	}
	if dup.ID == created.ID {
		t.Fatal("duplicate reused the source ID")
	}
	if dup.Title != "Algebra basics (copy)" {
		t.Errorf("Title = %q", dup.Title)
	}
	if dup.Status != models.QuizStatusDraft {
		t.Errorf("Status = %s, want Draft", dup.Status)
	}
	if len(dup.Questions) != 2 {
		t.Errorf("got %d questions, want 2", len(dup.Questions))
	}
}

func TestQuizBookmarks(t *testing.T) {
	ctx := context.Background()
	f := newQuizFixture(t)

	created, err := f.service.Create(ctx, validQuizCreate(), testTeacher)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	on, err := f.service.ToggleBookmark(ctx, created.ID, testTeacher)
	if err != nil || !on {
		t.Fatalf("first toggle: %v bookmarked=%v", err, on)
	}

	bookmarked, err := f.service.ListBookmarked(ctx, testTeacher)
	if err != nil {
		t.Fatalf("ListBookmarked: %v", err)
	}
	if len(bookmarked) != 1 || bookmarked[0].ID != created.ID {
		t.Fatalf("got %d bookmarks", len(bookmarked))
	}

	off, err := f.service.ToggleBookmark(ctx, created.ID, testTeacher)
	if err != nil || off {
		t.Fatalf("second toggle: %v bookmarked=%v", err, off)
	}
}
