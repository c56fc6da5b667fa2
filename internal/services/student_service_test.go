package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/quizforge/quiz-service/internal/models"
	"github.com/quizforge/quiz-service/internal/validator"
)

func newStudentService(t *testing.T) (*memoryRepository, StudentService) {
	t.Helper()
	repo := newMemoryRepository()
	return repo, NewStudentService(repo, nil, testLogger(), validator.New())
}

func TestStudentCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("normalizes the email", func(t *testing.T) {
		_, service := newStudentService(t)

		student, err := service.Create(ctx, &models.StudentCreateRequest{
			FullName: "  Riley Wu ",
			Email:    "Riley.Wu@Example.COM",
		}, testTeacher)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if student.Email != "riley.wu@example.com" {
			t.Errorf("Email = %q", student.Email)
		}
		if student.FullName != "Riley Wu" {
			t.Errorf("FullName = %q", student.FullName)
		}
	})

	t.Run("duplicate email in the same roster", func(t *testing.T) {
		_, service := newStudentService(t)
		req := &models.StudentCreateRequest{FullName: "Riley Wu", Email: "riley@example.com"}
		if _, err := service.Create(ctx, req, testTeacher); err != nil {
			t.Fatalf("first Create: %v", err)
		}
		if _, err := service.Create(ctx, req, testTeacher); !errors.Is(err, ErrDuplicateEmail) {
			t.Errorf("err = %v, want ErrDuplicateEmail", err)
		}
	})

	t.Run("same email on another teacher's roster is fine", func(t *testing.T) {
		_, service := newStudentService(t)
		req := &models.StudentCreateRequest{FullName: "Riley Wu", Email: "riley@example.com"}
		if _, err := service.Create(ctx, req, testTeacher); err != nil {
			t.Fatalf("first Create: %v", err)
		}
		if _, err := service.Create(ctx, req, "teacher-2"); err != nil {
			t.Errorf("second Create: %v", err)
		}
	})

	t.Run("invalid email", func(t *testing.T) {
		_, service := newStudentService(t)
		var verrs ValidationErrors
		_, err := service.Create(ctx, &models.StudentCreateRequest{FullName: "Riley Wu", Email: "not-an-email"}, testTeacher)
		if !errors.As(err, &verrs) {
			t.Errorf("err = %v, want ValidationErrors", err)
		}
	})
}

func TestStudentUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("changing the email checks for collisions", func(t *testing.T) {
		_, service := newStudentService(t)
		if _, err := service.Create(ctx, &models.StudentCreateRequest{FullName: "Riley Wu", Email: "riley@example.com"}, testTeacher); err != nil {
			t.Fatalf("seed: %v", err)
		}
		other, err := service.Create(ctx, &models.StudentCreateRequest{FullName: "Sam Ortiz", Email: "sam@example.com"}, testTeacher)
		if err != nil {
			t.Fatalf("seed: %v", err)
		}

		taken := "riley@example.com"
		if _, err := service.Update(ctx, other.ID, &models.StudentUpdateRequest{Email: &taken}, testTeacher); !errors.Is(err, ErrDuplicateEmail) {
			t.Errorf("err = %v, want ErrDuplicateEmail", err)
		}

		// Re-saving the student's own email is not a collision.
		own := "Sam@Example.com"
		updated, err := service.Update(ctx, other.ID, &models.StudentUpdateRequest{Email: &own}, testTeacher)
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if updated.Email != "sam@example.com" {
			t.Errorf("Email = %q", updated.Email)
		}
	})

	t.Run("not the roster owner", func(t *testing.T) {
		_, service := newStudentService(t)
		student, err := service.Create(ctx, &models.StudentCreateRequest{FullName: "Riley Wu", Email: "riley@example.com"}, testTeacher)
		if err != nil {
			t.Fatalf("seed: %v", err)
		}

		name := "hijacked"
		var permErr *PermissionError
		if _, err := service.Update(ctx, student.ID, &models.StudentUpdateRequest{FullName: &name}, "intruder"); !errors.As(err, &permErr) {
			t.Errorf("err = %v, want PermissionError", err)
		}
	})
}

func TestStudentImport(t *testing.T) {
	ctx := context.Background()
	_, service := newStudentService(t)

	group := "10-A"
	if _, err := service.Create(ctx, &models.StudentCreateRequest{FullName: "Riley Wu", Email: "riley@example.com"}, testTeacher); err != nil {
		t.Fatalf("seed: %v", err)
	}

	result, err := service.Import(ctx, &models.StudentImportRequest{
		Students: []models.StudentCreateRequest{
			{FullName: "Sam Ortiz", Email: "sam@example.com", Group: &group},
			{FullName: "Riley Wu", Email: "RILEY@example.com"},   // already on the roster
			{FullName: "Sam Again", Email: "sam@example.com"},    // duplicated within the file
			{FullName: "Noa Levi", Email: "noa@example.com", Group: &group},
		},
	}, testTeacher)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	if result.Created != 2 {
		t.Errorf("Created = %d, want 2", result.Created)
	}
	if result.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", result.Skipped)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "row 3") {
		t.Errorf("Errors = %v, want one row 3 duplicate", result.Errors)
	}

	groups, err := service.ListGroups(ctx, testTeacher)
	if err != nil {
		t.Fatalf("ListGroups: %v", err)
	}
	if len(groups) != 1 || groups[0] != "10-A" {
		t.Errorf("groups = %v", groups)
	}
}

func TestStudentDelete(t *testing.T) {
	ctx := context.Background()
	_, service := newStudentService(t)

	student, err := service.Create(ctx, &models.StudentCreateRequest{FullName: "Riley Wu", Email: "riley@example.com"}, testTeacher)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := service.Delete(ctx, student.ID, testTeacher); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := service.GetByID(ctx, student.ID, testTeacher); !errors.Is(err, ErrStudentNotFound) {
		t.Errorf("err = %v, want ErrStudentNotFound", err)
	}
}
