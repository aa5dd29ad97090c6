package db

import (
	"context"
	"testing"

	"github.com/ad/go-course-progress/internal/models"
)

func TestCourseRepository_UnitResolvesCourse(t *testing.T) {
	_, queue := setupTestDB(t)
	repo := NewCourseRepository(queue)
	ctx := context.Background()

	seedCourse(t, repo, "c1", "u1", "u2")
	seedCourse(t, repo, "c2", "u3")

	unit, err := repo.GetUnit(ctx, "u2")
	if err != nil {
		t.Fatalf("GetUnit failed: %v", err)
	}
	if unit == nil || unit.CourseID != "c1" {
		t.Fatalf("Expected u2 to resolve to c1, got %+v", unit)
	}

	missing, err := repo.GetUnit(ctx, "nope")
	if err != nil {
		t.Fatalf("GetUnit failed: %v", err)
	}
	if missing != nil {
		t.Errorf("Expected nil for missing unit, got %+v", missing)
	}

	ids, err := repo.GetUnitIDs(ctx, "c1")
	if err != nil {
		t.Fatalf("GetUnitIDs failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != "u1" || ids[1] != "u2" {
		t.Errorf("Expected [u1 u2], got %v", ids)
	}
}

func TestCourseRepository_MovedUnitChangesCourse(t *testing.T) {
	_, queue := setupTestDB(t)
	repo := NewCourseRepository(queue)
	ctx := context.Background()

	seedCourse(t, repo, "c1", "u1", "u2")
	seedCourse(t, repo, "c2")

	if err := repo.SaveUnit(ctx, &models.Unit{ID: "u2", SectionID: "c2-s1", Title: "u2"}); err != nil {
		t.Fatalf("SaveUnit failed: %v", err)
	}

	ids, err := repo.GetUnitIDs(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "u1" {
		t.Errorf("Expected only u1 left in c1, got %v", ids)
	}

	unit, err := repo.GetUnit(ctx, "u2")
	if err != nil {
		t.Fatal(err)
	}
	if unit.CourseID != "c2" {
		t.Errorf("Expected u2 to resolve to c2 after move, got %s", unit.CourseID)
	}
}

func TestCourseRepository_EmptyAndMissingCourse(t *testing.T) {
	_, queue := setupTestDB(t)
	repo := NewCourseRepository(queue)
	ctx := context.Background()

	seedCourse(t, repo, "empty")

	ids, err := repo.GetUnitIDs(ctx, "empty")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Errorf("Expected no units, got %v", ids)
	}

	course, err := repo.GetCourse(ctx, "ghost")
	if err != nil {
		t.Fatal(err)
	}
	if course != nil {
		t.Errorf("Expected nil for missing course, got %+v", course)
	}
}
