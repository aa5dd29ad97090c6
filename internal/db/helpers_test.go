package db

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/ad/go-course-progress/internal/models"
)

func setupTestDB(t *testing.T) (*sql.DB, *DBQueue) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	if err := InitSchema(db); err != nil {
		t.Fatal(err)
	}

	queue := NewDBQueueForTest(db)
	t.Cleanup(func() {
		queue.Close()
		db.Close()
	})
	return db, queue
}

// seedCourse creates a course with one section holding the given units.
func seedCourse(t *testing.T, repo *CourseRepository, courseID string, unitIDs ...string) {
	t.Helper()
	ctx := context.Background()
	if err := repo.CreateCourse(ctx, &models.Course{ID: courseID, Title: "Course " + courseID}); err != nil {
		t.Fatalf("Failed to create course: %v", err)
	}
	sectionID := courseID + "-s1"
	if err := repo.CreateSection(ctx, &models.Section{ID: sectionID, CourseID: courseID, Title: "Section", Position: 1}); err != nil {
		t.Fatalf("Failed to create section: %v", err)
	}
	for i, id := range unitIDs {
		if err := repo.SaveUnit(ctx, &models.Unit{ID: id, SectionID: sectionID, Title: id, Position: i + 1}); err != nil {
			t.Fatalf("Failed to create unit %s: %v", id, err)
		}
	}
}
