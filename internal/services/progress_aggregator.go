package services

import (
	"context"

	"github.com/ad/go-course-progress/internal/apperr"
	"github.com/ad/go-course-progress/internal/db"
	"github.com/ad/go-course-progress/internal/models"
)

// ProgressAggregator derives a CourseProgress from the unit set of a course
// and the completed facts of a user. It never writes.
type ProgressAggregator struct {
	courseRepo     *db.CourseRepository
	completionRepo *db.CompletionRepository
}

func NewProgressAggregator(courseRepo *db.CourseRepository, completionRepo *db.CompletionRepository) *ProgressAggregator {
	return &ProgressAggregator{
		courseRepo:     courseRepo,
		completionRepo: completionRepo,
	}
}

// Recalculate returns the derived record without timestamps. Facts for units
// that no longer belong to the course are ignored.
func (a *ProgressAggregator) Recalculate(ctx context.Context, userID, courseID string, exec ...db.DBExecutor) (*models.CourseProgress, error) {
	course, err := a.courseRepo.GetCourse(ctx, courseID, exec...)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, apperr.NotFound("progress.recalculate", "course "+courseID)
	}

	unitIDs, err := a.courseRepo.GetUnitIDs(ctx, courseID, exec...)
	if err != nil {
		return nil, err
	}
	completedIDs, err := a.completionRepo.GetCompletedUnitIDs(ctx, userID, courseID, exec...)
	if err != nil {
		return nil, err
	}

	inCourse := make(map[string]struct{}, len(unitIDs))
	for _, id := range unitIDs {
		inCourse[id] = struct{}{}
	}
	completed := 0
	seen := make(map[string]struct{}, len(completedIDs))
	for _, id := range completedIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := inCourse[id]; ok {
			completed++
		}
	}

	pct := models.Percentage(completed, len(inCourse))
	return &models.CourseProgress{
		UserID:             userID,
		CourseID:           courseID,
		Status:             models.StatusForPercentage(pct),
		ProgressPercentage: pct,
		CompletedUnits:     completed,
		TotalUnits:         len(inCourse),
	}, nil
}
