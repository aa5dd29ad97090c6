package services

import (
	"context"
	"time"

	"github.com/ad/go-course-progress/internal/db"
	"github.com/ad/go-course-progress/internal/models"
)

// ProgressWriter commits derived progress. Status never moves backward:
// when the derived status is behind the stored one, the stored rollup is kept
// and only last_accessed_at is refreshed.
type ProgressWriter struct {
	progressRepo *db.ProgressRepository
	now          func() time.Time
}

func NewProgressWriter(progressRepo *db.ProgressRepository) *ProgressWriter {
	return &ProgressWriter{
		progressRepo: progressRepo,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Commit upserts the record for (user, course) and returns what was stored.
func (w *ProgressWriter) Commit(ctx context.Context, derived *models.CourseProgress, exec ...db.DBExecutor) (*models.CourseProgress, error) {
	stored, err := w.progressRepo.Get(ctx, derived.UserID, derived.CourseID, exec...)
	if err != nil {
		return nil, err
	}

	now := w.now()
	rec := *derived
	rec.StartedAt = nil
	rec.CompletedAt = nil
	rec.LastAccessedAt = now

	if stored != nil {
		rec.StartedAt = stored.StartedAt
		rec.CompletedAt = stored.CompletedAt
		if rec.Status.Before(stored.Status) {
			rec.Status = stored.Status
			rec.ProgressPercentage = stored.ProgressPercentage
			rec.CompletedUnits = stored.CompletedUnits
			rec.TotalUnits = stored.TotalUnits
		}
	}

	if rec.StartedAt == nil && rec.Status != models.StatusNotStarted {
		rec.StartedAt = &now
	}
	if rec.Status == models.StatusCompleted && rec.CompletedAt == nil {
		rec.CompletedAt = &now
	}

	if err := w.progressRepo.Upsert(ctx, &rec, exec...); err != nil {
		return nil, err
	}
	return &rec, nil
}
