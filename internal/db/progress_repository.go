package db

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/ad/go-course-progress/internal/apperr"
	"github.com/ad/go-course-progress/internal/models"
)

// ProgressRepository persists the authoritative (user, course) progress record.
type ProgressRepository struct {
	queue *DBQueue
}

func NewProgressRepository(queue *DBQueue) *ProgressRepository {
	return &ProgressRepository{queue: queue}
}

const progressColumns = `user_id, course_id, status, progress_percentage, completed_units, total_units, started_at, completed_at, last_accessed_at`

func (r *ProgressRepository) Upsert(ctx context.Context, p *models.CourseProgress, exec ...DBExecutor) error {
	_, err := r.queue.run(ctx, exec, func(db DBExecutor) (interface{}, error) {
		_, err := db.ExecContext(ctx, `
			INSERT INTO course_progress (`+progressColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id, course_id) DO UPDATE SET
				status = excluded.status,
				progress_percentage = excluded.progress_percentage,
				completed_units = excluded.completed_units,
				total_units = excluded.total_units,
				started_at = excluded.started_at,
				completed_at = excluded.completed_at,
				last_accessed_at = excluded.last_accessed_at
		`, p.UserID, p.CourseID, string(p.Status), p.ProgressPercentage, p.CompletedUnits, p.TotalUnits, p.StartedAt, p.CompletedAt, p.LastAccessedAt)
		if err != nil {
			return nil, apperr.Persistence("course_progress.upsert", errors.Wrap(err, "upserting course progress"))
		}
		return nil, nil
	})
	return err
}

// Get returns nil, nil when no record exists yet.
func (r *ProgressRepository) Get(ctx context.Context, userID, courseID string, exec ...DBExecutor) (*models.CourseProgress, error) {
	result, err := r.queue.run(ctx, exec, func(db DBExecutor) (interface{}, error) {
		row := db.QueryRowContext(ctx, `SELECT `+progressColumns+` FROM course_progress WHERE user_id = ? AND course_id = ?`, userID, courseID)
		p, err := scanProgress(row)
		if err == sql.ErrNoRows {
			return (*models.CourseProgress)(nil), nil
		}
		if err != nil {
			return nil, apperr.Persistence("course_progress.get", errors.Wrap(err, "reading course progress"))
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.CourseProgress), nil
}

func (r *ProgressRepository) ListByCourse(ctx context.Context, courseID string, exec ...DBExecutor) ([]*models.CourseProgress, error) {
	result, err := r.queue.run(ctx, exec, func(db DBExecutor) (interface{}, error) {
		rows, err := db.QueryContext(ctx, `SELECT `+progressColumns+` FROM course_progress WHERE course_id = ? ORDER BY user_id`, courseID)
		if err != nil {
			return nil, apperr.Persistence("course_progress.list", errors.Wrap(err, "listing course progress"))
		}
		defer rows.Close()

		list := []*models.CourseProgress{}
		for rows.Next() {
			p, err := scanProgress(rows)
			if err != nil {
				return nil, apperr.Persistence("course_progress.list", errors.Wrap(err, "scanning course progress"))
			}
			list = append(list, p)
		}
		return list, rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]*models.CourseProgress), nil
}

func scanProgress(row rowScanner) (*models.CourseProgress, error) {
	var p models.CourseProgress
	var status string
	var startedAt, completedAt sql.NullTime
	err := row.Scan(&p.UserID, &p.CourseID, &status, &p.ProgressPercentage, &p.CompletedUnits, &p.TotalUnits, &startedAt, &completedAt, &p.LastAccessedAt)
	if err != nil {
		return nil, err
	}
	p.Status = models.ProgressStatus(status)
	if startedAt.Valid {
		t := startedAt.Time
		p.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		p.CompletedAt = &t
	}
	return &p, nil
}
