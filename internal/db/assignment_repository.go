package db

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/ad/go-course-progress/internal/apperr"
	"github.com/ad/go-course-progress/internal/models"
)

type AssignmentRepository struct {
	queue *DBQueue
}

func NewAssignmentRepository(queue *DBQueue) *AssignmentRepository {
	return &AssignmentRepository{queue: queue}
}

// Ensure creates the assignment unless it already exists. Reports whether a
// row was inserted.
func (r *AssignmentRepository) Ensure(ctx context.Context, a *models.Assignment, exec ...DBExecutor) (bool, error) {
	result, err := r.queue.run(ctx, exec, func(db DBExecutor) (interface{}, error) {
		if a.AssignedAt.IsZero() {
			a.AssignedAt = time.Now().UTC()
		}
		res, err := db.ExecContext(ctx, `
			INSERT OR IGNORE INTO assignments (user_id, course_id, assigned_at) VALUES (?, ?, ?)
		`, a.UserID, a.CourseID, a.AssignedAt)
		if err != nil {
			return nil, apperr.Persistence("assignments.ensure", errors.Wrap(err, "saving assignment"))
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, apperr.Persistence("assignments.ensure", errors.Wrap(err, "reading rows affected"))
		}
		return n > 0, nil
	})
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

func (r *AssignmentRepository) Exists(ctx context.Context, userID, courseID string, exec ...DBExecutor) (bool, error) {
	result, err := r.queue.run(ctx, exec, func(db DBExecutor) (interface{}, error) {
		var exists bool
		err := db.QueryRowContext(ctx, `
			SELECT EXISTS(SELECT 1 FROM assignments WHERE user_id = ? AND course_id = ?)
		`, userID, courseID).Scan(&exists)
		if err != nil {
			return nil, apperr.Persistence("assignments.exists", errors.Wrap(err, "checking assignment"))
		}
		return exists, nil
	})
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}
