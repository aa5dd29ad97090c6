package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/ad/go-course-progress/internal/apperr"
	"github.com/ad/go-course-progress/internal/models"
)

// CompletionRepository stores one completion fact per (user, unit, course).
// Facts are overwritten, never deleted.
type CompletionRepository struct {
	queue *DBQueue
}

func NewCompletionRepository(queue *DBQueue) *CompletionRepository {
	return &CompletionRepository{queue: queue}
}

func (r *CompletionRepository) Upsert(ctx context.Context, fact *models.CompletionFact, exec ...DBExecutor) error {
	_, err := r.queue.run(ctx, exec, func(db DBExecutor) (interface{}, error) {
		if fact.UpdatedAt.IsZero() {
			fact.UpdatedAt = time.Now().UTC()
		}
		_, err := db.ExecContext(ctx, `
			INSERT INTO completion_facts (user_id, unit_id, course_id, completed, completion_method, completed_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id, unit_id, course_id) DO UPDATE SET
				completed = excluded.completed,
				completion_method = excluded.completion_method,
				completed_at = excluded.completed_at,
				updated_at = excluded.updated_at
		`, fact.UserID, fact.UnitID, fact.CourseID, fact.Completed, string(fact.CompletionMethod), fact.CompletedAt, fact.UpdatedAt)
		if err != nil {
			return nil, apperr.Persistence("completion_facts.upsert", errors.Wrap(err, "upserting completion fact"))
		}
		return nil, nil
	})
	return err
}

// Get returns nil, nil when no fact exists for the triple.
func (r *CompletionRepository) Get(ctx context.Context, userID, unitID, courseID string, exec ...DBExecutor) (*models.CompletionFact, error) {
	result, err := r.queue.run(ctx, exec, func(db DBExecutor) (interface{}, error) {
		row := db.QueryRowContext(ctx, `
			SELECT user_id, unit_id, course_id, completed, completion_method, completed_at, updated_at
			FROM completion_facts WHERE user_id = ? AND unit_id = ? AND course_id = ?
		`, userID, unitID, courseID)
		fact, err := scanFact(row)
		if err == sql.ErrNoRows {
			return (*models.CompletionFact)(nil), nil
		}
		if err != nil {
			return nil, apperr.Persistence("completion_facts.get", errors.Wrap(err, "reading completion fact"))
		}
		return fact, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.CompletionFact), nil
}

// ListByUserCourse returns every fact of the user for the course, completed or not.
func (r *CompletionRepository) ListByUserCourse(ctx context.Context, userID, courseID string, exec ...DBExecutor) ([]*models.CompletionFact, error) {
	result, err := r.queue.run(ctx, exec, func(db DBExecutor) (interface{}, error) {
		rows, err := db.QueryContext(ctx, `
			SELECT user_id, unit_id, course_id, completed, completion_method, completed_at, updated_at
			FROM completion_facts WHERE user_id = ? AND course_id = ?
			ORDER BY unit_id
		`, userID, courseID)
		if err != nil {
			return nil, apperr.Persistence("completion_facts.list", errors.Wrap(err, "listing completion facts"))
		}
		defer rows.Close()

		facts := []*models.CompletionFact{}
		for rows.Next() {
			fact, err := scanFact(rows)
			if err != nil {
				return nil, apperr.Persistence("completion_facts.list", errors.Wrap(err, "scanning completion fact"))
			}
			facts = append(facts, fact)
		}
		return facts, rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]*models.CompletionFact), nil
}

// GetCompletedUnitIDs returns the distinct unit ids the user completed in the course.
func (r *CompletionRepository) GetCompletedUnitIDs(ctx context.Context, userID, courseID string, exec ...DBExecutor) ([]string, error) {
	result, err := r.queue.run(ctx, exec, func(db DBExecutor) (interface{}, error) {
		rows, err := db.QueryContext(ctx, `
			SELECT DISTINCT unit_id FROM completion_facts
			WHERE user_id = ? AND course_id = ? AND completed = TRUE
		`, userID, courseID)
		if err != nil {
			return nil, apperr.Persistence("completion_facts.completed", errors.Wrap(err, "listing completed units"))
		}
		defer rows.Close()

		ids := []string{}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return nil, apperr.Persistence("completion_facts.completed", errors.Wrap(err, "scanning unit id"))
			}
			ids = append(ids, id)
		}
		return ids, rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

func (r *CompletionRepository) CountAll(ctx context.Context, exec ...DBExecutor) (int, error) {
	result, err := r.queue.run(ctx, exec, func(db DBExecutor) (interface{}, error) {
		var count int
		if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM completion_facts`).Scan(&count); err != nil {
			return nil, apperr.Persistence("completion_facts.count", errors.Wrap(err, "counting completion facts"))
		}
		return count, nil
	})
	if err != nil {
		return 0, err
	}
	return result.(int), nil
}

func scanFact(row rowScanner) (*models.CompletionFact, error) {
	var fact models.CompletionFact
	var method string
	var completedAt sql.NullTime
	if err := row.Scan(&fact.UserID, &fact.UnitID, &fact.CourseID, &fact.Completed, &method, &completedAt, &fact.UpdatedAt); err != nil {
		return nil, err
	}
	fact.CompletionMethod = models.CompletionMethod(method)
	if completedAt.Valid {
		t := completedAt.Time
		fact.CompletedAt = &t
	}
	return &fact, nil
}
