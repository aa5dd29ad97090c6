package db

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/ad/go-course-progress/internal/apperr"
	"github.com/ad/go-course-progress/internal/models"
)

type AdminStateRepository struct {
	queue *DBQueue
}

func NewAdminStateRepository(queue *DBQueue) *AdminStateRepository {
	return &AdminStateRepository{queue: queue}
}

func (r *AdminStateRepository) Save(ctx context.Context, state *models.AdminState) error {
	_, err := r.queue.ExecuteContext(ctx, func(db *sql.DB) (interface{}, error) {
		rolesJSON, _ := json.Marshal(nonNilStrings(state.PendingRoles))

		_, err := db.ExecContext(ctx, `
			INSERT INTO admin_state (user_id, current_state, target_user_id, target_unit_id, target_course_id, pending_roles)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
				current_state = excluded.current_state,
				target_user_id = excluded.target_user_id,
				target_unit_id = excluded.target_unit_id,
				target_course_id = excluded.target_course_id,
				pending_roles = excluded.pending_roles
		`, state.UserID, state.CurrentState, state.TargetUserID, state.TargetUnitID, state.TargetCourseID, string(rolesJSON))
		if err != nil {
			return nil, apperr.Persistence("admin_state.save", errors.Wrap(err, "saving admin state"))
		}
		return nil, nil
	})
	return err
}

// Get returns nil, nil when the admin has no pending command.
func (r *AdminStateRepository) Get(ctx context.Context, userID int64) (*models.AdminState, error) {
	result, err := r.queue.ExecuteContext(ctx, func(db *sql.DB) (interface{}, error) {
		row := db.QueryRowContext(ctx, `
			SELECT user_id, current_state, target_user_id, target_unit_id, target_course_id, pending_roles
			FROM admin_state WHERE user_id = ?
		`, userID)

		var state models.AdminState
		var rolesJSON string
		err := row.Scan(&state.UserID, &state.CurrentState, &state.TargetUserID, &state.TargetUnitID, &state.TargetCourseID, &rolesJSON)
		if err == sql.ErrNoRows {
			return (*models.AdminState)(nil), nil
		}
		if err != nil {
			return nil, apperr.Persistence("admin_state.get", errors.Wrap(err, "reading admin state"))
		}

		json.Unmarshal([]byte(rolesJSON), &state.PendingRoles)

		return &state, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.AdminState), nil
}

func (r *AdminStateRepository) Clear(ctx context.Context, userID int64) error {
	_, err := r.queue.ExecuteContext(ctx, func(db *sql.DB) (interface{}, error) {
		_, err := db.ExecContext(ctx, `DELETE FROM admin_state WHERE user_id = ?`, userID)
		return nil, err
	})
	return err
}
