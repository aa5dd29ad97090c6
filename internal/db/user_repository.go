package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/ad/go-course-progress/internal/apperr"
	"github.com/ad/go-course-progress/internal/models"
)

type UserRepository struct {
	queue *DBQueue
}

func NewUserRepository(queue *DBQueue) *UserRepository {
	return &UserRepository{queue: queue}
}

const userColumns = `id, display_name, roles, is_active, deleted_at, created_at`

func (r *UserRepository) CreateOrUpdate(ctx context.Context, user *models.User, exec ...DBExecutor) error {
	_, err := r.queue.run(ctx, exec, func(db DBExecutor) (interface{}, error) {
		roles, err := json.Marshal(nonNilStrings(user.Roles))
		if err != nil {
			return nil, err
		}
		if user.CreatedAt.IsZero() {
			user.CreatedAt = time.Now().UTC()
		}
		_, err = db.ExecContext(ctx, `
			INSERT INTO users (id, display_name, roles, is_active, deleted_at, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				display_name = excluded.display_name,
				roles = excluded.roles,
				is_active = excluded.is_active,
				deleted_at = excluded.deleted_at
		`, user.ID, user.DisplayName, string(roles), user.IsActive, user.DeletedAt, user.CreatedAt)
		if err != nil {
			return nil, apperr.Persistence("users.save", errors.Wrap(err, "saving user"))
		}
		return nil, nil
	})
	return err
}

// GetByID returns nil, nil when the user does not exist.
func (r *UserRepository) GetByID(ctx context.Context, id string, exec ...DBExecutor) (*models.User, error) {
	result, err := r.queue.run(ctx, exec, func(db DBExecutor) (interface{}, error) {
		row := db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
		user, err := scanUser(row)
		if err == sql.ErrNoRows {
			return (*models.User)(nil), nil
		}
		if err != nil {
			return nil, apperr.Persistence("users.get", errors.Wrap(err, "reading user"))
		}
		return user, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.User), nil
}

func (r *UserRepository) GetAll(ctx context.Context, exec ...DBExecutor) ([]*models.User, error) {
	result, err := r.queue.run(ctx, exec, func(db DBExecutor) (interface{}, error) {
		rows, err := db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
		if err != nil {
			return nil, apperr.Persistence("users.list", errors.Wrap(err, "listing users"))
		}
		defer rows.Close()

		var users []*models.User
		for rows.Next() {
			user, err := scanUser(rows)
			if err != nil {
				return nil, apperr.Persistence("users.list", errors.Wrap(err, "scanning user"))
			}
			users = append(users, user)
		}
		return users, rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]*models.User), nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	var roles string
	var deletedAt sql.NullTime
	var createdAt sql.NullTime
	if err := row.Scan(&user.ID, &user.DisplayName, &roles, &user.IsActive, &deletedAt, &createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(roles), &user.Roles); err != nil {
		return nil, errors.Wrap(err, "decoding roles")
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		user.DeletedAt = &t
	}
	if createdAt.Valid {
		user.CreatedAt = createdAt.Time
	}
	return &user, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
