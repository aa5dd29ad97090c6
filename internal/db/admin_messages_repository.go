package db

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/ad/go-course-progress/internal/apperr"
)

// AdminMessage records a notice delivered to an admin chat, keyed by what
// triggered it (an audit entry id or a panic digest).
type AdminMessage struct {
	Key       string
	ChatID    int64
	MessageID int
}

type AdminMessagesRepository struct {
	queue *DBQueue
}

func NewAdminMessagesRepository(queue *DBQueue) *AdminMessagesRepository {
	return &AdminMessagesRepository{queue: queue}
}

// List returns every delivery recorded under key.
func (r *AdminMessagesRepository) List(ctx context.Context, key string) ([]AdminMessage, error) {
	result, err := r.queue.ExecuteContext(ctx, func(db *sql.DB) (interface{}, error) {
		rows, err := db.QueryContext(ctx, `SELECT key, chat_id, message_id FROM admin_messages WHERE key = ? ORDER BY chat_id`, key)
		if err != nil {
			return nil, apperr.Persistence("admin_messages.list", errors.Wrap(err, "listing admin messages"))
		}
		defer rows.Close()

		msgs := []AdminMessage{}
		for rows.Next() {
			var msg AdminMessage
			if err := rows.Scan(&msg.Key, &msg.ChatID, &msg.MessageID); err != nil {
				return nil, apperr.Persistence("admin_messages.list", errors.Wrap(err, "scanning admin message"))
			}
			msgs = append(msgs, msg)
		}
		return msgs, rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]AdminMessage), nil
}

// Delivered reports whether key was already sent to chatID.
func (r *AdminMessagesRepository) Delivered(ctx context.Context, key string, chatID int64) (bool, error) {
	result, err := r.queue.ExecuteContext(ctx, func(db *sql.DB) (interface{}, error) {
		var exists bool
		err := db.QueryRowContext(ctx, `
			SELECT EXISTS(SELECT 1 FROM admin_messages WHERE key = ? AND chat_id = ?)
		`, key, chatID).Scan(&exists)
		if err != nil {
			return nil, apperr.Persistence("admin_messages.delivered", errors.Wrap(err, "checking admin message"))
		}
		return exists, nil
	})
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

func (r *AdminMessagesRepository) Set(ctx context.Context, key string, chatID int64, messageID int) error {
	_, err := r.queue.ExecuteContext(ctx, func(db *sql.DB) (interface{}, error) {
		_, err := db.ExecContext(ctx, `
			INSERT INTO admin_messages (key, chat_id, message_id) VALUES (?, ?, ?)
			ON CONFLICT(key, chat_id) DO UPDATE SET message_id = excluded.message_id
		`, key, chatID, messageID)
		if err != nil {
			return nil, apperr.Persistence("admin_messages.set", errors.Wrap(err, "saving admin message"))
		}
		return nil, nil
	})
	return err
}
