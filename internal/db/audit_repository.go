package db

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/ad/go-course-progress/internal/apperr"
	"github.com/ad/go-course-progress/internal/models"
)

// AuditRepository is append-only: there is no update or delete method and the
// schema rejects both with triggers.
type AuditRepository struct {
	queue *DBQueue
}

func NewAuditRepository(queue *DBQueue) *AuditRepository {
	return &AuditRepository{queue: queue}
}

const auditColumns = `id, target_user_id, action_type, performed_by, performed_at, reason, old_data, new_data`

func (r *AuditRepository) Append(ctx context.Context, e *models.AuditEntry, exec ...DBExecutor) error {
	_, err := r.queue.run(ctx, exec, func(db DBExecutor) (interface{}, error) {
		_, err := db.ExecContext(ctx, `
			INSERT INTO audit_entries (`+auditColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, e.ID, e.TargetUserID, string(e.ActionType), e.PerformedBy, e.PerformedAt.UTC(), e.Reason, rawOrNull(e.OldData), rawOrNull(e.NewData))
		if err != nil {
			return nil, apperr.Persistence("audit_entries.append", errors.Wrap(err, "appending audit entry"))
		}
		return nil, nil
	})
	return err
}

// GetByID returns nil, nil when the entry does not exist.
func (r *AuditRepository) GetByID(ctx context.Context, id string, exec ...DBExecutor) (*models.AuditEntry, error) {
	result, err := r.queue.run(ctx, exec, func(db DBExecutor) (interface{}, error) {
		e, err := scanAudit(db.QueryRowContext(ctx, `SELECT `+auditColumns+` FROM audit_entries WHERE id = ?`, id))
		if err == sql.ErrNoRows {
			return (*models.AuditEntry)(nil), nil
		}
		if err != nil {
			return nil, apperr.Persistence("audit_entries.get", errors.Wrap(err, "reading audit entry"))
		}
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.AuditEntry), nil
}

// Query returns entries newest first. Zero-value filter fields match everything.
func (r *AuditRepository) Query(ctx context.Context, q models.AuditQuery, exec ...DBExecutor) ([]*models.AuditEntry, error) {
	result, err := r.queue.run(ctx, exec, func(db DBExecutor) (interface{}, error) {
		var where []string
		var args []interface{}
		if q.TargetUserID != "" {
			where = append(where, "target_user_id = ?")
			args = append(args, q.TargetUserID)
		}
		if q.ActionType != "" {
			where = append(where, "action_type = ?")
			args = append(args, string(q.ActionType))
		}
		query := `SELECT ` + auditColumns + ` FROM audit_entries`
		if len(where) > 0 {
			query += ` WHERE ` + strings.Join(where, " AND ")
		}
		query += ` ORDER BY performed_at DESC, seq DESC LIMIT ?`
		args = append(args, q.Limit)

		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, apperr.Persistence("audit_entries.query", errors.Wrap(err, "querying audit entries"))
		}
		defer rows.Close()

		entries := []*models.AuditEntry{}
		for rows.Next() {
			e, err := scanAudit(rows)
			if err != nil {
				return nil, apperr.Persistence("audit_entries.query", errors.Wrap(err, "scanning audit entry"))
			}
			entries = append(entries, e)
		}
		return entries, rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]*models.AuditEntry), nil
}

func (r *AuditRepository) Count(ctx context.Context, exec ...DBExecutor) (int, error) {
	result, err := r.queue.run(ctx, exec, func(db DBExecutor) (interface{}, error) {
		var count int
		if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_entries`).Scan(&count); err != nil {
			return nil, apperr.Persistence("audit_entries.count", errors.Wrap(err, "counting audit entries"))
		}
		return count, nil
	})
	if err != nil {
		return 0, err
	}
	return result.(int), nil
}

func scanAudit(row rowScanner) (*models.AuditEntry, error) {
	var e models.AuditEntry
	var action, oldData, newData string
	if err := row.Scan(&e.ID, &e.TargetUserID, &action, &e.PerformedBy, &e.PerformedAt, &e.Reason, &oldData, &newData); err != nil {
		return nil, err
	}
	e.ActionType = models.ActionType(action)
	e.PerformedAt = e.PerformedAt.UTC()
	e.OldData = []byte(oldData)
	e.NewData = []byte(newData)
	return &e, nil
}

func rawOrNull(raw []byte) string {
	if len(raw) == 0 {
		return "null"
	}
	return string(raw)
}
