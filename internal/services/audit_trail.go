package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ad/go-course-progress/internal/apperr"
	"github.com/ad/go-course-progress/internal/db"
	"github.com/ad/go-course-progress/internal/models"
)

const (
	DefaultAuditLimit = 50
	MaxAuditLimit     = 500
)

// AuditTrail is the write-once record of administrative actions.
type AuditTrail struct {
	repo         *db.AuditRepository
	defaultLimit int
	now          func() time.Time
}

func NewAuditTrail(repo *db.AuditRepository, defaultLimit int) *AuditTrail {
	if defaultLimit <= 0 || defaultLimit > MaxAuditLimit {
		defaultLimit = DefaultAuditLimit
	}
	return &AuditTrail{
		repo:         repo,
		defaultLimit: defaultLimit,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Append stores the entry and returns its id. ID and PerformedAt are filled in
// when empty; PerformedAt is stored in UTC.
func (a *AuditTrail) Append(ctx context.Context, entry *models.AuditEntry, exec ...db.DBExecutor) (string, error) {
	var issues []string
	if strings.TrimSpace(entry.Reason) == "" {
		issues = append(issues, "reason is required")
	}
	if !entry.ActionType.Valid() {
		issues = append(issues, "unknown action type "+string(entry.ActionType))
	}
	if entry.TargetUserID == "" {
		issues = append(issues, "target user is required")
	}
	if entry.PerformedBy == "" {
		issues = append(issues, "performed_by is required")
	}
	if len(issues) > 0 {
		return "", apperr.Validation("audit.append", issues...)
	}

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.PerformedAt.IsZero() {
		entry.PerformedAt = a.now()
	}
	// performed_at is ordered as text, so every row must share one zone.
	entry.PerformedAt = entry.PerformedAt.UTC()
	entry.Reason = strings.TrimSpace(entry.Reason)

	if err := a.repo.Append(ctx, entry, exec...); err != nil {
		return "", err
	}
	return entry.ID, nil
}

// Query returns matching entries newest first.
func (a *AuditTrail) Query(ctx context.Context, q models.AuditQuery) ([]*models.AuditEntry, error) {
	if q.ActionType != "" && !q.ActionType.Valid() {
		return nil, apperr.Validation("audit.query", "unknown action type "+string(q.ActionType))
	}
	switch {
	case q.Limit <= 0:
		q.Limit = a.defaultLimit
	case q.Limit > MaxAuditLimit:
		q.Limit = MaxAuditLimit
	}
	return a.repo.Query(ctx, q)
}

// snapshot marshals v for an audit payload.
func snapshot(op string, v interface{}) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	return data, nil
}
