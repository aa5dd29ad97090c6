package services

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"time"

	"github.com/ad/go-course-progress/internal/apperr"
	"github.com/ad/go-course-progress/internal/db"
	"github.com/ad/go-course-progress/internal/logger"
	"github.com/ad/go-course-progress/internal/models"
)

type AdminActionRequest struct {
	TargetUserID string `json:"target_user_id" validate:"required,notblank"`
	Reason       string `json:"reason" validate:"required,notblank"`
	PerformedBy  string `json:"performed_by" validate:"required,notblank"`
}

type AdminActionResult struct {
	User    *models.User
	AuditID string
}

// UserAdmin applies audited account changes. Each mutation and its audit
// entry share one transaction.
type UserAdmin struct {
	queue    *db.DBQueue
	userRepo *db.UserRepository
	audit    *AuditTrail
	log      *logger.Logger
	now      func() time.Time
}

func NewUserAdmin(queue *db.DBQueue, userRepo *db.UserRepository, audit *AuditTrail, log *logger.Logger) *UserAdmin {
	if log == nil {
		log = logger.Nop()
	}
	return &UserAdmin{
		queue:    queue,
		userRepo: userRepo,
		audit:    audit,
		log:      log.With("component", "user_admin"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ChangeRoles replaces the role set of the user. Roles are lowercased,
// deduplicated and sorted.
func (a *UserAdmin) ChangeRoles(ctx context.Context, req AdminActionRequest, roles []string) (*AdminActionResult, error) {
	normalized := normalizeRoles(roles)
	return a.mutate(ctx, "user_admin.change_roles", models.ActionRoleChange, req, func(u *models.User, _ time.Time) error {
		if equalRoles(u.Roles, normalized) {
			return apperr.Validation("user_admin.change_roles", "roles are unchanged")
		}
		u.Roles = normalized
		return nil
	})
}

// Deactivate soft-deletes the user.
func (a *UserAdmin) Deactivate(ctx context.Context, req AdminActionRequest) (*AdminActionResult, error) {
	return a.mutate(ctx, "user_admin.deactivate", models.ActionSoftDelete, req, func(u *models.User, now time.Time) error {
		if !u.IsActive {
			return apperr.Validation("user_admin.deactivate", "user is already deactivated")
		}
		u.IsActive = false
		u.DeletedAt = &now
		return nil
	})
}

func (a *UserAdmin) Restore(ctx context.Context, req AdminActionRequest) (*AdminActionResult, error) {
	return a.mutate(ctx, "user_admin.restore", models.ActionRestore, req, func(u *models.User, _ time.Time) error {
		if u.IsActive {
			return apperr.Validation("user_admin.restore", "user is already active")
		}
		u.IsActive = true
		u.DeletedAt = nil
		return nil
	})
}

func (a *UserAdmin) mutate(ctx context.Context, op string, action models.ActionType, req AdminActionRequest, apply func(u *models.User, now time.Time) error) (*AdminActionResult, error) {
	req.Reason = strings.TrimSpace(req.Reason)
	if req.Reason == "" {
		return nil, apperr.Validation(op, "reason is required")
	}
	if err := validateRequest(op, req); err != nil {
		return nil, err
	}

	data, err := a.queue.ExecuteTx(ctx, func(tx *sql.Tx) (interface{}, error) {
		user, err := a.userRepo.GetByID(ctx, req.TargetUserID, tx)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, apperr.NotFound(op, "user "+req.TargetUserID)
		}

		oldData, err := snapshot(op, user)
		if err != nil {
			return nil, err
		}

		now := a.now()
		updated := *user
		updated.Roles = append([]string(nil), user.Roles...)
		if err := apply(&updated, now); err != nil {
			return nil, err
		}
		if err := a.userRepo.CreateOrUpdate(ctx, &updated, tx); err != nil {
			return nil, err
		}

		newData, err := snapshot(op, &updated)
		if err != nil {
			return nil, err
		}
		auditID, err := a.audit.Append(ctx, &models.AuditEntry{
			TargetUserID: updated.ID,
			ActionType:   action,
			PerformedBy:  req.PerformedBy,
			PerformedAt:  now,
			Reason:       req.Reason,
			OldData:      oldData,
			NewData:      newData,
		}, tx)
		if err != nil {
			return nil, err
		}
		return &AdminActionResult{User: &updated, AuditID: auditID}, nil
	})
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}

	result := data.(*AdminActionResult)
	a.log.Info("admin action applied",
		"action", action, "target_user_id", req.TargetUserID,
		"performed_by", req.PerformedBy, "audit_id", result.AuditID)
	return result, nil
}

func normalizeRoles(roles []string) []string {
	seen := make(map[string]struct{}, len(roles))
	out := []string{}
	for _, r := range roles {
		r = strings.ToLower(strings.TrimSpace(r))
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

func equalRoles(current, next []string) bool {
	current = normalizeRoles(current)
	if len(current) != len(next) {
		return false
	}
	for i := range current {
		if current[i] != next[i] {
			return false
		}
	}
	return true
}
