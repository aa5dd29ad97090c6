package services

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/ad/go-course-progress/internal/apperr"
	"github.com/ad/go-course-progress/internal/db"
	"github.com/ad/go-course-progress/internal/logger"
	"github.com/ad/go-course-progress/internal/models"
)

type OverrideRequest struct {
	UserID      string `json:"user_id" validate:"required,notblank"`
	UnitID      string `json:"unit_id" validate:"required,notblank"`
	CourseID    string `json:"course_id" validate:"required,notblank"`
	Reason      string `json:"reason" validate:"required,notblank"`
	PerformedBy string `json:"performed_by" validate:"required,notblank"`
}

type OverrideResult struct {
	Success  bool
	AuditID  string
	Warnings []string
	Progress *models.CourseProgress
}

// OverrideNotifier is told about every committed override.
type OverrideNotifier interface {
	NotifyOverride(ctx context.Context, entry *models.AuditEntry, result *OverrideResult)
}

type overrideChecker interface {
	Validate(ctx context.Context, userID, unitID, courseID string, exec ...db.DBExecutor) (*ValidationResult, error)
}

// OverrideExecutor forces a unit complete. The fact write, the audit append
// and the progress rollup commit or roll back together.
type OverrideExecutor struct {
	queue          *db.DBQueue
	validator      overrideChecker
	aggregator     *ProgressAggregator
	writer         *ProgressWriter
	audit          *AuditTrail
	courseRepo     *db.CourseRepository
	completionRepo *db.CompletionRepository
	assignmentRepo *db.AssignmentRepository
	locks          *PairLocks
	notifier       OverrideNotifier
	log            *logger.Logger
	now            func() time.Time
}

type OverrideExecutorDeps struct {
	Queue          *db.DBQueue
	Validator      *OverrideValidator
	Aggregator     *ProgressAggregator
	Writer         *ProgressWriter
	Audit          *AuditTrail
	CourseRepo     *db.CourseRepository
	CompletionRepo *db.CompletionRepository
	AssignmentRepo *db.AssignmentRepository
	Locks          *PairLocks
	Log            *logger.Logger
}

func NewOverrideExecutor(deps OverrideExecutorDeps) *OverrideExecutor {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	locks := deps.Locks
	if locks == nil {
		locks = NewPairLocks()
	}
	return &OverrideExecutor{
		queue:          deps.Queue,
		validator:      deps.Validator,
		aggregator:     deps.Aggregator,
		writer:         deps.Writer,
		audit:          deps.Audit,
		courseRepo:     deps.CourseRepo,
		completionRepo: deps.CompletionRepo,
		assignmentRepo: deps.AssignmentRepo,
		locks:          locks,
		log:            log.With("component", "override_executor"),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

func (e *OverrideExecutor) SetNotifier(n OverrideNotifier) {
	e.notifier = n
}

// Execute validates the request and applies the override. An empty reason is
// rejected before anything else runs.
func (e *OverrideExecutor) Execute(ctx context.Context, req OverrideRequest) (*OverrideResult, error) {
	const op = "override.execute"

	req.Reason = strings.TrimSpace(req.Reason)
	if req.Reason == "" {
		return nil, apperr.Validation(op, "reason is required")
	}
	req.UserID = strings.TrimSpace(req.UserID)
	req.UnitID = strings.TrimSpace(req.UnitID)
	req.CourseID = strings.TrimSpace(req.CourseID)
	req.PerformedBy = strings.TrimSpace(req.PerformedBy)
	if err := validateRequest(op, req); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(req.UserID, req.CourseID)
	defer unlock()

	verdict, err := e.validator.Validate(ctx, req.UserID, req.UnitID, req.CourseID)
	if err != nil {
		return nil, err
	}
	if !verdict.IsValid {
		e.log.Warn("override rejected",
			"user_id", req.UserID, "unit_id", req.UnitID, "course_id", req.CourseID,
			"issues", verdict.Issues)
		return nil, apperr.Validation(op, verdict.Issues...)
	}

	var entry *models.AuditEntry
	data, err := e.queue.ExecuteTx(ctx, func(tx *sql.Tx) (interface{}, error) {
		unit, err := e.courseRepo.GetUnit(ctx, req.UnitID, tx)
		if err != nil {
			return nil, err
		}
		if unit == nil || unit.CourseID != req.CourseID {
			return nil, apperr.Integrity(op, "unit %s no longer belongs to course %s", req.UnitID, req.CourseID)
		}

		prior, err := e.completionRepo.Get(ctx, req.UserID, req.UnitID, req.CourseID, tx)
		if err != nil {
			return nil, err
		}

		now := e.now()
		fact := &models.CompletionFact{
			UserID:           req.UserID,
			UnitID:           req.UnitID,
			CourseID:         req.CourseID,
			Completed:        true,
			CompletionMethod: models.MethodAdminOverride,
			CompletedAt:      &now,
			UpdatedAt:        now,
		}
		if err := e.completionRepo.Upsert(ctx, fact, tx); err != nil {
			return nil, err
		}
		if _, err := e.assignmentRepo.Ensure(ctx, &models.Assignment{UserID: req.UserID, CourseID: req.CourseID, AssignedAt: now}, tx); err != nil {
			return nil, err
		}

		var old interface{} = map[string]string{"fact": "none"}
		if prior != nil {
			old = prior
		}
		oldData, err := snapshot(op, old)
		if err != nil {
			return nil, err
		}
		newData, err := snapshot(op, fact)
		if err != nil {
			return nil, err
		}
		entry = &models.AuditEntry{
			TargetUserID: req.UserID,
			ActionType:   models.ActionUnitOverride,
			PerformedBy:  req.PerformedBy,
			PerformedAt:  now,
			Reason:       req.Reason,
			OldData:      oldData,
			NewData:      newData,
		}
		auditID, err := e.audit.Append(ctx, entry, tx)
		if err != nil {
			return nil, err
		}

		derived, err := e.aggregator.Recalculate(ctx, req.UserID, req.CourseID, tx)
		if err != nil {
			return nil, err
		}
		progress, err := e.writer.Commit(ctx, derived, tx)
		if err != nil {
			return nil, err
		}

		return &OverrideResult{
			Success:  true,
			AuditID:  auditID,
			Warnings: verdict.Warnings,
			Progress: progress,
		}, nil
	})
	if err != nil {
		e.log.Error("override failed",
			"user_id", req.UserID, "unit_id", req.UnitID, "course_id", req.CourseID, "error", err)
		return nil, apperr.Persistence(op, err)
	}

	result := data.(*OverrideResult)
	e.log.Info("override applied",
		"audit_id", result.AuditID, "user_id", req.UserID, "unit_id", req.UnitID,
		"course_id", req.CourseID, "performed_by", req.PerformedBy,
		"progress", result.Progress.ProgressPercentage, "warnings", len(result.Warnings))

	if e.notifier != nil {
		e.notifier.NotifyOverride(ctx, entry, result)
	}
	return result, nil
}
