package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgmodels "github.com/go-telegram/bot/models"

	"github.com/ad/go-course-progress/internal/db"
	"github.com/ad/go-course-progress/internal/fsm"
	"github.com/ad/go-course-progress/internal/logger"
	"github.com/ad/go-course-progress/internal/models"
	"github.com/ad/go-course-progress/internal/services"
)

const adminHelp = `🔧 Admin commands
/override <user> <unit> <course> [reason]
/progress <user> <course>
/audit [user] [action] [limit=N]
/stats <course>
/role <user> <role,role,...> [reason]
/deactivate <user> [reason]
/restore <user> [reason]
/recalc <course> [status|cancel]
/cancel`

type AdminHandler struct {
	msgs           *services.MessageManager
	isAdmin        func(int64) bool
	executor       *services.OverrideExecutor
	progress       *services.ProgressService
	audit          *services.AuditTrail
	userAdmin      *services.UserAdmin
	stats          *services.StatisticsService
	recalc         *services.Recalculator
	adminStateRepo *db.AdminStateRepository
	recalcBatch    int
	log            *logger.Logger
	now            func() time.Time
}

type AdminDeps struct {
	Messages       *services.MessageManager
	IsAdmin        func(int64) bool
	Executor       *services.OverrideExecutor
	Progress       *services.ProgressService
	Audit          *services.AuditTrail
	UserAdmin      *services.UserAdmin
	Stats          *services.StatisticsService
	Recalc         *services.Recalculator
	AdminStateRepo *db.AdminStateRepository
	RecalcBatch    int
	Log            *logger.Logger
}

func NewAdminHandler(deps AdminDeps) *AdminHandler {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	return &AdminHandler{
		msgs:           deps.Messages,
		isAdmin:        deps.IsAdmin,
		executor:       deps.Executor,
		progress:       deps.Progress,
		audit:          deps.Audit,
		userAdmin:      deps.UserAdmin,
		stats:          deps.Stats,
		recalc:         deps.Recalc,
		adminStateRepo: deps.AdminStateRepo,
		recalcBatch:    deps.RecalcBatch,
		log:            log.With("component", "admin_handler"),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// HandleCommand reports whether the message was consumed as an admin action.
func (h *AdminHandler) HandleCommand(ctx context.Context, msg *tgmodels.Message) bool {
	if msg.From == nil || !h.isAdmin(msg.From.ID) {
		return false
	}

	adminID := msg.From.ID
	chatID := msg.Chat.ID
	name, args := parseCommand(msg.Text)

	switch name {
	case "/admin", "/help":
		h.msgs.Reply(ctx, chatID, adminHelp)
	case "/cancel":
		h.clearState(ctx, adminID)
		h.msgs.Reply(ctx, chatID, "❌ Operation cancelled")
	case "/override":
		h.handleOverride(ctx, msg, args)
	case "/progress":
		h.handleProgress(ctx, chatID, args)
	case "/audit":
		h.handleAudit(ctx, chatID, args)
	case "/stats":
		h.handleStats(ctx, chatID, args)
	case "/role":
		h.handleRole(ctx, msg, args)
	case "/deactivate":
		h.handleAccountAction(ctx, msg, args, fsm.StateAdminDeactivateReason)
	case "/restore":
		h.handleAccountAction(ctx, msg, args, fsm.StateAdminRestoreReason)
	case "/recalc":
		h.handleRecalc(ctx, chatID, args)
	case "":
		return h.handleStateInput(ctx, msg)
	default:
		return false
	}
	return true
}

func (h *AdminHandler) handleOverride(ctx context.Context, msg *tgmodels.Message, args []string) {
	chatID := msg.Chat.ID
	if len(args) < 3 {
		h.msgs.Reply(ctx, chatID, "Usage: /override <user> <unit> <course> [reason]")
		return
	}
	req := services.OverrideRequest{
		UserID:      args[0],
		UnitID:      args[1],
		CourseID:    args[2],
		Reason:      restAfter(msg.Text, 3),
		PerformedBy: userKey(msg.From.ID),
	}
	if req.Reason == "" {
		h.askReason(ctx, msg, &models.AdminState{
			CurrentState:   fsm.StateAdminOverrideReason,
			TargetUserID:   req.UserID,
			TargetUnitID:   req.UnitID,
			TargetCourseID: req.CourseID,
		})
		return
	}
	h.runOverride(ctx, chatID, req)
}

func (h *AdminHandler) runOverride(ctx context.Context, chatID int64, req services.OverrideRequest) {
	result, err := h.executor.Execute(ctx, req)
	if err != nil {
		h.msgs.Reply(ctx, chatID, describeError(err))
		return
	}
	h.msgs.Reply(ctx, chatID, services.FormatOverrideResult(req, result))
}

func (h *AdminHandler) handleProgress(ctx context.Context, chatID int64, args []string) {
	if len(args) < 2 {
		h.msgs.Reply(ctx, chatID, "Usage: /progress <user> <course>")
		return
	}
	p, err := h.progress.GetProgress(ctx, args[0], args[1])
	if err != nil {
		h.msgs.Reply(ctx, chatID, describeError(err))
		return
	}
	h.msgs.Reply(ctx, chatID, services.FormatProgress(p, h.now()))
}

// parseAuditArgs reads "[user] [action] [limit]". User ids are numeric, so a
// number is the limit only when written as limit=N or when it trails another
// argument; a lone number is a user id. A known action type filters by action.
func parseAuditArgs(args []string) models.AuditQuery {
	var q models.AuditQuery
	for i, arg := range args {
		if v, ok := strings.CutPrefix(strings.ToLower(arg), "limit="); ok {
			if n, err := strconv.Atoi(v); err == nil {
				q.Limit = n
				continue
			}
		}
		if a := models.ActionType(strings.ToLower(arg)); a.Valid() {
			q.ActionType = a
			continue
		}
		if i > 0 && i == len(args)-1 {
			if n, err := strconv.Atoi(arg); err == nil {
				q.Limit = n
				continue
			}
		}
		q.TargetUserID = arg
	}
	return q
}

func (h *AdminHandler) handleAudit(ctx context.Context, chatID int64, args []string) {
	entries, err := h.audit.Query(ctx, parseAuditArgs(args))
	if err != nil {
		h.msgs.Reply(ctx, chatID, describeError(err))
		return
	}
	h.msgs.Reply(ctx, chatID, services.FormatAuditEntries(entries))
}

func (h *AdminHandler) handleStats(ctx context.Context, chatID int64, args []string) {
	if len(args) < 1 {
		h.msgs.Reply(ctx, chatID, "Usage: /stats <course>")
		return
	}
	stats, err := h.stats.CourseStatistics(ctx, args[0])
	if err != nil {
		h.msgs.Reply(ctx, chatID, describeError(err))
		return
	}
	h.msgs.Reply(ctx, chatID, services.FormatCourseStats(stats))
}

func (h *AdminHandler) handleRole(ctx context.Context, msg *tgmodels.Message, args []string) {
	chatID := msg.Chat.ID
	if len(args) < 2 {
		h.msgs.Reply(ctx, chatID, "Usage: /role <user> <role,role,...> [reason]")
		return
	}
	roles := splitRoles(args[1])
	reason := restAfter(msg.Text, 2)
	if reason == "" {
		h.askReason(ctx, msg, &models.AdminState{
			CurrentState: fsm.StateAdminRoleReason,
			TargetUserID: args[0],
			PendingRoles: roles,
		})
		return
	}
	h.runRoleChange(ctx, chatID, services.AdminActionRequest{
		TargetUserID: args[0],
		Reason:       reason,
		PerformedBy:  userKey(msg.From.ID),
	}, roles)
}

func (h *AdminHandler) runRoleChange(ctx context.Context, chatID int64, req services.AdminActionRequest, roles []string) {
	res, err := h.userAdmin.ChangeRoles(ctx, req, roles)
	if err != nil {
		h.msgs.Reply(ctx, chatID, describeError(err))
		return
	}
	h.msgs.Reply(ctx, chatID, fmt.Sprintf("✅ Roles of %s: %s\nAudit: %s",
		res.User.Label(), strings.Join(res.User.Roles, ", "), res.AuditID))
}

func (h *AdminHandler) handleAccountAction(ctx context.Context, msg *tgmodels.Message, args []string, state string) {
	chatID := msg.Chat.ID
	if len(args) < 1 {
		h.msgs.Reply(ctx, chatID, "Usage: /deactivate <user> [reason] or /restore <user> [reason]")
		return
	}
	reason := restAfter(msg.Text, 1)
	if reason == "" {
		h.askReason(ctx, msg, &models.AdminState{CurrentState: state, TargetUserID: args[0]})
		return
	}
	h.runAccountAction(ctx, chatID, state, services.AdminActionRequest{
		TargetUserID: args[0],
		Reason:       reason,
		PerformedBy:  userKey(msg.From.ID),
	})
}

func (h *AdminHandler) runAccountAction(ctx context.Context, chatID int64, state string, req services.AdminActionRequest) {
	var (
		res  *services.AdminActionResult
		err  error
		verb string
	)
	if state == fsm.StateAdminRestoreReason {
		res, err = h.userAdmin.Restore(ctx, req)
		verb = "restored"
	} else {
		res, err = h.userAdmin.Deactivate(ctx, req)
		verb = "deactivated"
	}
	if err != nil {
		h.msgs.Reply(ctx, chatID, describeError(err))
		return
	}
	h.msgs.Reply(ctx, chatID, fmt.Sprintf("✅ %s %s\nAudit: %s", res.User.Label(), verb, res.AuditID))
}

func (h *AdminHandler) handleRecalc(ctx context.Context, chatID int64, args []string) {
	if len(args) < 1 {
		h.msgs.Reply(ctx, chatID, "Usage: /recalc <course> [status|cancel]")
		return
	}
	courseID := args[0]
	if len(args) > 1 {
		switch strings.ToLower(args[1]) {
		case "status":
			h.msgs.Reply(ctx, chatID, services.FormatRecalcReport(h.recalc.Report(courseID)))
			return
		case "cancel":
			if h.recalc.Cancel(courseID) {
				h.msgs.Reply(ctx, chatID, "⏹ Recalculation cancelled")
			} else {
				h.msgs.Reply(ctx, chatID, "Nothing is running for this course")
			}
			return
		}
	}
	if !h.recalc.StartAsync(courseID, h.recalcBatch) {
		h.msgs.Reply(ctx, chatID, "🔄 Recalculation is already running, use /recalc "+courseID+" status")
		return
	}
	h.log.Info("recalculation started", "course_id", courseID)
	h.msgs.Reply(ctx, chatID, "🔄 Recalculation started for "+courseID)
}

func (h *AdminHandler) askReason(ctx context.Context, msg *tgmodels.Message, state *models.AdminState) {
	state.UserID = msg.From.ID
	if err := h.adminStateRepo.Save(ctx, state); err != nil {
		h.log.Error("failed to save admin state", "admin_id", msg.From.ID, "error", err)
		h.msgs.Reply(ctx, msg.Chat.ID, describeError(err))
		return
	}
	h.msgs.Reply(ctx, msg.Chat.ID, "✍️ Send the reason for this action (or /cancel)")
}

func (h *AdminHandler) clearState(ctx context.Context, adminID int64) {
	if err := h.adminStateRepo.Clear(ctx, adminID); err != nil {
		h.log.Warn("failed to clear admin state", "admin_id", adminID, "error", err)
	}
}

// handleStateInput treats plain text as the reason of a pending command.
func (h *AdminHandler) handleStateInput(ctx context.Context, msg *tgmodels.Message) bool {
	state, err := h.adminStateRepo.Get(ctx, msg.From.ID)
	if err != nil {
		h.log.Error("failed to load admin state", "admin_id", msg.From.ID, "error", err)
		return false
	}
	if state == nil || !fsm.AwaitsReason(state.CurrentState) {
		return false
	}

	reason := strings.TrimSpace(msg.Text)
	if reason == "" {
		h.msgs.Reply(ctx, msg.Chat.ID, "The reason must not be empty, send it as text (or /cancel)")
		return true
	}
	h.clearState(ctx, msg.From.ID)

	performedBy := userKey(msg.From.ID)
	switch state.CurrentState {
	case fsm.StateAdminOverrideReason:
		h.runOverride(ctx, msg.Chat.ID, services.OverrideRequest{
			UserID:      state.TargetUserID,
			UnitID:      state.TargetUnitID,
			CourseID:    state.TargetCourseID,
			Reason:      reason,
			PerformedBy: performedBy,
		})
	case fsm.StateAdminRoleReason:
		h.runRoleChange(ctx, msg.Chat.ID, services.AdminActionRequest{
			TargetUserID: state.TargetUserID,
			Reason:       reason,
			PerformedBy:  performedBy,
		}, state.PendingRoles)
	case fsm.StateAdminDeactivateReason, fsm.StateAdminRestoreReason:
		h.runAccountAction(ctx, msg.Chat.ID, state.CurrentState, services.AdminActionRequest{
			TargetUserID: state.TargetUserID,
			Reason:       reason,
			PerformedBy:  performedBy,
		})
	}
	return true
}
