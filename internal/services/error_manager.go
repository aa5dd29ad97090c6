package services

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"github.com/ad/go-course-progress/internal/db"
	"github.com/ad/go-course-progress/internal/logger"
	"github.com/ad/go-course-progress/internal/models"
)

// ErrorManager delivers operational notices to the admin chats: handler
// panics and committed overrides.
type ErrorManager struct {
	sender   MessageSender
	adminIDs []int64
	messages *db.AdminMessagesRepository
	log      *logger.Logger
}

func NewErrorManager(sender MessageSender, adminIDs []int64, messages *db.AdminMessagesRepository, log *logger.Logger) *ErrorManager {
	if log == nil {
		log = logger.Nop()
	}
	return &ErrorManager{
		sender:   sender,
		adminIDs: adminIDs,
		messages: messages,
		log:      log.With("component", "error_manager"),
	}
}

func (e *ErrorManager) NotifyAdmin(ctx context.Context, panicValue interface{}, update *tgmodels.Update) {
	userInfo := "unknown"
	if update != nil {
		if update.Message != nil && update.Message.From != nil {
			userInfo = describeSender(update.Message.From)
		} else if update.CallbackQuery != nil && update.CallbackQuery.From.ID != 0 {
			userInfo = describeSender(&update.CallbackQuery.From)
		}
	}

	msg := fmt.Sprintf("🚨 Panic in handler\nUser: %s\nError: %v\n\nStack trace:\n%s",
		userInfo, panicValue, string(debug.Stack()))

	e.log.Error("panic in handler", "user", userInfo, "panic", panicValue)
	for _, adminID := range e.adminIDs {
		_, _ = e.sender.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: adminID,
			Text:   truncate(msg),
		})
	}
}

func describeSender(u *tgmodels.User) string {
	info := fmt.Sprintf("[%d]", u.ID)
	if u.FirstName != "" {
		info = u.FirstName + " " + info
	}
	if u.Username != "" {
		info = info + " @" + u.Username
	}
	return info
}

// NotifyOverride tells every admin chat about a committed override once;
// deliveries are recorded under the audit id.
func (e *ErrorManager) NotifyOverride(ctx context.Context, entry *models.AuditEntry, result *OverrideResult) {
	if entry == nil || result == nil {
		return
	}

	text := fmt.Sprintf("🛠 Override by %s\nUser: %s\nReason: %s\nAudit: %s",
		entry.PerformedBy, entry.TargetUserID, entry.Reason, result.AuditID)
	if result.Progress != nil {
		text += fmt.Sprintf("\nCourse %s: %d%% (%s)",
			result.Progress.CourseID, result.Progress.ProgressPercentage, result.Progress.Status)
	}
	for _, w := range result.Warnings {
		text += "\n⚠️ " + w
	}

	for _, adminID := range e.adminIDs {
		if e.messages != nil {
			delivered, err := e.messages.Delivered(ctx, result.AuditID, adminID)
			if err != nil {
				e.log.Warn("failed to check delivery", "audit_id", result.AuditID, "chat_id", adminID, "error", err)
			}
			if delivered {
				continue
			}
		}

		msg, err := e.sender.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: adminID,
			Text:   truncate(text),
		})
		if err != nil {
			e.log.Warn("failed to notify admin", "audit_id", result.AuditID, "chat_id", adminID, "error", err)
			continue
		}
		if e.messages != nil && msg != nil {
			if err := e.messages.Set(ctx, result.AuditID, adminID, msg.ID); err != nil {
				e.log.Warn("failed to record delivery", "audit_id", result.AuditID, "chat_id", adminID, "error", err)
			}
		}
	}
}
