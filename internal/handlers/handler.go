package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"github.com/ad/go-course-progress/internal/db"
	"github.com/ad/go-course-progress/internal/logger"
	"github.com/ad/go-course-progress/internal/models"
	"github.com/ad/go-course-progress/internal/services"
)

const learnerRole = "learner"

const learnerHelp = `📚 Commands
/progress <course> - your progress in a course
/complete <unit> <course> - mark a unit as completed`

// PanicNotifier receives panics recovered while handling an update.
type PanicNotifier interface {
	NotifyAdmin(ctx context.Context, panicValue interface{}, update *tgmodels.Update)
}

type BotHandler struct {
	msgs         *services.MessageManager
	progress     *services.ProgressService
	userRepo     *db.UserRepository
	adminHandler *AdminHandler
	panics       PanicNotifier
	log          *logger.Logger
	now          func() time.Time
}

func NewBotHandler(
	msgs *services.MessageManager,
	progress *services.ProgressService,
	userRepo *db.UserRepository,
	adminHandler *AdminHandler,
	panics PanicNotifier,
	log *logger.Logger,
) *BotHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &BotHandler{
		msgs:         msgs,
		progress:     progress,
		userRepo:     userRepo,
		adminHandler: adminHandler,
		panics:       panics,
		log:          log.With("component", "bot_handler"),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// HandleUpdate matches bot.HandlerFunc.
func (h *BotHandler) HandleUpdate(ctx context.Context, _ *bot.Bot, update *tgmodels.Update) {
	defer h.recoverPanic(ctx, update)

	if update.Message != nil {
		h.handleMessage(ctx, update.Message)
	}
}

func (h *BotHandler) recoverPanic(ctx context.Context, update *tgmodels.Update) {
	if r := recover(); r != nil {
		h.log.Error("panic while handling update", "panic", r)
		if h.panics != nil {
			h.panics.NotifyAdmin(ctx, r, update)
		}
	}
}

func (h *BotHandler) handleMessage(ctx context.Context, msg *tgmodels.Message) {
	if msg.From == nil {
		return
	}

	name, args := parseCommand(msg.Text)
	if name == "/start" {
		h.handleStart(ctx, msg)
		return
	}

	if h.adminHandler != nil && h.adminHandler.HandleCommand(ctx, msg) {
		return
	}

	switch name {
	case "/help":
		h.msgs.Reply(ctx, msg.Chat.ID, learnerHelp)
	case "/progress":
		h.handleProgress(ctx, msg, args)
	case "/complete":
		h.handleComplete(ctx, msg, args)
	}
}

func (h *BotHandler) handleStart(ctx context.Context, msg *tgmodels.Message) {
	id := userKey(msg.From.ID)
	displayName := strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
	if displayName == "" {
		displayName = msg.From.Username
	}

	user, err := h.userRepo.GetByID(ctx, id)
	if err != nil {
		h.msgs.Reply(ctx, msg.Chat.ID, describeError(err))
		return
	}
	if user == nil {
		user = &models.User{ID: id, Roles: []string{learnerRole}, IsActive: true}
	}
	user.DisplayName = displayName

	if err := h.userRepo.CreateOrUpdate(ctx, user); err != nil {
		h.log.Error("failed to register user", "user_id", id, "error", err)
		h.msgs.Reply(ctx, msg.Chat.ID, describeError(err))
		return
	}
	h.msgs.Reply(ctx, msg.Chat.ID, "👋 Welcome! Your learner id is "+id+"\n\n"+learnerHelp)
}

// activeLearner returns the registered active user behind msg, replying to
// the chat when there is none.
func (h *BotHandler) activeLearner(ctx context.Context, msg *tgmodels.Message) *models.User {
	user, err := h.userRepo.GetByID(ctx, userKey(msg.From.ID))
	if err != nil {
		h.msgs.Reply(ctx, msg.Chat.ID, describeError(err))
		return nil
	}
	if user == nil {
		h.msgs.Reply(ctx, msg.Chat.ID, "Send /start to register first")
		return nil
	}
	if !user.IsActive {
		h.msgs.Reply(ctx, msg.Chat.ID, "⛔ Your account is deactivated")
		return nil
	}
	return user
}

func (h *BotHandler) handleProgress(ctx context.Context, msg *tgmodels.Message, args []string) {
	if len(args) < 1 {
		h.msgs.Reply(ctx, msg.Chat.ID, "Usage: /progress <course>")
		return
	}
	user := h.activeLearner(ctx, msg)
	if user == nil {
		return
	}
	p, err := h.progress.GetProgress(ctx, user.ID, args[0])
	if err != nil {
		h.msgs.Reply(ctx, msg.Chat.ID, describeError(err))
		return
	}
	h.msgs.Reply(ctx, msg.Chat.ID, services.FormatProgress(p, h.now()))
}

func (h *BotHandler) handleComplete(ctx context.Context, msg *tgmodels.Message, args []string) {
	if len(args) < 2 {
		h.msgs.Reply(ctx, msg.Chat.ID, "Usage: /complete <unit> <course>")
		return
	}
	user := h.activeLearner(ctx, msg)
	if user == nil {
		return
	}
	p, err := h.progress.CompleteUnit(ctx, user.ID, args[0], args[1])
	if err != nil {
		h.msgs.Reply(ctx, msg.Chat.ID, describeError(err))
		return
	}
	h.msgs.Reply(ctx, msg.Chat.ID, "✅ Unit "+args[0]+" completed\n\n"+services.FormatProgress(p, h.now()))
}
