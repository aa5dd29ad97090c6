package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	_ "modernc.org/sqlite"

	"github.com/ad/go-course-progress/internal/config"
	"github.com/ad/go-course-progress/internal/db"
	"github.com/ad/go-course-progress/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if cfg.BotToken == "" {
		log.Fatal("BOT_TOKEN environment variable is required")
	}
	if len(cfg.AdminIDs) == 0 {
		log.Fatal("ADMIN_IDS environment variable is required")
	}

	sqlDB, err := sql.Open("sqlite", cfg.DBPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		log.Fatal("failed to open database", "path", cfg.DBPath, "error", err)
	}
	defer sqlDB.Close()

	if err := db.InitSchema(sqlDB); err != nil {
		log.Fatal("failed to initialize schema", "error", err)
	}

	queue := db.NewDBQueueWithRetry(sqlDB, cfg.QueueRetries, cfg.QueueRetryWait)
	defer queue.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	httpClient := &http.Client{
		Timeout: 30 * time.Second,
	}

	b, err := bot.New(cfg.BotToken, bot.WithHTTPClient(15*time.Second, httpClient))
	if err != nil {
		log.Fatal("failed to create bot", "error", err)
	}

	var botInfo *tgmodels.User
	for i := 0; i < 3; i++ {
		getMeCtx, getMeCancel := context.WithTimeout(ctx, 10*time.Second)
		botInfo, err = b.GetMe(getMeCtx)
		getMeCancel()
		if err == nil {
			break
		}
		log.Warn("failed to reach telegram api", "attempt", i+1, "error", err)
		if i < 2 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatal("failed to get bot info after 3 attempts", "error", err)
	}

	a := newApp(cfg, queue, b, log)
	// Runs before queue.Close.
	defer a.recalc.Stop()

	b.RegisterHandlerMatchFunc(func(update *tgmodels.Update) bool {
		return true
	}, a.handler.HandleUpdate, logMiddleware(log))

	log.Info("bot started", "username", botInfo.Username, "admins", len(cfg.AdminIDs), "db", cfg.DBPath)
	b.Start(ctx)
}

func formatUser(u *tgmodels.User) string {
	if u == nil {
		return "unknown"
	}
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	if u.Username != "" {
		name += " @" + u.Username
	}
	return fmt.Sprintf("%s [%d]", name, u.ID)
}

func logMiddleware(log *logger.Logger) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *tgmodels.Update) {
			if update.Message != nil {
				log.Debug("message", "from", formatUser(update.Message.From), "text", update.Message.Text)
			}
			next(ctx, b, update)
		}
	}
}
