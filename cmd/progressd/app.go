package main

import (
	"github.com/ad/go-course-progress/internal/config"
	"github.com/ad/go-course-progress/internal/db"
	"github.com/ad/go-course-progress/internal/handlers"
	"github.com/ad/go-course-progress/internal/logger"
	"github.com/ad/go-course-progress/internal/services"
)

// app holds the wired engine behind the bot.
type app struct {
	queue    *db.DBQueue
	executor *services.OverrideExecutor
	progress *services.ProgressService
	errors   *services.ErrorManager
	recalc   *services.Recalculator
	handler  *handlers.BotHandler
}

func newApp(cfg *config.Config, queue *db.DBQueue, sender services.MessageSender, log *logger.Logger) *app {
	userRepo := db.NewUserRepository(queue)
	courseRepo := db.NewCourseRepository(queue)
	completionRepo := db.NewCompletionRepository(queue)
	progressRepo := db.NewProgressRepository(queue)
	auditRepo := db.NewAuditRepository(queue)
	assignmentRepo := db.NewAssignmentRepository(queue)
	adminStateRepo := db.NewAdminStateRepository(queue)
	adminMessagesRepo := db.NewAdminMessagesRepository(queue)

	locks := services.NewPairLocks()
	aggregator := services.NewProgressAggregator(courseRepo, completionRepo)
	writer := services.NewProgressWriter(progressRepo)
	trail := services.NewAuditTrail(auditRepo, cfg.AuditPageSize)
	validator := services.NewOverrideValidator(courseRepo, userRepo, assignmentRepo, progressRepo, completionRepo)

	errorManager := services.NewErrorManager(sender, cfg.AdminIDs, adminMessagesRepo, log)
	msgManager := services.NewMessageManager(sender, log)

	executor := services.NewOverrideExecutor(services.OverrideExecutorDeps{
		Queue:          queue,
		Validator:      validator,
		Aggregator:     aggregator,
		Writer:         writer,
		Audit:          trail,
		CourseRepo:     courseRepo,
		CompletionRepo: completionRepo,
		AssignmentRepo: assignmentRepo,
		Locks:          locks,
		Log:            log,
	})
	executor.SetNotifier(errorManager)

	progress := services.NewProgressService(services.ProgressServiceDeps{
		Queue:          queue,
		Aggregator:     aggregator,
		Writer:         writer,
		ProgressRepo:   progressRepo,
		CourseRepo:     courseRepo,
		UserRepo:       userRepo,
		CompletionRepo: completionRepo,
		AssignmentRepo: assignmentRepo,
		Locks:          locks,
		Log:            log,
	})

	recalc := services.NewRecalculator(progress, progressRepo, log)

	adminHandler := handlers.NewAdminHandler(handlers.AdminDeps{
		Messages:       msgManager,
		IsAdmin:        cfg.IsAdmin,
		Executor:       executor,
		Progress:       progress,
		Audit:          trail,
		UserAdmin:      services.NewUserAdmin(queue, userRepo, trail, log),
		Stats:          services.NewStatisticsService(courseRepo, progressRepo),
		Recalc:         recalc,
		AdminStateRepo: adminStateRepo,
		RecalcBatch:    cfg.RecalcBatch,
		Log:            log,
	})

	return &app{
		queue:    queue,
		executor: executor,
		progress: progress,
		errors:   errorManager,
		recalc:   recalc,
		handler:  handlers.NewBotHandler(msgManager, progress, userRepo, adminHandler, errorManager, log),
	}
}
