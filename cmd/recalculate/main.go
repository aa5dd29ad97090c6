package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/ad/go-course-progress/internal/apperr"
	"github.com/ad/go-course-progress/internal/config"
	"github.com/ad/go-course-progress/internal/db"
	"github.com/ad/go-course-progress/internal/logger"
	"github.com/ad/go-course-progress/internal/services"
)

func main() {
	courseID := flag.String("course", "", "course id to recalculate")
	batch := flag.Int("batch", 0, "records per batch (defaults to RECALC_BATCH)")
	flag.Parse()

	if *courseID == "" {
		fmt.Fprintln(os.Stderr, "usage: recalculate -course <id> [-batch n]")
		os.Exit(2)
	}

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

	batchSize := *batch
	if batchSize <= 0 {
		batchSize = cfg.RecalcBatch
	}

	database, err := sql.Open("sqlite", cfg.DBPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		log.Fatal("failed to open database", "path", cfg.DBPath, "error", err)
	}
	defer database.Close()

	if err := db.InitSchema(database); err != nil {
		log.Fatal("failed to initialize schema", "error", err)
	}

	queue := db.NewDBQueueWithRetry(database, cfg.QueueRetries, cfg.QueueRetryWait)
	defer queue.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	report, err := run(ctx, queue, *courseID, batchSize, log)
	if err != nil {
		log.Fatal("recalculation failed", "course_id", *courseID, "error", err)
	}
	fmt.Println(services.FormatRecalcReport(report))
}

func run(ctx context.Context, queue *db.DBQueue, courseID string, batchSize int, log *logger.Logger) (*services.RecalcReport, error) {
	courseRepo := db.NewCourseRepository(queue)
	completionRepo := db.NewCompletionRepository(queue)
	progressRepo := db.NewProgressRepository(queue)

	course, err := courseRepo.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, apperr.NotFound("recalculate", "course "+courseID)
	}

	progress := services.NewProgressService(services.ProgressServiceDeps{
		Queue:          queue,
		Aggregator:     services.NewProgressAggregator(courseRepo, completionRepo),
		Writer:         services.NewProgressWriter(progressRepo),
		ProgressRepo:   progressRepo,
		CourseRepo:     courseRepo,
		UserRepo:       db.NewUserRepository(queue),
		CompletionRepo: completionRepo,
		AssignmentRepo: db.NewAssignmentRepository(queue),
		Locks:          services.NewPairLocks(),
		Log:            log,
	})

	log.Info("recalculating course", "course_id", courseID, "title", course.Title, "batch", batchSize)
	return services.NewRecalculator(progress, progressRepo, log).RecalculateCourse(ctx, courseID, batchSize)
}
