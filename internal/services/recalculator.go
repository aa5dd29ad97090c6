package services

import (
	"context"
	"sync"
	"time"

	"github.com/ad/go-course-progress/internal/db"
	"github.com/ad/go-course-progress/internal/logger"
	"github.com/ad/go-course-progress/internal/models"
)

type RecalcReport struct {
	CourseID     string
	TotalRecords int
	Processed    int
	Changed      int
	ErrorCount   int
	StartTime    time.Time
	EndTime      *time.Time
	IsRunning    bool
	CurrentBatch int
	TotalBatches int
	Errors       []string
}

func (r *RecalcReport) clone() *RecalcReport {
	c := *r
	c.Errors = append([]string(nil), r.Errors...)
	return &c
}

const (
	DefaultRecalcBatchSize = 50
	maxReportErrors        = 100
)

// Recalculator re-derives every stored progress record of a course, for
// instance after units were moved between courses.
type Recalculator struct {
	progress     *ProgressService
	progressRepo *db.ProgressRepository
	log          *logger.Logger

	mu      sync.RWMutex
	reports map[string]*RecalcReport
	cancel  map[string]context.CancelFunc
	running sync.WaitGroup
}

func NewRecalculator(progress *ProgressService, progressRepo *db.ProgressRepository, log *logger.Logger) *Recalculator {
	if log == nil {
		log = logger.Nop()
	}
	return &Recalculator{
		progress:     progress,
		progressRepo: progressRepo,
		log:          log.With("component", "recalculator"),
		reports:      make(map[string]*RecalcReport),
		cancel:       make(map[string]context.CancelFunc),
	}
}

// RecalculateCourse runs synchronously and returns the final report. A run
// already in progress for the course yields nil, nil.
func (r *Recalculator) RecalculateCourse(ctx context.Context, courseID string, batchSize int) (*RecalcReport, error) {
	ctx, ok := r.begin(ctx, courseID)
	if !ok {
		return nil, nil
	}
	r.run(ctx, courseID, batchSize)
	return r.Report(courseID), nil
}

// StartAsync launches a background run. Reports false when one is already running.
func (r *Recalculator) StartAsync(courseID string, batchSize int) bool {
	ctx, ok := r.begin(context.Background(), courseID)
	if !ok {
		return false
	}
	r.running.Add(1)
	go func() {
		defer r.running.Done()
		r.run(ctx, courseID, batchSize)
	}()
	return true
}

// Stop cancels every background run and waits for them to return. Call it
// before closing the queue the runs write through.
func (r *Recalculator) Stop() {
	r.mu.Lock()
	for _, cancel := range r.cancel {
		cancel()
	}
	r.mu.Unlock()
	r.running.Wait()
}

func (r *Recalculator) begin(parent context.Context, courseID string) (context.Context, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rep, exists := r.reports[courseID]; exists && rep.IsRunning {
		return nil, false
	}
	ctx, cancel := context.WithCancel(parent)
	r.cancel[courseID] = cancel
	r.reports[courseID] = &RecalcReport{
		CourseID:  courseID,
		StartTime: time.Now(),
		IsRunning: true,
	}
	return ctx, true
}

func (r *Recalculator) run(ctx context.Context, courseID string, batchSize int) {
	defer func() {
		r.mu.Lock()
		if rep, exists := r.reports[courseID]; exists {
			rep.IsRunning = false
			now := time.Now()
			rep.EndTime = &now
		}
		if cancel, ok := r.cancel[courseID]; ok {
			cancel()
			delete(r.cancel, courseID)
		}
		r.mu.Unlock()
	}()

	if batchSize <= 0 {
		batchSize = DefaultRecalcBatchSize
	}

	records, err := r.progressRepo.ListByCourse(ctx, courseID)
	if err != nil {
		r.recordError(courseID, "failed to list progress: "+err.Error())
		return
	}

	r.mu.Lock()
	rep := r.reports[courseID]
	rep.TotalRecords = len(records)
	rep.TotalBatches = (len(records) + batchSize - 1) / batchSize
	r.mu.Unlock()

	for i := 0; i < len(records); i += batchSize {
		select {
		case <-ctx.Done():
			r.log.Warn("recalculation cancelled", "course_id", courseID, "processed", i)
			return
		default:
		}

		end := i + batchSize
		if end > len(records) {
			end = len(records)
		}

		r.mu.Lock()
		rep.CurrentBatch = i/batchSize + 1
		r.mu.Unlock()

		r.processBatch(ctx, courseID, records[i:end])
	}

	final := r.Report(courseID)
	r.log.Info("recalculation finished",
		"course_id", courseID, "processed", final.Processed,
		"changed", final.Changed, "errors", final.ErrorCount)
}

func (r *Recalculator) processBatch(ctx context.Context, courseID string, batch []*models.CourseProgress) {
	for _, before := range batch {
		select {
		case <-ctx.Done():
			return
		default:
		}

		after, err := r.progress.RecalculateAndCommit(ctx, before.UserID, courseID)

		r.mu.Lock()
		rep := r.reports[courseID]
		rep.Processed++
		if err != nil {
			rep.ErrorCount++
			if len(rep.Errors) < maxReportErrors {
				rep.Errors = append(rep.Errors, before.UserID+": "+err.Error())
			}
		} else if rollupChanged(before, after) {
			rep.Changed++
		}
		r.mu.Unlock()
	}
}

func rollupChanged(before, after *models.CourseProgress) bool {
	return before.Status != after.Status ||
		before.ProgressPercentage != after.ProgressPercentage ||
		before.CompletedUnits != after.CompletedUnits ||
		before.TotalUnits != after.TotalUnits
}

func (r *Recalculator) recordError(courseID, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rep, exists := r.reports[courseID]; exists {
		rep.ErrorCount++
		if len(rep.Errors) < maxReportErrors {
			rep.Errors = append(rep.Errors, msg)
		}
	}
	r.log.Error("recalculation error", "course_id", courseID, "error", msg)
}

// Report returns a copy of the latest report for the course, or nil.
func (r *Recalculator) Report(courseID string) *RecalcReport {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if rep, exists := r.reports[courseID]; exists {
		return rep.clone()
	}
	return nil
}

func (r *Recalculator) Cancel(courseID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cancel, exists := r.cancel[courseID]; exists {
		cancel()
		return true
	}
	return false
}

func (r *Recalculator) IsRunning(courseID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if rep, exists := r.reports[courseID]; exists {
		return rep.IsRunning
	}
	return false
}
