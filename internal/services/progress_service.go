package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/ad/go-course-progress/internal/apperr"
	"github.com/ad/go-course-progress/internal/db"
	"github.com/ad/go-course-progress/internal/logger"
	"github.com/ad/go-course-progress/internal/models"
)

// ProgressService is the learner-facing side of the engine: reading progress,
// natural completions and recalculation.
type ProgressService struct {
	queue          *db.DBQueue
	aggregator     *ProgressAggregator
	writer         *ProgressWriter
	progressRepo   *db.ProgressRepository
	courseRepo     *db.CourseRepository
	userRepo       *db.UserRepository
	completionRepo *db.CompletionRepository
	assignmentRepo *db.AssignmentRepository
	locks          *PairLocks
	log            *logger.Logger
	now            func() time.Time
}

type ProgressServiceDeps struct {
	Queue          *db.DBQueue
	Aggregator     *ProgressAggregator
	Writer         *ProgressWriter
	ProgressRepo   *db.ProgressRepository
	CourseRepo     *db.CourseRepository
	UserRepo       *db.UserRepository
	CompletionRepo *db.CompletionRepository
	AssignmentRepo *db.AssignmentRepository
	Locks          *PairLocks
	Log            *logger.Logger
}

func NewProgressService(deps ProgressServiceDeps) *ProgressService {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	locks := deps.Locks
	if locks == nil {
		locks = NewPairLocks()
	}
	return &ProgressService{
		queue:          deps.Queue,
		aggregator:     deps.Aggregator,
		writer:         deps.Writer,
		progressRepo:   deps.ProgressRepo,
		courseRepo:     deps.CourseRepo,
		userRepo:       deps.UserRepo,
		completionRepo: deps.CompletionRepo,
		assignmentRepo: deps.AssignmentRepo,
		locks:          locks,
		log:            log.With("component", "progress_service"),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// GetProgress returns the stored record, or a derived one that has not been
// committed yet when the pair was never written.
func (s *ProgressService) GetProgress(ctx context.Context, userID, courseID string) (*models.CourseProgress, error) {
	stored, err := s.progressRepo.Get(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		return stored, nil
	}
	return s.aggregator.Recalculate(ctx, userID, courseID)
}

// RecalculateAndCommit re-derives and stores progress for the pair.
func (s *ProgressService) RecalculateAndCommit(ctx context.Context, userID, courseID string) (*models.CourseProgress, error) {
	unlock := s.locks.Lock(userID, courseID)
	defer unlock()

	data, err := s.queue.ExecuteTx(ctx, func(tx *sql.Tx) (interface{}, error) {
		derived, err := s.aggregator.Recalculate(ctx, userID, courseID, tx)
		if err != nil {
			return nil, err
		}
		return s.writer.Commit(ctx, derived, tx)
	})
	if err != nil {
		return nil, apperr.Persistence("progress.recalculate", err)
	}
	return data.(*models.CourseProgress), nil
}

// CompleteUnit records a natural completion by the learner. A unit that is
// already complete keeps its original fact.
func (s *ProgressService) CompleteUnit(ctx context.Context, userID, unitID, courseID string) (*models.CourseProgress, error) {
	const op = "progress.complete_unit"

	unlock := s.locks.Lock(userID, courseID)
	defer unlock()

	data, err := s.queue.ExecuteTx(ctx, func(tx *sql.Tx) (interface{}, error) {
		unit, err := s.courseRepo.GetUnit(ctx, unitID, tx)
		if err != nil {
			return nil, err
		}
		if unit == nil {
			return nil, apperr.NotFound(op, "unit "+unitID)
		}
		if unit.CourseID != courseID {
			return nil, apperr.Integrity(op, "unit %s does not belong to course %s", unitID, courseID)
		}

		user, err := s.userRepo.GetByID(ctx, userID, tx)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, apperr.NotFound(op, "user "+userID)
		}

		prior, err := s.completionRepo.Get(ctx, userID, unitID, courseID, tx)
		if err != nil {
			return nil, err
		}
		if prior == nil || !prior.Completed {
			now := s.now()
			fact := &models.CompletionFact{
				UserID:           userID,
				UnitID:           unitID,
				CourseID:         courseID,
				Completed:        true,
				CompletionMethod: models.MethodNatural,
				CompletedAt:      &now,
				UpdatedAt:        now,
			}
			if err := s.completionRepo.Upsert(ctx, fact, tx); err != nil {
				return nil, err
			}
		}
		if _, err := s.assignmentRepo.Ensure(ctx, &models.Assignment{UserID: userID, CourseID: courseID}, tx); err != nil {
			return nil, err
		}

		derived, err := s.aggregator.Recalculate(ctx, userID, courseID, tx)
		if err != nil {
			return nil, err
		}
		return s.writer.Commit(ctx, derived, tx)
	})
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}

	progress := data.(*models.CourseProgress)
	s.log.Debug("unit completed",
		"user_id", userID, "unit_id", unitID, "course_id", courseID,
		"progress", progress.ProgressPercentage, "status", progress.Status)
	return progress, nil
}
