package services

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/ad/go-course-progress/internal/db"
	"github.com/ad/go-course-progress/internal/models"
)

var testDBCounter int64

type testEnv struct {
	sqlDB *sql.DB
	queue *db.DBQueue

	users         *db.UserRepository
	courses       *db.CourseRepository
	completions   *db.CompletionRepository
	progress      *db.ProgressRepository
	audits        *db.AuditRepository
	assignments   *db.AssignmentRepository
	adminMessages *db.AdminMessagesRepository

	locks      *PairLocks
	aggregator *ProgressAggregator
	writer     *ProgressWriter
	trail      *AuditTrail
	validator  *OverrideValidator
	executor   *OverrideExecutor
	service    *ProgressService
	userAdmin  *UserAdmin
	stats      *StatisticsService
	recalc     *Recalculator
}

func newTestEnv(t testing.TB) *testEnv {
	t.Helper()
	counter := atomic.AddInt64(&testDBCounter, 1)
	sqlDB, err := sql.Open("sqlite", fmt.Sprintf("file:svcdb%d?mode=memory&cache=shared", counter))
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.InitSchema(sqlDB))

	queue := db.NewDBQueueForTest(sqlDB)
	t.Cleanup(func() {
		queue.Close()
		sqlDB.Close()
	})

	env := &testEnv{
		sqlDB:         sqlDB,
		queue:         queue,
		users:         db.NewUserRepository(queue),
		courses:       db.NewCourseRepository(queue),
		completions:   db.NewCompletionRepository(queue),
		progress:      db.NewProgressRepository(queue),
		audits:        db.NewAuditRepository(queue),
		assignments:   db.NewAssignmentRepository(queue),
		adminMessages: db.NewAdminMessagesRepository(queue),
		locks:         NewPairLocks(),
	}
	env.aggregator = NewProgressAggregator(env.courses, env.completions)
	env.writer = NewProgressWriter(env.progress)
	env.trail = NewAuditTrail(env.audits, DefaultAuditLimit)
	env.validator = NewOverrideValidator(env.courses, env.users, env.assignments, env.progress, env.completions)
	env.executor = NewOverrideExecutor(OverrideExecutorDeps{
		Queue:          queue,
		Validator:      env.validator,
		Aggregator:     env.aggregator,
		Writer:         env.writer,
		Audit:          env.trail,
		CourseRepo:     env.courses,
		CompletionRepo: env.completions,
		AssignmentRepo: env.assignments,
		Locks:          env.locks,
	})
	env.service = NewProgressService(ProgressServiceDeps{
		Queue:          queue,
		Aggregator:     env.aggregator,
		Writer:         env.writer,
		ProgressRepo:   env.progress,
		CourseRepo:     env.courses,
		UserRepo:       env.users,
		CompletionRepo: env.completions,
		AssignmentRepo: env.assignments,
		Locks:          env.locks,
	})
	env.userAdmin = NewUserAdmin(queue, env.users, env.trail, nil)
	env.stats = NewStatisticsService(env.courses, env.progress)
	env.recalc = NewRecalculator(env.service, env.progress, nil)
	return env
}

// seedCourse creates a course with one section per call holding the units.
func (e *testEnv) seedCourse(t testing.TB, courseID string, unitIDs ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.courses.CreateCourse(ctx, &models.Course{ID: courseID, Title: "Course " + courseID}))
	sectionID := courseID + "-main"
	require.NoError(t, e.courses.CreateSection(ctx, &models.Section{ID: sectionID, CourseID: courseID, Title: "Main", Position: 1}))
	for i, id := range unitIDs {
		require.NoError(t, e.courses.SaveUnit(ctx, &models.Unit{ID: id, SectionID: sectionID, Title: id, Position: i + 1}))
	}
}

func (e *testEnv) seedUser(t testing.TB, id string, active bool) *models.User {
	t.Helper()
	u := &models.User{ID: id, DisplayName: "User " + id, Roles: []string{"learner"}, IsActive: active}
	if !active {
		at := time.Now().UTC()
		u.DeletedAt = &at
	}
	require.NoError(t, e.users.CreateOrUpdate(context.Background(), u))
	return u
}

func (e *testEnv) seedFact(t testing.TB, userID, unitID, courseID string, completed bool) {
	t.Helper()
	now := time.Now().UTC()
	fact := &models.CompletionFact{
		UserID:           userID,
		UnitID:           unitID,
		CourseID:         courseID,
		Completed:        completed,
		CompletionMethod: models.MethodNatural,
		UpdatedAt:        now,
	}
	if completed {
		fact.CompletedAt = &now
	}
	require.NoError(t, e.completions.Upsert(context.Background(), fact))
}

func (e *testEnv) countRows(t testing.TB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, e.sqlDB.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

// fixedClock returns a clock that advances by step on each call.
func fixedClock(start time.Time, step time.Duration) func() time.Time {
	var calls int64
	return func() time.Time {
		n := atomic.AddInt64(&calls, 1) - 1
		return start.Add(time.Duration(n) * step)
	}
}
