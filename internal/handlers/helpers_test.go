package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/ad/go-course-progress/internal/db"
	"github.com/ad/go-course-progress/internal/models"
	"github.com/ad/go-course-progress/internal/services"
)

const testAdminID int64 = 1000

var handlerDBCounter int64

type recordingSender struct {
	mu   sync.Mutex
	sent []*bot.SendMessageParams
}

func (r *recordingSender) SendMessage(_ context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, params)
	return &tgmodels.Message{ID: len(r.sent)}, nil
}

func (r *recordingSender) last(t testing.TB) string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.sent, "no message was sent")
	return r.sent[len(r.sent)-1].Text
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type handlerEnv struct {
	sqlDB       *sql.DB
	sender      *recordingSender
	users       *db.UserRepository
	courses     *db.CourseRepository
	completions *db.CompletionRepository
	progress    *db.ProgressRepository
	audits      *db.AuditRepository
	adminStates *db.AdminStateRepository
	service     *services.ProgressService
	recalc      *services.Recalculator
	admin       *AdminHandler
	bot         *BotHandler
}

func newHandlerEnv(t testing.TB) *handlerEnv {
	t.Helper()
	n := atomic.AddInt64(&handlerDBCounter, 1)
	sqlDB, err := sql.Open("sqlite", fmt.Sprintf("file:handlerdb%d?mode=memory&cache=shared", n))
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.InitSchema(sqlDB))

	queue := db.NewDBQueueForTest(sqlDB)
	t.Cleanup(func() {
		queue.Close()
		sqlDB.Close()
	})

	env := &handlerEnv{
		sqlDB:       sqlDB,
		sender:      &recordingSender{},
		users:       db.NewUserRepository(queue),
		courses:     db.NewCourseRepository(queue),
		completions: db.NewCompletionRepository(queue),
		progress:    db.NewProgressRepository(queue),
		audits:      db.NewAuditRepository(queue),
		adminStates: db.NewAdminStateRepository(queue),
	}
	assignments := db.NewAssignmentRepository(queue)
	locks := services.NewPairLocks()
	aggregator := services.NewProgressAggregator(env.courses, env.completions)
	writer := services.NewProgressWriter(env.progress)
	trail := services.NewAuditTrail(env.audits, services.DefaultAuditLimit)
	validator := services.NewOverrideValidator(env.courses, env.users, assignments, env.progress, env.completions)

	executor := services.NewOverrideExecutor(services.OverrideExecutorDeps{
		Queue:          queue,
		Validator:      validator,
		Aggregator:     aggregator,
		Writer:         writer,
		Audit:          trail,
		CourseRepo:     env.courses,
		CompletionRepo: env.completions,
		AssignmentRepo: assignments,
		Locks:          locks,
	})
	env.service = services.NewProgressService(services.ProgressServiceDeps{
		Queue:          queue,
		Aggregator:     aggregator,
		Writer:         writer,
		ProgressRepo:   env.progress,
		CourseRepo:     env.courses,
		UserRepo:       env.users,
		CompletionRepo: env.completions,
		AssignmentRepo: assignments,
		Locks:          locks,
	})
	env.recalc = services.NewRecalculator(env.service, env.progress, nil)

	msgs := services.NewMessageManager(env.sender, nil)
	env.admin = NewAdminHandler(AdminDeps{
		Messages:       msgs,
		IsAdmin:        func(id int64) bool { return id == testAdminID },
		Executor:       executor,
		Progress:       env.service,
		Audit:          trail,
		UserAdmin:      services.NewUserAdmin(queue, env.users, trail, nil),
		Stats:          services.NewStatisticsService(env.courses, env.progress),
		Recalc:         env.recalc,
		AdminStateRepo: env.adminStates,
		RecalcBatch:    10,
	})
	env.bot = NewBotHandler(msgs, env.service, env.users, env.admin, nil, nil)
	return env
}

func (e *handlerEnv) seedCourse(t testing.TB, courseID string, unitIDs ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.courses.CreateCourse(ctx, &models.Course{ID: courseID, Title: "Course " + courseID}))
	sectionID := courseID + "-main"
	require.NoError(t, e.courses.CreateSection(ctx, &models.Section{ID: sectionID, CourseID: courseID, Title: "Main", Position: 1}))
	for i, id := range unitIDs {
		require.NoError(t, e.courses.SaveUnit(ctx, &models.Unit{ID: id, SectionID: sectionID, Title: id, Position: i + 1}))
	}
}

func (e *handlerEnv) seedUser(t testing.TB, id string) {
	t.Helper()
	require.NoError(t, e.users.CreateOrUpdate(context.Background(), &models.User{
		ID: id, DisplayName: "User " + id, Roles: []string{"learner"}, IsActive: true,
	}))
}

// send delivers text from the given telegram user as a private message.
func (e *handlerEnv) send(from int64, text string) {
	e.bot.HandleUpdate(context.Background(), nil, &tgmodels.Update{
		Message: &tgmodels.Message{
			From: &tgmodels.User{ID: from, FirstName: "Test", LastName: fmt.Sprint(from)},
			Chat: tgmodels.Chat{ID: from},
			Text: text,
		},
	})
}

func (e *handlerEnv) auditCount(t testing.TB) int {
	t.Helper()
	var n int
	require.NoError(t, e.sqlDB.QueryRow(`SELECT COUNT(*) FROM audit_entries`).Scan(&n))
	return n
}
