package db

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/ad/go-course-progress/internal/apperr"
)

// DBExecutor is satisfied by both *sql.DB and *sql.Tx.
type DBExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type DBTask struct {
	Exec func(*sql.DB) (interface{}, error)
	Resp chan DBResult
}

type DBResult struct {
	Data interface{}
	Err  error
}

// ErrQueueClosed is returned for tasks submitted after Close.
var ErrQueueClosed = errors.New("db queue is closed")

// DBQueue runs every store call on a single worker goroutine, so writes are
// never interleaved. Tasks submitted from inside a running task deadlock:
// nested work must use the executor handed to the task.
type DBQueue struct {
	tasks      chan DBTask
	db         *sql.DB
	maxRetry   int
	retryDelay time.Duration
	testMode   bool

	mu     sync.RWMutex
	closed bool
}

func NewDBQueue(db *sql.DB) *DBQueue {
	return NewDBQueueWithRetry(db, 3, 100*time.Millisecond)
}

func NewDBQueueWithRetry(db *sql.DB, maxRetry int, retryDelay time.Duration) *DBQueue {
	if maxRetry < 1 {
		maxRetry = 1
	}
	q := &DBQueue{
		tasks:      make(chan DBTask, 100),
		db:         db,
		maxRetry:   maxRetry,
		retryDelay: retryDelay,
	}
	go q.worker()
	return q
}

func NewDBQueueForTest(db *sql.DB) *DBQueue {
	q := &DBQueue{
		tasks:      make(chan DBTask, 100),
		db:         db,
		maxRetry:   3,
		retryDelay: 1 * time.Millisecond, // Minimal delay for tests
		testMode:   true,
	}
	go q.worker()
	return q
}

func (q *DBQueue) Execute(task func(*sql.DB) (interface{}, error)) (interface{}, error) {
	return q.ExecuteContext(context.Background(), task)
}

// ExecuteContext stops waiting when ctx is done. A task already handed to the
// worker still runs; its statements see the cancelled ctx.
func (q *DBQueue) ExecuteContext(ctx context.Context, task func(*sql.DB) (interface{}, error)) (interface{}, error) {
	resp := make(chan DBResult, 1)

	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return nil, ErrQueueClosed
	}
	select {
	case q.tasks <- DBTask{Exec: task, Resp: resp}:
	case <-ctx.Done():
		q.mu.RUnlock()
		return nil, ctx.Err()
	}
	q.mu.RUnlock()

	select {
	case result := <-resp:
		return result.Data, result.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ExecuteTx runs fn inside one transaction on the worker. Any error from fn
// rolls the transaction back; the whole transaction is retried only for
// retryable errors.
func (q *DBQueue) ExecuteTx(ctx context.Context, fn func(tx *sql.Tx) (interface{}, error)) (interface{}, error) {
	return q.ExecuteContext(ctx, func(db *sql.DB) (interface{}, error) {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}
		data, err := fn(tx)
		if err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return data, nil
	})
}

func (q *DBQueue) worker() {
	for task := range q.tasks {
		result := q.executeWithRetry(task)
		task.Resp <- result
	}
}

func (q *DBQueue) executeWithRetry(task DBTask) DBResult {
	var lastErr error
	for attempt := 0; attempt < q.maxRetry; attempt++ {
		data, err := task.Exec(q.db)
		if err == nil {
			return DBResult{Data: data, Err: nil}
		}
		lastErr = err
		if !shouldRetry(err) {
			break
		}
		if attempt < q.maxRetry-1 { // Don't sleep after the last attempt
			if q.testMode {
				time.Sleep(q.retryDelay)
			} else {
				time.Sleep(time.Duration(attempt+1) * q.retryDelay)
			}
		}
	}
	return DBResult{Err: lastErr}
}

func shouldRetry(err error) bool {
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}
	return apperr.IsRetryable(err)
}

// Close stops accepting tasks. Tasks already queued still run. Safe to call
// more than once.
func (q *DBQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.tasks)
}

func (q *DBQueue) DB() *sql.DB {
	return q.db
}

// run executes fn on the caller's executor when one is given (the caller is
// then already inside a queued task), otherwise it goes through the queue.
func (q *DBQueue) run(ctx context.Context, exec []DBExecutor, fn func(DBExecutor) (interface{}, error)) (interface{}, error) {
	if len(exec) > 0 && exec[0] != nil {
		return fn(exec[0])
	}
	return q.ExecuteContext(ctx, func(db *sql.DB) (interface{}, error) {
		return fn(db)
	})
}
