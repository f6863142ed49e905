package data

import (
	"context"
	"database/sql/driver"

	"movieflix/internal/biz"
	"movieflix/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"golang.org/x/sync/semaphore"
)

const defaultLockKey int64 = 7316

type runLocker struct {
	data *Data
	key  int64
	// gate queues runs of this process before they take a pool connection,
	// so waiters never hold connections the lock holder needs.
	gate *semaphore.Weighted
	log  *log.Helper
}

// NewRunLocker creates a locker backed by a PostgreSQL session advisory lock.
func NewRunLocker(data *Data, c *conf.Data, logger log.Logger) biz.RunLocker {
	key := defaultLockKey
	if c.Database != nil && c.Database.LockKey != 0 {
		key = c.Database.LockKey
	}
	return &runLocker{
		data: data,
		key:  key,
		gate: semaphore.NewWeighted(1),
		log:  log.NewHelper(log.With(logger, "module", "data/lock")),
	}
}

// WithLock holds the advisory lock on a dedicated connection while fn runs.
// The advisory lock serializes processes; the gate serializes callers within one.
func (l *runLocker) WithLock(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := l.gate.Acquire(ctx, 1); err != nil {
		return &biz.StoreError{Op: "acquire run lock", Err: err}
	}
	defer l.gate.Release(1)

	sqlDB, err := l.data.db.DB()
	if err != nil {
		return &biz.StoreError{Op: "acquire run lock", Err: err}
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return &biz.StoreError{Op: "acquire run lock", Err: err}
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "select pg_advisory_lock($1)", l.key); err != nil {
		return &biz.StoreError{Op: "acquire run lock", Err: err}
	}
	l.log.WithContext(ctx).Debugf("run lock %d acquired", l.key)

	defer func() {
		// ctx may already be canceled here.
		if _, err := conn.ExecContext(context.WithoutCancel(ctx), "select pg_advisory_unlock($1)", l.key); err != nil {
			l.log.Errorf("failed to release run lock %d, discarding connection: %v", l.key, err)
			// A connection still holding the lock must not return to the pool.
			_ = conn.Raw(func(any) error { return driver.ErrBadConn })
		}
	}()

	return fn(ctx)
}
