package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

var ErrNotAcquired = errors.New("lock not acquired")

// lockNamespace is the first key of the two-key advisory lock, so card
// locks cannot collide with other users of the database.
const lockNamespace int32 = 0x746f6c6c

// Locker serializes work on one card across gate boxes sharing the ledger.
// It holds a session advisory lock on a pooled connection from Lock until
// release, so the lock spans fetch, decide and update.
type Locker struct {
	db     *pgxpool.Pool
	retry  time.Duration
	logger logrus.FieldLogger
}

func NewLocker(db *pgxpool.Pool, retry time.Duration, logger logrus.FieldLogger) *Locker {
	if retry <= 0 {
		retry = 25 * time.Millisecond
	}
	return &Locker{db: db, retry: retry, logger: logger}
}

// Lock polls pg_try_advisory_lock until it succeeds or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	conn, err := l.db.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, err)
	}

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		var ok bool
		err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1, hashtext($2))`, lockNamespace, key).Scan(&ok)
		if err != nil {
			// The query may have been cut off after the lock was taken;
			// dropping the session releases it either way.
			l.discard(conn)
			return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, err)
		}
		if ok {
			var once sync.Once
			return func() { once.Do(func() { l.release(conn, key) }) }, nil
		}

		select {
		case <-ctx.Done():
			conn.Release()
			return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *Locker) release(conn *pgxpool.Conn, key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var unlocked bool
	err := conn.QueryRow(ctx, `SELECT pg_advisory_unlock($1, hashtext($2))`, lockNamespace, key).Scan(&unlocked)
	if err != nil || !unlocked {
		l.logger.WithError(err).WithField("uid", key).Warn("advisory unlock failed; dropping connection")
		l.discard(conn)
		return
	}
	conn.Release()
}

// discard closes the session instead of returning it to the pool, which
// frees any advisory lock it still holds.
func (l *Locker) discard(conn *pgxpool.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = conn.Hijack().Close(ctx)
}
