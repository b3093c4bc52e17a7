// Package distlock guards the one-import-session-per-dataset rule across
// server instances. A session acquires the lock for its target dataset at
// upload time and holds it until the commit completes or the session is
// cancelled.
package distlock

import (
	"context"
	"database/sql"
	"hash/fnv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lock is the interface for distributed locking. A Lock instance belongs
// to one session; concurrent sessions use separate instances.
type Lock interface {
	// Acquire tries to take the lock. Returns false when another session
	// already holds it.
	Acquire(ctx context.Context) (bool, error)
	// Release gives the lock back if this instance still owns it.
	Release(ctx context.Context) error
	// Extend refreshes the lock's lifetime ahead of a long operation.
	// A no-op for backends whose locks don't expire on their own.
	Extend(ctx context.Context, ttl time.Duration) error
}

// ForDataset creates a lock scoped to one target dataset using the best
// available backend: Redis when a client is configured (cross-host), a
// PostgreSQL advisory lock otherwise.
func ForDataset(redisClient *redis.Client, db *sql.DB, dataset string, ttl time.Duration) Lock {
	key := "import:" + dataset
	if redisClient != nil {
		return NewRedisLock(redisClient, key, ttl)
	}
	return NewPGAdvisoryLock(db, key)
}

// PGAdvisoryLock implements Lock with pg_try_advisory_lock. Advisory
// locks are session-scoped and re-entrant within their owning session, so
// both calls must run on one pinned connection: through the pooled *sql.DB
// a second Acquire could land on the very connection that already holds
// the lock and "succeed", and an unlock on any other connection is a
// silent no-op. The pinned connection also gives crash-safety similar to
// a Redis TTL — the lock drops when the connection dies.
type PGAdvisoryLock struct {
	db     *sql.DB
	lockID int64

	mu   sync.Mutex
	conn *sql.Conn
}

// NewPGAdvisoryLock derives a deterministic advisory lock ID from the key.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLock{db: db, lockID: int64(h.Sum64())}
}

// Acquire pins a connection and tries to take the advisory lock on it
// without blocking. The connection is held until Release.
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn != nil {
		// This instance already holds the lock.
		return false, nil
	}

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, err
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx,
		"SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, err
	}
	if !acquired {
		conn.Close()
		return false, nil
	}

	l.conn = conn
	return true, nil
}

// Release unlocks on the pinned connection and returns it to the pool.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn == nil {
		return nil
	}
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	closeErr := l.conn.Close()
	l.conn = nil
	if err != nil {
		return err
	}
	return closeErr
}

// Extend is a no-op: an advisory lock lives as long as its pinned
// connection, with no TTL to refresh.
func (l *PGAdvisoryLock) Extend(ctx context.Context, ttl time.Duration) error {
	return nil
}
