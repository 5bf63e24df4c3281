// Package lock provides named advisory locks that keep two gomigrate runs from
// loading the same target table at once.
//
// The lock is session-scoped, so it is taken on a connection pinned out of the
// pool and held there until release. Engines without advisory locks get a
// lock that always succeeds.
package lock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dbsmedya/gomigrate/internal/database"
)

// ErrLockTimeout is returned when the lock could not be acquired in time.
var ErrLockTimeout = errors.New("lock acquisition timed out")

// TimeoutImmediate makes a single attempt without waiting.
const TimeoutImmediate = 0

// pollInterval is the pause between attempts while waiting for the lock.
var pollInterval = 250 * time.Millisecond

// AdvisoryLock is a named lock held on a pinned connection.
type AdvisoryLock struct {
	db         *sql.DB
	lockName   string
	acquireSQL string
	releaseSQL string
	supported  bool

	conn *sql.Conn
	held bool
}

// NewAdvisoryLock creates a lock using the dialect of h.
func NewAdvisoryLock(h *database.Handle, lockName string) *AdvisoryLock {
	acquire, release, ok := h.Dialect.LockSQL()
	return &AdvisoryLock{
		db:         h.DB,
		lockName:   lockName,
		acquireSQL: acquire,
		releaseSQL: release,
		supported:  ok,
	}
}

// Supported reports whether the engine has advisory locks.
func (a *AdvisoryLock) Supported() bool {
	return a.supported
}

// AcquireLock tries to take the lock, retrying until timeoutSeconds elapse.
// It returns false without error when another session holds the lock. A
// negative timeout waits until ctx is done.
func (a *AdvisoryLock) AcquireLock(ctx context.Context, timeoutSeconds int) (bool, error) {
	if a.held {
		return true, nil
	}
	if !a.supported {
		a.held = true
		return true, nil
	}

	conn, err := a.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to pin connection for lock %q: %w", a.lockName, err)
	}

	var deadline time.Time
	if timeoutSeconds >= 0 {
		deadline = time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
	}

	for {
		ok, err := a.try(ctx, conn)
		if err != nil {
			conn.Close()
			return false, err
		}
		if ok {
			a.conn = conn
			a.held = true
			return true, nil
		}
		if !deadline.IsZero() && !time.Now().Add(pollInterval).Before(deadline) {
			conn.Close()
			return false, nil
		}

		select {
		case <-ctx.Done():
			conn.Close()
			return false, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (a *AdvisoryLock) try(ctx context.Context, conn *sql.Conn) (bool, error) {
	var result sql.NullBool
	if err := conn.QueryRowContext(ctx, a.acquireSQL, a.lockName).Scan(&result); err != nil {
		return false, fmt.Errorf("failed to acquire lock %q: %w", a.lockName, err)
	}
	if !result.Valid {
		return false, fmt.Errorf("lock %q: acquire returned NULL", a.lockName)
	}
	return result.Bool, nil
}

// ReleaseLock releases the lock and returns its connection to the pool.
// It returns false when the lock was not held.
func (a *AdvisoryLock) ReleaseLock(ctx context.Context) (bool, error) {
	if !a.held {
		return false, nil
	}
	a.held = false
	if a.conn == nil {
		return true, nil
	}

	conn := a.conn
	a.conn = nil
	defer conn.Close()

	var result sql.NullBool
	if err := conn.QueryRowContext(ctx, a.releaseSQL, a.lockName).Scan(&result); err != nil {
		return false, fmt.Errorf("failed to release lock %q: %w", a.lockName, err)
	}
	if !result.Valid {
		return false, fmt.Errorf("lock %q did not exist on release", a.lockName)
	}
	return result.Bool, nil
}

// IsHeld reports whether this instance holds the lock.
func (a *AdvisoryLock) IsHeld() bool {
	return a.held
}

// LockName returns the lock name.
func (a *AdvisoryLock) LockName() string {
	return a.lockName
}

// TryAcquire makes a single attempt.
func (a *AdvisoryLock) TryAcquire(ctx context.Context) (bool, error) {
	return a.AcquireLock(ctx, TimeoutImmediate)
}

// WithLock runs fn while holding the lock.
func (a *AdvisoryLock) WithLock(ctx context.Context, timeoutSeconds int, fn func() error) error {
	acquired, err := a.AcquireLock(ctx, timeoutSeconds)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("%w: lock %q is held by another run", ErrLockTimeout, a.lockName)
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = a.ReleaseLock(releaseCtx)
	}()

	return fn()
}

// GenerateTargetLockName returns the lock name guarding a target table.
func GenerateTargetLockName(table string) string {
	sanitized := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' || r == '.' {
			return r
		}
		return '_'
	}, table)

	return fmt.Sprintf("gomigrate:target:%s", sanitized)
}

// NewTargetLock creates the lock guarding table on the target handle.
func NewTargetLock(h *database.Handle, table string) *AdvisoryLock {
	name := table
	if h.Schema != "" {
		name = h.Schema + "." + table
	}
	return NewAdvisoryLock(h, GenerateTargetLockName(name))
}

// WithTargetLock runs fn while holding the target lock of table.
func WithTargetLock(ctx context.Context, h *database.Handle, table string, timeoutSeconds int, fn func() error) error {
	return NewTargetLock(h, table).WithLock(ctx, timeoutSeconds, fn)
}
