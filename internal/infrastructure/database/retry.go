package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Default retry parameters for transient lock contention.
const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond
)

// RetryPolicy describes a bounded retry loop with exponential backoff for
// operations that hit transient SQLITE_BUSY / SQLITE_LOCKED errors.
//
// The first retry waits BaseDelay; each subsequent retry doubles the wait.
// Any error that is not a busy/locked error propagates immediately.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy returns the policy used when no configuration is given:
// 3 attempts, 500ms initial backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: defaultMaxAttempts,
		BaseDelay:   defaultBaseDelay,
	}
}

// normalise fills in zero fields with defaults so a partially configured
// policy still terminates.
func (p RetryPolicy) normalise() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultBaseDelay
	}
	return p
}

// WithRetry executes fn, retrying while it fails with a transient busy/locked
// error from the storage engine.
//
// After the final attempt the last busy error is returned wrapped, so callers
// see an operation failure rather than a silently swallowed timeout. The
// backoff sleep respects ctx: cancellation during the wait aborts the loop.
func WithRetry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error) error {
	policy = policy.normalise()

	var lastErr error
	delay := policy.BaseDelay

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !IsBusy(err) {
			return err
		}
		lastErr = err

		if attempt == policy.MaxAttempts {
			break
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		}
		delay *= 2
	}

	return fmt.Errorf("operation failed after %d attempts: %w", policy.MaxAttempts, lastErr)
}

// IsBusy reports whether err is a transient SQLITE_BUSY or SQLITE_LOCKED
// error, i.e. another writer currently holds the file lock.
func IsBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// IsUniqueViolation reports whether err is a UNIQUE constraint failure.
// Repositories map this onto their duplicate-key sentinel errors.
func IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint &&
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
