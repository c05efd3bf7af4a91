package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"
)

// busyErr fabricates the transient error the engine reports under lock
// contention.
func busyErr() error {
	return sqlite3.Error{Code: sqlite3.ErrBusy}
}

func TestWithRetrySucceedsAfterBusy(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: 20 * time.Millisecond}

	attempts := 0
	start := time.Now()
	err := WithRetry(context.Background(), policy, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return busyErr()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithRetry() error = %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}

	// Two backoffs: base then doubled (20ms + 40ms).
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("elapsed = %v, want at least 60ms of backoff", elapsed)
	}
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}

	attempts := 0
	err := WithRetry(context.Background(), policy, func(ctx context.Context) error {
		attempts++
		return busyErr()
	})
	if err == nil {
		t.Fatal("WithRetry() = nil after persistent busy")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Errorf("error = %v, want attempt count in message", err)
	}
	if !IsBusy(err) {
		t.Errorf("final error no longer unwraps to busy: %v", err)
	}
}

func TestWithRetryDoesNotRetryOtherErrors(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond}
	boom := errors.New("constraint violated")

	attempts := 0
	err := WithRetry(context.Background(), policy, func(ctx context.Context) error {
		attempts++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithRetry() error = %v, want original error", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry)", attempts)
	}
}

func TestWithRetryHonoursContextDuringBackoff(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 10, BaseDelay: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := WithRetry(ctx, policy, func(ctx context.Context) error {
		return busyErr()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("WithRetry() error = %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancellation took %v, backoff did not respect context", elapsed)
	}
}

func TestWithRetryNormalisesZeroPolicy(t *testing.T) {
	// A zero policy must still terminate instead of looping forever.
	attempts := 0
	err := WithRetry(context.Background(), RetryPolicy{}, func(ctx context.Context) error {
		attempts++
		return nil
	})
	if err != nil {
		t.Fatalf("WithRetry() error = %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestIsBusy(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"busy", sqlite3.Error{Code: sqlite3.ErrBusy}, true},
		{"locked", sqlite3.Error{Code: sqlite3.ErrLocked}, true},
		{"wrapped busy", fmt.Errorf("executing: %w", sqlite3.Error{Code: sqlite3.ErrBusy}), true},
		{"constraint", sqlite3.Error{Code: sqlite3.ErrConstraint}, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBusy(tt.err); got != tt.want {
				t.Errorf("IsBusy() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	unique := sqlite3.Error{
		Code:         sqlite3.ErrConstraint,
		ExtendedCode: sqlite3.ErrConstraintUnique,
	}
	if !IsUniqueViolation(unique) {
		t.Error("IsUniqueViolation() = false for unique constraint error")
	}
	if !IsUniqueViolation(fmt.Errorf("inserting: %w", unique)) {
		t.Error("IsUniqueViolation() = false for wrapped unique constraint error")
	}

	other := sqlite3.Error{
		Code:         sqlite3.ErrConstraint,
		ExtendedCode: sqlite3.ErrConstraintCheck,
	}
	if IsUniqueViolation(other) {
		t.Error("IsUniqueViolation() = true for check constraint error")
	}
	if IsUniqueViolation(errors.New("boom")) {
		t.Error("IsUniqueViolation() = true for plain error")
	}
}
