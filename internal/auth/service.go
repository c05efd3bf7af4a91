package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/shelfwise/shelfwise-core/internal/infrastructure/database"
	"github.com/shelfwise/shelfwise-core/internal/infrastructure/logging"
)

// defaultMaxLoginAttempts locks an account after this many consecutive
// failures when no limit is configured.
const defaultMaxLoginAttempts = 5

// Service implements staff authentication and account management on top
// of a UserRepository. Every repository call runs under the busy-retry
// policy, so transient lock contention during a login is retried rather
// than surfaced to the caller.
type Service struct {
	users       UserRepository
	log         *logging.Logger
	maxAttempts int
	retry       database.RetryPolicy
}

// NewService creates an auth service. maxAttempts <= 0 selects the default
// lockout threshold.
func NewService(users UserRepository, log *logging.Logger, maxAttempts int, retry database.RetryPolicy) *Service {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxLoginAttempts
	}
	return &Service{
		users:       users,
		log:         log.With("component", "auth"),
		maxAttempts: maxAttempts,
		retry:       retry,
	}
}

// withRetry applies the service's busy-retry policy to one repository call.
func (s *Service) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	return database.WithRetry(ctx, s.retry, fn)
}

// Authenticate verifies a username/password pair.
//
// Unknown usernames and wrong passwords both return ErrInvalidCredentials,
// so a caller cannot probe which usernames exist. Each failure on a real
// account bumps its counter; once the counter reaches the threshold the
// account answers ErrAccountLocked even to the correct password, until an
// administrator unlocks it.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	var user *User
	err := s.withRetry(ctx, func(ctx context.Context) error {
		u, err := s.users.GetByUsername(ctx, username)
		if err != nil {
			return err
		}
		user = u
		return nil
	})
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	if user.LoginAttempts >= s.maxAttempts {
		s.log.Warn("login rejected: account locked", "username", username)
		return nil, ErrAccountLocked
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		if err := s.withRetry(ctx, func(ctx context.Context) error {
			return s.users.IncrementLoginAttempts(ctx, user.ID)
		}); err != nil {
			s.log.Error("recording failed login", "username", username, "error", err)
		}
		s.log.Warn("login failed", "username", username, "attempts", user.LoginAttempts+1)
		return nil, ErrInvalidCredentials
	}

	if user.LoginAttempts > 0 {
		if err := s.withRetry(ctx, func(ctx context.Context) error {
			return s.users.ResetLoginAttempts(ctx, user.ID)
		}); err != nil {
			s.log.Error("resetting login attempts", "username", username, "error", err)
		}
		user.LoginAttempts = 0
	}

	s.log.Info("login succeeded", "username", username, "role", string(user.Role))
	return user, nil
}

// AddUser creates a staff account with the given role.
func (s *Service) AddUser(ctx context.Context, username, password string, role Role) (*User, error) {
	if !IsValidUsername(username) {
		return nil, fmt.Errorf("invalid username %q", username)
	}
	if !IsValidRole(role) {
		return nil, fmt.Errorf("invalid role %q", role)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &User{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.withRetry(ctx, func(ctx context.Context) error {
		return s.users.Create(ctx, user)
	}); err != nil {
		// Account creation is a softer contract than circulation writes:
		// the caller shows a generic failure, the log carries the cause.
		s.log.Error("creating staff account", "username", username, "error", err)
		return nil, err
	}

	s.log.Info("staff account created", "username", username, "role", string(role))
	return user, nil
}

// Unlock clears a locked account's failure counter so it can log in again.
func (s *Service) Unlock(ctx context.Context, username string) error {
	return s.withRetry(ctx, func(ctx context.Context) error {
		user, err := s.users.GetByUsername(ctx, username)
		if err != nil {
			return err
		}
		if err := s.users.ResetLoginAttempts(ctx, user.ID); err != nil {
			return err
		}
		s.log.Info("account unlocked", "username", username)
		return nil
	})
}

// ChangePassword replaces a staff account's password.
func (s *Service) ChangePassword(ctx context.Context, username, newPassword string) error {
	hash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	return s.withRetry(ctx, func(ctx context.Context) error {
		user, err := s.users.GetByUsername(ctx, username)
		if err != nil {
			return err
		}
		return s.users.UpdatePassword(ctx, user.ID, hash)
	})
}
