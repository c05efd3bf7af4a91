package auth

import (
	"errors"
	"regexp"
	"time"
)

// usernamePattern defines the valid format for usernames:
// alphanumeric, dots, hyphens, underscores, 1-64 characters.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// maxUsernameLength is the maximum allowed username length.
const maxUsernameLength = 64

// IsValidUsername checks if a username meets format requirements.
// Usernames must be 1-64 characters, alphanumeric with dots, hyphens, underscores.
func IsValidUsername(username string) bool {
	return len(username) <= maxUsernameLength && usernamePattern.MatchString(username)
}

// Role represents an authorisation tier in the system.
type Role string

const (
	// RoleLibrarian is day-to-day staff: catalogue, members, circulation.
	RoleLibrarian Role = "librarian"

	// RoleAdmin additionally manages staff accounts, backups and
	// configuration.
	RoleAdmin Role = "admin"
)

// ValidRoles is the set of valid staff roles.
var ValidRoles = []Role{RoleLibrarian, RoleAdmin}

// IsValidRole returns true if the role is a valid staff role.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// User represents a staff account. Members are not users: they never log
// in, so they live in the circulation schema instead.
type User struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	PasswordHash  string    `json:"-"` // never serialised
	Role          Role      `json:"role"`
	LoginAttempts int       `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameExists     = errors.New("username already exists")
	ErrAccountLocked      = errors.New("account locked after repeated failures")
)
