package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/shelfwise/shelfwise-core/internal/infrastructure/logging"
)

// seedPasswordBytes is the number of random bytes for the seed admin password.
const seedPasswordBytes = 16

// SeedAdmin creates the initial administrator account on first boot if the
// configured admin username does not exist yet. The generated password is
// logged at warn level and must be changed immediately.
// Returns the generated password (empty string if seeding was skipped).
func SeedAdmin(ctx context.Context, users UserRepository, logger *logging.Logger, username string) (string, error) {
	if username == "" {
		username = "admin"
	}

	_, err := users.GetByUsername(ctx, username)
	if err == nil {
		logger.Info("admin account exists, skipping seed", "username", username)
		return "", nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return "", fmt.Errorf("checking admin account: %w", err)
	}

	passwordBytes := make([]byte, seedPasswordBytes)
	if _, err := rand.Read(passwordBytes); err != nil { //nolint:govet // shadow: err re-declared in nested scope
		return "", fmt.Errorf("generating seed password: %w", err)
	}
	password := hex.EncodeToString(passwordBytes)

	hash, err := HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing seed password: %w", err)
	}

	admin := &User{
		Username:     username,
		PasswordHash: hash,
		Role:         RoleAdmin,
	}
	if err := users.Create(ctx, admin); err != nil {
		return "", fmt.Errorf("creating seed admin: %w", err)
	}

	logger.Warn("seed admin account created",
		"username", username,
		"password", password,
		"action_required", "change this password immediately",
	)

	return password, nil
}
