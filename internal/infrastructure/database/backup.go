package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Backup writes an online copy of the live database to destPath using
// VACUUM INTO, which produces a consistent snapshot without blocking
// concurrent readers.
//
// The destination must not already exist (VACUUM INTO refuses to
// overwrite). Failures propagate to the caller; no partial-file cleanup
// is attempted beyond removing an obviously incomplete destination.
func (db *DB) Backup(ctx context.Context, destPath string) error {
	if destPath == "" {
		return fmt.Errorf("backup destination path is empty")
	}
	if destPath == db.path {
		return fmt.Errorf("backup destination equals live database path")
	}

	if dir := filepath.Dir(destPath); dir != "." {
		if err := os.MkdirAll(dir, dirPermissions); err != nil {
			return fmt.Errorf("creating backup directory: %w", err)
		}
	}

	if _, err := db.DB.ExecContext(ctx, "VACUUM INTO ?", destPath); err != nil {
		// A failed VACUUM INTO can leave a truncated file behind
		os.Remove(destPath) //nolint:errcheck // Best effort cleanup
		return fmt.Errorf("backing up database to %s: %w", destPath, err)
	}

	_ = os.Chmod(destPath, filePermissions) //nolint:errcheck // Snapshot gets same permissions as the live file

	return nil
}
