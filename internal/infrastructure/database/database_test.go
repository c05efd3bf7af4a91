package database

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// openTestDB opens a temp-file database with a small pool.
func openTestDB(t *testing.T, poolSize int) *DB {
	t.Helper()

	db, err := Open(Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
		PoolSize:    poolSize,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close() //nolint:errcheck // test cleanup
	})
	return db
}

func TestOpenCreatesDirectoryAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "shelfwise.db")

	db, err := Open(Config{Path: path, WALMode: true, BusyTimeout: 5, PoolSize: 2})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // test cleanup

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("database file not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permissions = %o, want 0600", perm)
	}
	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}

	if err := db.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestOpenDefaultsPoolSize(t *testing.T) {
	db, err := Open(Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // test cleanup

	if max := db.DB.Stats().MaxOpenConnections; max != defaultPoolSize {
		t.Errorf("MaxOpenConnections = %d, want %d", max, defaultPoolSize)
	}
}

func TestWithConnBlocksWhenExhausted(t *testing.T) {
	db := openTestDB(t, 1)
	ctx := context.Background()

	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		db.WithConn(ctx, func(conn *sql.Conn) error { //nolint:errcheck // goroutine result not needed
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	// The only connection is held: a second acquisition must block until
	// its context expires.
	shortCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	err := db.WithConn(shortCtx, func(conn *sql.Conn) error { return nil })
	if err == nil {
		t.Fatal("WithConn() succeeded while pool was exhausted")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WithConn() error = %v, want deadline exceeded", err)
	}

	// After release the connection is reusable.
	close(release)
	if err := db.WithConn(ctx, func(conn *sql.Conn) error {
		return conn.PingContext(ctx)
	}); err != nil {
		t.Errorf("WithConn() after release error = %v", err)
	}
}

func TestWithTxCommitAndRollback(t *testing.T) {
	db := openTestDB(t, 2)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx,
		"CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT NOT NULL) STRICT",
	); err != nil {
		t.Fatalf("creating table: %v", err)
	}

	count := func() int {
		t.Helper()
		var n int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items").Scan(&n); err != nil {
			t.Fatalf("counting items: %v", err)
		}
		return n
	}

	// Committed transaction persists.
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO items (name) VALUES ('kept')")
		return err
	})
	if err != nil {
		t.Fatalf("WithTx() error = %v", err)
	}
	if got := count(); got != 1 {
		t.Errorf("count after commit = %d, want 1", got)
	}

	// Failed transaction rolls back everything it wrote.
	sentinel := errors.New("abort")
	err = db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO items (name) VALUES ('discarded')"); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("WithTx() error = %v, want sentinel", err)
	}
	if got := count(); got != 1 {
		t.Errorf("count after rollback = %d, want 1", got)
	}
}

func TestBackup(t *testing.T) {
	db := openTestDB(t, 2)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx,
		"CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT NOT NULL) STRICT",
	); err != nil {
		t.Fatalf("creating table: %v", err)
	}
	if _, err := db.ExecContext(ctx, "INSERT INTO items (name) VALUES ('survives')"); err != nil {
		t.Fatalf("inserting row: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "backups", "snapshot.db")
	if err := db.Backup(ctx, dest); err != nil {
		t.Fatalf("Backup() error = %v", err)
	}

	// The snapshot must be an independent, openable database.
	snapshot, err := Open(Config{Path: dest, BusyTimeout: 5, PoolSize: 1})
	if err != nil {
		t.Fatalf("opening snapshot: %v", err)
	}
	defer snapshot.Close() //nolint:errcheck // test cleanup

	var name string
	if err := snapshot.QueryRowContext(ctx, "SELECT name FROM items").Scan(&name); err != nil {
		t.Fatalf("reading snapshot: %v", err)
	}
	if name != "survives" {
		t.Errorf("snapshot row = %q", name)
	}
}

func TestBackupRejectsBadDestinations(t *testing.T) {
	db := openTestDB(t, 1)
	ctx := context.Background()

	if err := db.Backup(ctx, ""); err == nil {
		t.Error("Backup(\"\") succeeded")
	}
	if err := db.Backup(ctx, db.Path()); err == nil {
		t.Error("Backup() over the live file succeeded")
	}
}
