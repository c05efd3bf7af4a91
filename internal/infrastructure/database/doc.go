// Package database provides SQLite database connectivity for Shelfwise Core.
//
// This package manages:
//   - A fixed-size connection pool with WAL mode for concurrent access
//   - Schema migrations (additive-only)
//   - Retry-on-busy execution for transient lock contention
//   - Scoped connection and transaction helpers
//   - Online backup snapshots
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Concurrency Model:
//   - WAL mode allows concurrent reads during writes
//   - The busy timeout bounds how long one statement waits for a lock
//   - WithRetry bounds the total number of attempts on contention
//   - Callers never hold a connection outside WithConn/WithTx
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5, PoolSize: 5})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration Strategy:
//
// Migrations are additive-only so old database files upgrade in place:
//   - New columns must be NULLABLE or have DEFAULT values
//   - Never DROP or RENAME columns
//   - Each migration file has both .up.sql and .down.sql
package database
