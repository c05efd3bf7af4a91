// Package logging provides structured logging for Shelfwise Core.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application.
//
// Usage:
//
//	log := logging.New(cfg.Logging, version)
//	log.Info("book issued", "isbn", isbn, "member_id", memberID)
//
// Components should tag themselves once and reuse the derived logger:
//
//	circLog := log.With("component", "circulation")
package logging
