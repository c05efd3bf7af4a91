// Shelfwise Core - Library Management Backend
//
// This is the main entry point for the Shelfwise Core service. It owns
// the embedded SQLite store, circulation rules, staff authentication and
// the scheduled overdue-notice scan; front ends talk to the packages
// under internal/ rather than to the database directly.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/shelfwise/shelfwise-core/migrations"

	"github.com/shelfwise/shelfwise-core/internal/auth"
	"github.com/shelfwise/shelfwise-core/internal/circulation"
	"github.com/shelfwise/shelfwise-core/internal/infrastructure/config"
	"github.com/shelfwise/shelfwise-core/internal/infrastructure/database"
	"github.com/shelfwise/shelfwise-core/internal/infrastructure/logging"
	"github.com/shelfwise/shelfwise-core/internal/notify"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// services is the in-process API surface the desktop front end attaches
// to. Nothing outside these two reaches the database.
type services struct {
	auth   *auth.Service
	engine *circulation.Engine
}

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Shelfwise Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
		PoolSize:    cfg.Database.PoolSize,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path, "pool_size", cfg.Database.PoolSize)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Seed the admin account on first boot. A library with no working
	// admin login is unusable, so a seed failure is fatal.
	users := auth.NewUserRepository(db)
	if _, err := auth.SeedAdmin(ctx, users, log, cfg.Auth.AdminUsername); err != nil {
		return fmt.Errorf("seeding admin account: %w", err)
	}

	retryPolicy := database.RetryPolicy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay(),
	}

	svc := services{
		auth: auth.NewService(users, log, cfg.Auth.MaxLoginAttempts, retryPolicy),
		engine: circulation.NewEngine(db, log, circulation.Options{
			LoanPeriodDays: cfg.Circulation.LoanPeriodDays,
			PageSize:       cfg.Circulation.PageSize,
			Retry:          retryPolicy,
		}),
	}
	log.Info("core services ready",
		"loan_period_days", cfg.Circulation.LoanPeriodDays,
		"page_size", cfg.Circulation.PageSize,
		"max_login_attempts", cfg.Auth.MaxLoginAttempts,
	)

	// Overdue-notice scan (optional)
	if cfg.Notify.Enabled {
		mailer := notify.NewSMTPMailer(cfg.SMTP)
		notifier := notify.NewNotifier(mailer, log, cfg.Library.Name, cfg.Location())

		scheduler, err := notify.NewScheduler(svc.engine, notifier, cfg.Notify.Schedule, log)
		if err != nil {
			return fmt.Errorf("creating overdue scheduler: %w", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
		log.Info("overdue notifications enabled", "schedule", cfg.Notify.Schedule)
	} else {
		log.Info("overdue notifications disabled")
	}

	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	log.Info("Shelfwise Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SHELFWISE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SHELFWISE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
