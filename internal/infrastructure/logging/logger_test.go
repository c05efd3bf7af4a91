package logging

import (
	"log/slog"
	"testing"

	"github.com/shelfwise/shelfwise-core/internal/infrastructure/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewDoesNotPanicOnAnyConfig(t *testing.T) {
	configs := []config.LoggingConfig{
		{Level: "debug", Format: "json", Output: "stdout"},
		{Level: "info", Format: "text", Output: "stderr"},
		{Level: "error", Format: "json", Output: "discard"},
		{}, // all defaults
	}

	for _, cfg := range configs {
		log := New(cfg, "test")
		if log == nil || log.Logger == nil {
			t.Fatalf("New(%+v) returned nil logger", cfg)
		}
		log.Info("smoke", "key", "value")
	}
}

func TestWithAddsAttributes(t *testing.T) {
	base := Discard()
	child := base.With("component", "test")
	if child == base {
		t.Error("With() returned the same logger")
	}
	// Both must remain usable.
	base.Info("parent")
	child.Info("child")
}
