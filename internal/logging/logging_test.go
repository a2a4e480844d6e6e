package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("honours configured level", func(t *testing.T) {
		logger, sync, err := New("cart", "test", "warn")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer func() { _ = sync() }()

		if logger.Enabled(context.Background(), slog.LevelInfo) {
			t.Error("expected info to be disabled at warn level")
		}
		if !logger.Enabled(context.Background(), slog.LevelWarn) {
			t.Error("expected warn to be enabled")
		}
	})

	t.Run("unknown level falls back to info", func(t *testing.T) {
		logger, sync, err := New("cart", "test", "verbose")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer func() { _ = sync() }()

		if logger.Enabled(context.Background(), slog.LevelDebug) {
			t.Error("expected debug to be disabled")
		}
		if !logger.Enabled(context.Background(), slog.LevelInfo) {
			t.Error("expected info to be enabled")
		}
	})
}
