package logging

import (
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// New returns a JSON logger backed by a zap production core, together with
// a function that flushes buffered entries.
func New(service, env, level string) (*slog.Logger, func() error, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	cfg.InitialFields = map[string]any{
		"service": service,
		"env":     env,
	}

	z, err := cfg.Build()
	if err != nil {
		return nil, nil, err
	}

	return slog.New(zapslog.NewHandler(z.Core())), z.Sync, nil
}
