package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/joao-fontenele/cellarflow/internal/config"
	"github.com/joao-fontenele/cellarflow/internal/database"
	"github.com/joao-fontenele/cellarflow/internal/logging"
	"github.com/joao-fontenele/cellarflow/internal/telemetry"
)

const usage = "usage: migrate <up|down|version|force N|dynamo-up>"

func main() {
	flag.Parse()
	args := flag.Args()

	cfg, err := config.Load("migrate", "")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, sync, err := logging.New(cfg.Service, cfg.Env, cfg.LogLevel)
	if err != nil {
		slog.Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	if err := run(args, cfg, logger); err != nil {
		logger.Error("migrate failed", "error", err)
		_ = sync()
		os.Exit(1)
	}
	_ = sync()
}

func run(args []string, cfg config.Config, logger *slog.Logger) error {
	if len(args) < 1 {
		return errors.New(usage)
	}

	command := args[0]
	if command == "dynamo-up" {
		return dynamoUp(cfg, logger)
	}

	if err := cfg.Require("POSTGRES_URL"); err != nil {
		return err
	}

	m, err := migrate.New(cfg.MigrationsPath, cfg.PostgresURL)
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()

	switch command {
	case "up":
		err = m.Up()
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("no pending migrations")
			return nil
		}
		if err != nil {
			return err
		}
		logger.Info("migrations applied successfully")

	case "down":
		err = m.Steps(-1)
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("no migrations to rollback")
			return nil
		}
		if err != nil {
			return err
		}
		logger.Info("migration rolled back successfully")

	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			logger.Info("no migrations applied yet")
			return nil
		}
		if err != nil {
			return err
		}
		logger.Info("current migration version", slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))

	case "force":
		if len(args) < 2 {
			return errors.New(usage)
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return errors.New("force requires a numeric version")
		}
		if err := m.Force(version); err != nil {
			return err
		}
		logger.Info("migration version forced", slog.Int("version", version))

	default:
		return errors.New("unknown command " + command + "; " + usage)
	}

	return nil
}

func dynamoUp(cfg config.Config, logger *slog.Logger) error {
	if err := cfg.Require("DYNAMODB_TABLE"); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	client, err := database.NewDynamoClient(ctx, cfg.AWSRegion, cfg.DynamoEndpoint, telemetry.HTTPClient(30*time.Second))
	if err != nil {
		return err
	}
	if err := database.EnsureTable(ctx, client, cfg.DynamoTable); err != nil {
		return err
	}

	logger.Info("dynamodb table ready", "table", cfg.DynamoTable)
	return nil
}
