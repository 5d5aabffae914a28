// Package bootstrap prepares storage infrastructure before the application is wired.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/memearena/core/config"
	coredatabase "github.com/m3rciful/memearena/core/database"
	"github.com/m3rciful/memearena/core/logger"
)

// Options control the bootstrap pipeline. Nil hooks select the core/database defaults.
type Options struct {
	Config *coreconfig.Config

	Connect func(ctx context.Context, cfg coreconfig.DatabaseConfig) (*sqlx.DB, error)
	Migrate func(ctx context.Context, cfg coreconfig.DatabaseConfig) error
}

// Result exposes infrastructure initialized by Run. DB is nil for in-memory storage.
type Result struct {
	DB *sqlx.DB
}

// Close releases the database handle, if any.
func (r *Result) Close() error {
	if r == nil || r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

// Run migrates and connects to Postgres when the postgres storage driver is selected.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, errors.New("bootstrap: nil config provided")
	}
	driver := opts.Config.Storage.Driver
	if driver != coreconfig.StoragePostgres {
		logger.Info(ctx, logger.CompApp, "storage", slog.String("driver", driver))
		return &Result{}, nil
	}

	migrate := opts.Migrate
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}
	if err := migrate(ctx, opts.Config.Database); err != nil {
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}

	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	db, err := connect(ctx, opts.Config.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}
	logger.Info(ctx, logger.CompApp, "storage", slog.String("driver", driver))
	return &Result{DB: db}, nil
}
