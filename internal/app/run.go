package app

import (
	"context"
	"errors"

	"github.com/m3rciful/memearena/core/bootstrap"
	"github.com/m3rciful/memearena/core/config"
	"github.com/m3rciful/memearena/core/database"
	"github.com/m3rciful/memearena/core/logger"
)

// Serve bootstraps storage, wires the App and runs the bot until ctx is done.
func Serve(ctx context.Context, cfg *config.Config) error {
	infra, err := bootstrap.Run(ctx, bootstrap.Options{Config: cfg})
	if err != nil {
		return err
	}
	defer func() {
		if err := infra.Close(); err != nil {
			logger.Warn(logger.Detach(ctx), logger.CompDB, "db.close", logger.Err(err))
		}
	}()

	a, err := New(cfg, infra.DB)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Serve(ctx)
}

// Migrate applies the embedded migrations and exits.
func Migrate(ctx context.Context, cfg *config.Config) error {
	if cfg.Storage.Driver != config.StoragePostgres {
		return errors.New("migrate: storage.driver must be postgres")
	}
	return database.RunMigrations(ctx, cfg.Database)
}
