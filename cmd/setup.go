package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/segue/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the example configuration to the config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := r.configName()
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", path)

	r.writePlain("✓ Config written to %s\n", path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set credentials.spotify.client_id and client_secret\n")
	r.writePlain("2. Run 'segue spotify auth' to read private playlists and publish\n")
	return nil
}

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openRaw()
	if err != nil {
		return err
	}
	defer db.Close()

	pending, err := shared.PendingMigrations(db)
	if err != nil {
		return err
	}
	if cmd.Bool("status") {
		if len(pending) == 0 {
			r.writePlain("✓ %s is up to date\n", r.config.Database.Path)
			return nil
		}
		r.writePlain("%d pending migrations:\n", len(pending))
		for _, name := range pending {
			r.writePlain("  %s\n", name)
		}
		return nil
	}

	r.logger.Info("running database migrations", "pending", len(pending))
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	r.writePlain("✓ Applied %d migrations to %s\n", len(pending), r.config.Database.Path)
	return nil
}

// SetupRollback reverts the most recent migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openRaw()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := shared.RollbackMigration(db); err != nil {
		return err
	}
	r.writePlain("✓ Rolled back the latest migration of %s\n", r.config.Database.Path)
	return nil
}

// openRaw opens the configured database without migrating it.
func (r *Runner) openRaw() (*sql.DB, error) {
	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	return db, nil
}

// setupCommand handles setup operations for the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write an example config file",
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "status",
						Usage: "List pending migrations without applying them",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Revert the most recent migration",
				Action: r.SetupRollback,
			},
		},
	}
}
