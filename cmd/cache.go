package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/cadence/internal/repositories"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/urfave/cli/v3"
)

// tempoRepo opens the cache database and returns a repository over it. The
// caller owns the returned close function.
func (r *Runner) tempoRepo() (*repositories.TempoRepository, func(), error) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return repositories.NewTempoRepository(db), func() { db.Close() }, nil
}

// CacheStats shows how many tempo estimates are cached locally.
func (r *Runner) CacheStats(ctx context.Context, cmd *cli.Command) error {
	repo, closer, err := r.tempoRepo()
	if err != nil {
		return err
	}
	defer closer()

	count, err := repo.Count()
	if err != nil {
		return err
	}

	r.writePlainHeader("Tempo Cache")
	r.writePlain("Cached estimates: %d\n", count)
	r.writePlain("Database: %s\n", r.config.Database.Path)
	return nil
}

// CacheClear deletes every cached tempo estimate.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	repo, closer, err := r.tempoRepo()
	if err != nil {
		return err
	}
	defer closer()

	deleted, err := repo.Clear()
	if err != nil {
		return err
	}

	r.logger.Infof("cleared tempo cache (%d rows)", deleted)
	r.writePlain("✓ Deleted %d cached estimates\n", deleted)
	return nil
}
