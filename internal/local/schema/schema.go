// Package schema creates the relational schema of the local data layer.
//
// Tables, foreign keys and indexes are defined as embedded goose migrations
// written with CREATE ... IF NOT EXISTS. The goose version table lives inside
// the database image, so a rehydrated image skips migrations it already has
// and Ensure is a no-op on every start after the first.
package schema

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/dmitrijs2005/brainbox/internal/local/engine"
	"github.com/dmitrijs2005/brainbox/internal/logging"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedded embed.FS

// Tables lists the tables created by the schema, parents first.
var Tables = []string{"users", "sessions", "categories", "items", "tag_icons"}

// Migrations returns the migration files as an fs.FS rooted at the
// migrations directory.
func Migrations() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Ensure applies pending migrations and reports how many ran. Zero means the
// schema was already in place. Any error is fatal for the caller: nothing
// works without the schema.
func Ensure(ctx context.Context, e *engine.Engine, log logging.Logger) (int, error) {
	if log == nil {
		log = logging.Nop()
	}

	var applied int
	err := e.RunDB(ctx, func(ctx context.Context, db *sql.DB) error {
		provider, err := goose.NewProvider(goose.DialectSQLite3, db, Migrations())
		if err != nil {
			return fmt.Errorf("goose provider: %w", err)
		}

		results, err := provider.Up(ctx)
		if err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		for _, r := range results {
			log.Info(ctx, "migration applied", "version", r.Source.Version, "duration", r.Duration)
		}
		applied = len(results)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return applied, nil
}
