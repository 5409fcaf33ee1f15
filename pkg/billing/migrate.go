package billing

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies the billing schema migrations embedded in this package.
// Safe to call on every startup; goose tracks applied versions.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	migrations, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return errors.Join(ErrStoreFailed, fmt.Errorf("open embedded migrations: %w", err))
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations)
	if err != nil {
		return errors.Join(ErrStoreFailed, fmt.Errorf("create migration provider: %w", err))
	}
	if _, err := provider.Up(ctx); err != nil {
		return errors.Join(ErrStoreFailed, fmt.Errorf("apply billing migrations: %w", err))
	}
	return nil
}
