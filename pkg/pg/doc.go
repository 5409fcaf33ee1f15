// Package pg provides utilities for interacting with PostgreSQL using the
// pgx/v5 driver. It offers a thin abstraction around connection pooling,
// health checks, and common error helpers so that services can bootstrap a
// resilient database layer with a few lines of code.
//
// # Usage
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    panic(err)
//	}
//	defer pool.Close()
//
// Schema ownership stays with the packages that own the tables; the billing
// store, for example, embeds and applies its own goose migrations against the
// pool returned here.
//
// # Configuration
//
// All configuration values come from environment variables so they can be
// tuned per-environment without code changes. Refer to the field tags in
// Config for exact variable names and defaults.
//
// # Error Handling
//
// Helpers such as [pg.IsDuplicateKeyError] or [pg.IsForeignKeyViolationError]
// unwrap `*pgconn.PgError` values and make error classification trivial
// inside business logic.
package pg
