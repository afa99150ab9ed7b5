package repository

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/josh-kwaku/building-ledger/migrations"
)

// Migrate applies every embedded *.up.sql file that is not yet recorded in
// schema_migrations, in file name order, each in its own transaction.
func Migrate(ctx context.Context, db *sql.DB) (int, error) {
	if _, err := db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_migrations (
			version    VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	); err != nil {
		return 0, fmt.Errorf("Migrate: create schema_migrations: %w", err)
	}

	files, err := fs.Glob(migrations.FS, "*.up.sql")
	if err != nil {
		return 0, fmt.Errorf("Migrate: glob: %w", err)
	}
	sort.Strings(files)

	applied := 0
	for _, f := range files {
		version := strings.TrimSuffix(f, ".up.sql")

		var exists bool
		err := db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, version,
		).Scan(&exists)
		if err != nil {
			return applied, fmt.Errorf("Migrate: check %s: %w", version, err)
		}
		if exists {
			continue
		}

		content, err := fs.ReadFile(migrations.FS, f)
		if err != nil {
			return applied, fmt.Errorf("Migrate: read %s: %w", f, err)
		}

		if err := applyMigration(ctx, db, version, string(content)); err != nil {
			return applied, fmt.Errorf("Migrate: %w", err)
		}
		slog.Info("migration applied", "version", version)
		applied++
	}
	return applied, nil
}

func applyMigration(ctx context.Context, db *sql.DB, version, content string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("applyMigration %s: begin tx: %w", version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, content); err != nil {
		return fmt.Errorf("applyMigration %s: %w", version, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version) VALUES ($1)`, version,
	); err != nil {
		return fmt.Errorf("applyMigration %s: record version: %w", version, err)
	}
	return tx.Commit()
}
