package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// migrations are applied in order; PRAGMA user_version records how many have run.
var migrations = []string{
	`CREATE TABLE accounts (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		created_at INTEGER NOT NULL,
		doc TEXT NOT NULL
	);
	CREATE INDEX idx_accounts_created ON accounts(created_at DESC, id DESC);`,

	`CREATE TABLE reviews (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		slug TEXT NOT NULL,
		locale TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		doc TEXT NOT NULL,
		UNIQUE(kind, slug, locale)
	);
	CREATE INDEX idx_reviews_listing ON reviews(kind, status, locale, created_at DESC, id DESC);`,

	`CREATE TABLE articles (
		id TEXT PRIMARY KEY,
		slug TEXT NOT NULL,
		locale TEXT NOT NULL,
		category TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		doc TEXT NOT NULL,
		UNIQUE(slug, locale)
	);
	CREATE INDEX idx_articles_listing ON articles(category, status, locale, created_at DESC, id DESC);`,

	`CREATE TABLE contacts (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		doc TEXT NOT NULL
	);
	CREATE INDEX idx_contacts_listing ON contacts(status, created_at DESC, id DESC);`,

	`CREATE TABLE scripts (
		id TEXT PRIMARY KEY,
		placement TEXT NOT NULL,
		enabled INTEGER NOT NULL,
		sort_order INTEGER NOT NULL,
		name TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		doc TEXT NOT NULL
	);
	CREATE TABLE media (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		doc TEXT NOT NULL
	);`,
}

func migrate(ctx context.Context, db *sql.DB, logger *zap.Logger) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}
	for i := version; i < len(migrations); i++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("sqlite: begin migration %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("sqlite: apply migration %d: %w", i+1, err)
		}
		// PRAGMA does not accept bound parameters.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("sqlite: record migration %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("sqlite: commit migration %d: %w", i+1, err)
		}
		logger.Info("sqlite migration applied", zap.Int("version", i+1))
	}
	return nil
}
