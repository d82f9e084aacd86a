// Package postgres opens the service database and applies its schema.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	_ "github.com/lib/pq"

	"mountpass/internal/platform/config"
	"mountpass/internal/platform/postgres/migrations"
)

const migrationTable = "schema_migrations"

// Open connects with lib/pq and verifies the connection.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate applies the embedded migrations.
func Migrate(ctx context.Context, db *sql.DB) ([]string, error) {
	return ApplyMigrations(ctx, db, migrations.FS)
}

// ApplyMigrations executes every *.sql file in name order at most once and
// returns the names applied by this call. Each file runs in its own
// transaction together with its schema_migrations row.
func ApplyMigrations(ctx context.Context, db *sql.DB, migrationFS fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS `+migrationTable+` (
			name       TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return nil, fmt.Errorf("ensure migration table: %w", err)
	}

	var applied []string
	for _, file := range files {
		content, err := fs.ReadFile(migrationFS, file)
		if err != nil {
			return applied, fmt.Errorf("read migration %s: %w", file, err)
		}
		ok, err := applyOne(ctx, db, file, ExtractUpMigration(string(content)))
		if err != nil {
			return applied, err
		}
		if ok {
			applied = append(applied, file)
		}
	}
	return applied, nil
}

func applyOne(ctx context.Context, db *sql.DB, name, upSQL string) (bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin migration %s: %w", name, err)
	}
	defer func() { _ = tx.Rollback() }()

	// Serialises concurrent starts of several instances.
	if _, err := tx.ExecContext(ctx, `LOCK TABLE `+migrationTable+` IN EXCLUSIVE MODE`); err != nil {
		return false, fmt.Errorf("lock migrations: %w", err)
	}
	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+migrationTable+` WHERE name = $1)`, name,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("check migration %s: %w", name, err)
	}
	if exists {
		return false, nil
	}
	if strings.TrimSpace(upSQL) != "" {
		if _, err := tx.ExecContext(ctx, upSQL); err != nil {
			return false, fmt.Errorf("exec migration %s: %w", name, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO `+migrationTable+` (name) VALUES ($1)`, name,
	); err != nil {
		return false, fmt.Errorf("record migration %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit migration %s: %w", name, err)
	}
	return true, nil
}

// ExtractUpMigration returns the SQL in the -- +migrate Up section.
func ExtractUpMigration(content string) string {
	const up, down = "-- +migrate Up", "-- +migrate Down"
	upIdx := strings.Index(content, up)
	if upIdx == -1 {
		return content
	}
	downIdx := strings.Index(content, down)
	if downIdx == -1 {
		return content[upIdx+len(up):]
	}
	return content[upIdx+len(up) : downIdx]
}

// Truncate empties the given tables and resets their sequences.
func Truncate(ctx context.Context, db *sql.DB, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	_, err := db.ExecContext(ctx, `TRUNCATE `+strings.Join(tables, ", ")+` RESTART IDENTITY CASCADE`)
	return err
}
