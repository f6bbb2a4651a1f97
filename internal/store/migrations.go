package store

import (
	"context"
	"database/sql"
	"fmt"

	"scholarforge/internal/logging"
)

// Schema versions:
// v1: items, item_answers, skills
// v2: coordination_objects, session_plans, diagnostics
// v3: module_runs journal
const CurrentSchemaVersion = 3

// migration is one versioned schema step.
type migration struct {
	version    int
	statements []string
}

var migrations = []migration{
	{1, []string{
		`CREATE TABLE IF NOT EXISTS items (
			id TEXT PRIMARY KEY,
			skill_id TEXT NOT NULL,
			domain TEXT NOT NULL DEFAULT '',
			level INTEGER NOT NULL DEFAULT 0,
			difficulty INTEGER NOT NULL,
			stem TEXT NOT NULL,
			options TEXT NOT NULL,
			explanation TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			prompt_version TEXT NOT NULL DEFAULT '',
			run_id TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_items_skill ON items(skill_id, difficulty, status)`,
		`CREATE INDEX IF NOT EXISTS idx_items_domain ON items(domain, level, status)`,
		`CREATE TABLE IF NOT EXISTS item_answers (
			item_id TEXT PRIMARY KEY REFERENCES items(id),
			correct_index INTEGER NOT NULL,
			correct_option TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS skills (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			domain TEXT NOT NULL DEFAULT '',
			level INTEGER NOT NULL DEFAULT 0,
			description TEXT NOT NULL DEFAULT ''
		)`,
	}},
	{2, []string{
		`CREATE TABLE IF NOT EXISTS coordination_objects (
			run_id TEXT PRIMARY KEY,
			subject_id TEXT NOT NULL,
			body TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_coordination_subject ON coordination_objects(subject_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS session_plans (
			id TEXT PRIMARY KEY,
			subject_id TEXT NOT NULL,
			body TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS diagnostics (
			subject_id TEXT PRIMARY KEY,
			body TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
	}},
	{3, []string{
		`CREATE TABLE IF NOT EXISTS module_runs (
			run_id TEXT PRIMARY KEY,
			module TEXT NOT NULL,
			prompt_version TEXT NOT NULL,
			model_version TEXT NOT NULL DEFAULT '',
			success INTEGER NOT NULL,
			safety_decision TEXT NOT NULL,
			latency_ms INTEGER NOT NULL DEFAULT 0,
			prompt_tokens INTEGER NOT NULL DEFAULT 0,
			completion_tokens INTEGER NOT NULL DEFAULT 0,
			validation_errors TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL
		)`,
	}},
}

// runMigrations brings db up to CurrentSchemaVersion. Each version is applied
// in its own transaction and recorded in schema_versions.
func runMigrations(ctx context.Context, db *sql.DB) error {
	timer := logging.StartTimer(logging.CategoryStore, "runMigrations")
	defer timer.Stop()

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_versions (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("failed to create schema_versions: %w", err)
	}

	current, err := schemaVersion(ctx, db)
	if err != nil {
		return err
	}

	applied := 0
	for _, m := range migrations {
		if m.version <= current {
			logging.StoreDebug("Schema v%d already applied", m.version)
			continue
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration v%d: %w", m.version, err)
		}
		for _, stmt := range m.statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration v%d failed: %w", m.version, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_versions(version) VALUES (?)`, m.version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration v%d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration v%d: %w", m.version, err)
		}
		logging.Store("Migration applied: schema v%d", m.version)
		applied++
	}

	logging.Store("Schema migrations complete: applied=%d, version=%d", applied, CurrentSchemaVersion)
	return nil
}

// schemaVersion returns the highest applied version, or 0 for a fresh database.
func schemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_versions`).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return int(version.Int64), nil
}
