package history

import (
	"database/sql"
	"fmt"
)

const SchemaVersion = 1

type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS grammar_snapshots (
  project_key TEXT NOT NULL DEFAULT 'default',
  schema_version INTEGER NOT NULL,
  build_id TEXT NOT NULL,
  job TEXT NOT NULL,
  ts_utc TEXT NOT NULL,
  type_request TEXT NOT NULL,
  max_depth INTEGER NOT NULL,
  n_gram INTEGER NOT NULL,
  min_variable_depth INTEGER NOT NULL,
  recursive INTEGER NOT NULL DEFAULT 0,
  state_count INTEGER NOT NULL,
  rule_count INTEGER NOT NULL,
  pruned_non_productive INTEGER NOT NULL DEFAULT 0,
  pruned_unreachable INTEGER NOT NULL DEFAULT 0,
  programs TEXT NOT NULL DEFAULT '0',
  fingerprint TEXT NOT NULL DEFAULT '',
  duration_ms INTEGER NOT NULL DEFAULT 0,
  created_at_utc TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP),
  PRIMARY KEY (project_key, job, build_id)
);
CREATE INDEX IF NOT EXISTS idx_grammar_snapshots_ts ON grammar_snapshots(ts_utc);
CREATE INDEX IF NOT EXISTS idx_grammar_snapshots_job ON grammar_snapshots(job);
CREATE INDEX IF NOT EXISTS idx_grammar_snapshots_project_key ON grammar_snapshots(project_key);
`,
	},
}

func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at_utc TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
);
`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read schema_migrations version: %w", err)
	}
	if current > SchemaVersion {
		return fmt.Errorf("schema version %d is newer than supported version %d", current, SchemaVersion)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.version, err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations(version) VALUES (?)`, m.version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}
	}

	return nil
}
