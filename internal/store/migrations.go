package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Migration is one ordered, idempotent schema change.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Migrations is the full ordered list of schema migrations. New columns
// are only ever added, never dropped or narrowed.
var Migrations = []Migration{
	{
		Version: 1,
		Name:    "base_tables",
		SQL: `
			CREATE TABLE IF NOT EXISTS issues (
				id TEXT PRIMARY KEY,
				project_id TEXT NOT NULL,
				key TEXT NOT NULL,
				summary TEXT,
				description TEXT,
				status TEXT,
				priority TEXT,
				assignee TEXT,
				reporter TEXT,
				issue_type TEXT,
				resolution TEXT,
				labels TEXT,
				components TEXT,
				fix_versions TEXT,
				sprint TEXT,
				team TEXT,
				parent_key TEXT,
				due_date TEXT,
				created_date TEXT NOT NULL,
				updated_date TEXT NOT NULL,
				raw_payload TEXT,
				is_deleted INTEGER NOT NULL DEFAULT 0,
				synced_at TEXT
			);
			CREATE INDEX IF NOT EXISTS idx_issues_project ON issues(project_id);
			CREATE UNIQUE INDEX IF NOT EXISTS idx_issues_project_key ON issues(project_id, key);
			CREATE INDEX IF NOT EXISTS idx_issues_status ON issues(status);

			CREATE TABLE IF NOT EXISTS issue_change_history (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				issue_id TEXT NOT NULL,
				issue_key TEXT NOT NULL,
				history_id TEXT NOT NULL,
				author_account_id TEXT,
				author_display_name TEXT,
				field TEXT NOT NULL,
				field_type TEXT,
				from_value TEXT,
				from_string TEXT,
				to_value TEXT,
				to_string TEXT,
				changed_at TEXT NOT NULL
			);
			CREATE UNIQUE INDEX IF NOT EXISTS idx_changes_history_field ON issue_change_history(history_id, field);
			CREATE INDEX IF NOT EXISTS idx_changes_issue_field_time ON issue_change_history(issue_key, field, changed_at);

			CREATE TABLE IF NOT EXISTS issue_snapshots (
				issue_id TEXT NOT NULL,
				issue_key TEXT NOT NULL,
				version INTEGER NOT NULL,
				project_id TEXT NOT NULL,
				valid_from TEXT NOT NULL,
				valid_to TEXT,
				summary TEXT,
				description TEXT,
				status TEXT,
				priority TEXT,
				assignee TEXT,
				reporter TEXT,
				issue_type TEXT,
				resolution TEXT,
				labels TEXT,
				components TEXT,
				fix_versions TEXT,
				sprint TEXT,
				team TEXT,
				parent_key TEXT,
				raw_data TEXT,
				PRIMARY KEY (issue_id, version)
			);
			CREATE INDEX IF NOT EXISTS idx_snapshots_key_project_validity
				ON issue_snapshots(issue_key, project_id, valid_from, valid_to);

			CREATE TABLE IF NOT EXISTS sync_history (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				project_id TEXT NOT NULL,
				status TEXT NOT NULL,
				items_processed INTEGER NOT NULL DEFAULT 0,
				total_items INTEGER NOT NULL DEFAULT 0,
				error_message TEXT,
				started_at TEXT NOT NULL,
				finished_at TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_sync_history_project ON sync_history(project_id, finished_at DESC);

			CREATE TABLE IF NOT EXISTS jira_fields (
				id TEXT PRIMARY KEY,
				key TEXT,
				name TEXT,
				custom INTEGER NOT NULL DEFAULT 0,
				schema_type TEXT,
				schema_items TEXT,
				schema_custom TEXT
			);

			CREATE TABLE IF NOT EXISTS issues_expanded (
				id TEXT PRIMARY KEY,
				project_id TEXT,
				issue_key TEXT,
				summary TEXT,
				description TEXT,
				status TEXT,
				priority TEXT,
				assignee TEXT,
				reporter TEXT,
				issue_type TEXT,
				resolution TEXT,
				labels TEXT,
				components TEXT,
				fix_versions TEXT,
				sprint TEXT,
				parent_key TEXT,
				created_date TEXT,
				updated_date TEXT,
				synced_at TEXT
			);
			CREATE INDEX IF NOT EXISTS idx_issues_expanded_project ON issues_expanded(project_id);

			CREATE TABLE IF NOT EXISTS metadata_statuses (
				project_id TEXT NOT NULL,
				name TEXT NOT NULL,
				category TEXT,
				PRIMARY KEY (project_id, name)
			);
			CREATE TABLE IF NOT EXISTS metadata_priorities (
				project_id TEXT NOT NULL,
				name TEXT NOT NULL,
				icon_url TEXT,
				PRIMARY KEY (project_id, name)
			);
			CREATE TABLE IF NOT EXISTS metadata_issue_types (
				project_id TEXT NOT NULL,
				name TEXT NOT NULL,
				subtask INTEGER NOT NULL DEFAULT 0,
				PRIMARY KEY (project_id, name)
			);
			CREATE TABLE IF NOT EXISTS metadata_labels (
				project_id TEXT NOT NULL,
				name TEXT NOT NULL,
				PRIMARY KEY (project_id, name)
			);
			CREATE TABLE IF NOT EXISTS metadata_components (
				project_id TEXT NOT NULL,
				name TEXT NOT NULL,
				description TEXT,
				PRIMARY KEY (project_id, name)
			);
			CREATE TABLE IF NOT EXISTS metadata_fix_versions (
				project_id TEXT NOT NULL,
				name TEXT NOT NULL,
				released INTEGER NOT NULL DEFAULT 0,
				archived INTEGER NOT NULL DEFAULT 0,
				PRIMARY KEY (project_id, name)
			);
		`,
	},
}

// columnSpec is one expected (table, column, type) tuple checked against
// PRAGMA table_info before an additive ALTER TABLE is issued: add it if
// absent. Empty today; future additive columns land here instead of
// bumping a base-table migration.
var additiveColumns []columnSpec

type columnSpec struct {
	Table  string
	Column string
	Type   string
}

// migrate ensures the schema_migrations table exists, applies any
// pending entries of Migrations in order, then reconciles additiveColumns.
func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	applied := map[int]bool{}
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("read schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return err
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, m := range Migrations {
		if applied[m.Version] {
			continue
		}
		if err := s.applyMigration(ctx, m); err != nil {
			return err
		}
	}

	return s.ensureAdditiveColumns(ctx)
}

func (s *Store) applyMigration(ctx context.Context, m Migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Name, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
		m.Version, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("record migration %d: %w", m.Version, err)
	}
	return tx.Commit()
}

// ensureAdditiveColumns inspects PRAGMA table_info for each entry in
// additiveColumns and issues ALTER TABLE ... ADD COLUMN when absent.
func (s *Store) ensureAdditiveColumns(ctx context.Context) error {
	for _, c := range additiveColumns {
		has, err := s.hasColumn(ctx, c.Table, c.Column)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", c.Table, c.Column, c.Type)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("add column %s.%s: %w", c.Table, c.Column, err)
		}
	}
	return nil
}

func (s *Store) hasColumn(ctx context.Context, table, column string) (bool, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid        int
			name       string
			ctype      string
			notnull    int
			dfltValue  sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
