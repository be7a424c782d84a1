package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema version tracking
const currentSchemaVersion = 2

// migrate brings the schema to currentSchemaVersion. A database without a
// schema_version table is new and gets every table at once.
func (db *DB) migrate(ctx context.Context) error {
	version, err := db.getSchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	switch {
	case version == currentSchemaVersion:
		return nil
	case version > currentSchemaVersion:
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	case version == 0:
		if err := db.WithTx(ctx, createSchema); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
		db.logger.Info("Database schema initialized", "version", currentSchemaVersion)
		return nil
	}

	db.logger.Info("Migrating database", "from", version, "to", currentSchemaVersion)
	for v := version + 1; v <= currentSchemaVersion; v++ {
		step := migrations[v]
		err := db.WithTx(ctx, func(tx *sql.Tx) error {
			if err := step(tx); err != nil {
				return err
			}
			return setSchemaVersion(tx, v)
		})
		if err != nil {
			return fmt.Errorf("failed to migrate to schema version %d: %w", v, err)
		}
	}
	return nil
}

// migrations[v] upgrades a version v-1 schema to v
var migrations = map[int]func(*sql.Tx) error{
	// journals written before runs existed
	2: createRunsTable,
}

func createSchema(tx *sql.Tx) error {
	for _, create := range []func(*sql.Tx) error{
		createSchemaVersionTable,
		createRepositoriesTable,
		createRunsTable,
		createCommitsTable,
		createChangeItemsTable,
	} {
		if err := create(tx); err != nil {
			return err
		}
	}
	return setSchemaVersion(tx, currentSchemaVersion)
}

// getSchemaVersion gets the current schema version
func (db *DB) getSchemaVersion(ctx context.Context) (int, error) {
	var tableName string
	err := db.conn.QueryRowContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableName)

	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var version int
	err = db.conn.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return version, nil
}

// setSchemaVersion sets the schema version
func setSchemaVersion(tx *sql.Tx, version int) error {
	_, err := tx.Exec("DELETE FROM schema_version")
	if err != nil {
		return err
	}
	_, err = tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

func createSchemaVersionTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}
	return nil
}

func createRepositoriesTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS repositories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			backend TEXT NOT NULL,
			location TEXT NOT NULL,
			created_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create repositories table: %w", err)
	}
	return nil
}

func createRunsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			repo_id INTEGER NOT NULL REFERENCES repositories(id) ON DELETE CASCADE,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			commits INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'running'
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create runs table: %w", err)
	}

	_, err = tx.Exec(`CREATE INDEX IF NOT EXISTS idx_runs_repo ON runs(repo_id, started_at)`)
	if err != nil {
		return fmt.Errorf("failed to create runs index: %w", err)
	}
	return nil
}

func createCommitsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS commits (
			repo_id INTEGER NOT NULL REFERENCES repositories(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			revision TEXT NOT NULL,
			parent TEXT,
			author TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL DEFAULT '',
			run_id TEXT NOT NULL DEFAULT '',
			integrated_at TEXT NOT NULL,
			PRIMARY KEY (repo_id, revision)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create commits table: %w", err)
	}

	_, err = tx.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_commits_seq ON commits(repo_id, seq)`)
	if err != nil {
		return fmt.Errorf("failed to create commits index: %w", err)
	}
	return nil
}

func createChangeItemsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS change_items (
			repo_id INTEGER NOT NULL,
			revision TEXT NOT NULL,
			idx INTEGER NOT NULL,
			path TEXT NOT NULL,
			kind TEXT NOT NULL,
			copy_path TEXT,
			copy_revision TEXT,
			PRIMARY KEY (repo_id, revision, idx),
			FOREIGN KEY (repo_id, revision) REFERENCES commits(repo_id, revision) ON DELETE CASCADE
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create change_items table: %w", err)
	}

	_, err = tx.Exec(`CREATE INDEX IF NOT EXISTS idx_change_items_path ON change_items(repo_id, path)`)
	if err != nil {
		return fmt.Errorf("failed to create change_items index: %w", err)
	}
	return nil
}
