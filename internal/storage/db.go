package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DefaultDBName is the journal database file inside the data directory
const DefaultDBName = "lineage.db"

// pragmas are applied by the driver to every pooled connection
var pragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(ON)",
	"busy_timeout(5000)",
	"cache_size(-16000)",
	"temp_store(MEMORY)",
}

// DB is the journal database of one data directory
type DB struct {
	conn   *sql.DB
	logger *slog.Logger
}

// Open opens the journal database dbName inside dataDir, creating the
// directory, the file and its schema as needed. An existing database is
// migrated to the current schema.
func Open(dataDir, dbName string, logger *slog.Logger) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if dbName == "" {
		dbName = DefaultDBName
	}
	path := filepath.Join(dataDir, dbName)

	conn, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer per journal; the import lock keeps other processes out
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, logger: logger.With("db", path)}
	if err := db.migrate(context.Background()); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return db, nil
}

func dsn(path string) string {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	return "file:" + path + "?" + q.Encode()
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// WithTx runs fn in a transaction, committing when fn returns nil and
// rolling back otherwise.
func (db *DB) WithTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error("Failed to roll back transaction", "error", err, "rollbackError", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
