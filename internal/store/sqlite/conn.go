// Package sqlite implements store.Store with the pure-Go modernc.org/sqlite
// driver. It is the default store for development and for the compliance
// suite; internal/store/postgres provides the production-scale alternative.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/taskflow/taskcore/internal/store"
)

// Open opens (or creates) a SQLite database at path with WAL journaling and
// foreign keys enabled, then applies the shared schema.
func Open(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_txlock=immediate", path)
	if path == ":memory:" {
		// An in-memory database only exists for the life of one connection;
		// without a shared cache, each pooled *sql.DB connection would see
		// its own empty database. Pin the pool to a single connection
		// instead of relying on modernc.org/sqlite's cache=shared support.
		dsn = "file::memory:?_pragma=foreign_keys(ON)&_txlock=immediate"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	for _, stmt := range store.DDLStatements() {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("applying schema: %w", err)
		}
	}
	return db, nil
}
