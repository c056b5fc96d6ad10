package sqlite

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"reviewguard/internal/errors"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Open opens (creating if needed) the SQLite database at path. A busy timeout
// is set so the API and CLI can share a runs database.
func Open(path string) (*sqlx.DB, error) {
	if path == "" {
		return nil, errors.ConfigInvalid("sqlite path is empty")
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.IOError(fmt.Sprintf("create directory for %s", path), err)
			}
		}
	}
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000"
	}
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.DatabaseError("failed to open sqlite database", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.DatabaseError(fmt.Sprintf("failed to connect to %s", path), err)
	}
	return db, nil
}

// OpenExisting opens a database that must already exist, such as the review
// database.
func OpenExisting(path string) (*sqlx.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.IOError(fmt.Sprintf("review database not found at %s; create it with `reviewguard seed-db`", path), err)
	}
	return Open(path)
}
