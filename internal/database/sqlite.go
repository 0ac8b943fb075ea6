package database

import (
	"database/sql"
	"fmt"
	"strings"

	"dedupe-go/internal/database/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// NewSQLiteDatabase creates a new SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
func NewSQLiteDatabase(path string) (*SQLDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	return newSQLDatabase(db, migrations.DialectSQLite, path), nil
}

// connectionParams are applied by the driver to every pooled connection.
// The server and the batch driver may write concurrently.
const connectionParams = "_foreign_keys=on&_busy_timeout=5000"

// OpenConnection opens and configures a SQLite database connection.
// This is exported for use in tools and tests that need a properly configured SQLite connection.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Each connection to :memory: opens its own empty database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return db, nil
}

// sqliteDSN appends connectionParams to path.
func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + connectionParams
}

// BackupTo creates a complete copy of a SQLite database at destPath using VACUUM INTO.
func (s *SQLDatabase) BackupTo(destPath string) error {
	if s.dialect != migrations.DialectSQLite {
		return fmt.Errorf("backup is only supported for sqlite databases")
	}
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}
