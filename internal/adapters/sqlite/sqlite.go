package sqlite

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Open opens (creating if needed) a sqlite database at path, enables foreign
// keys and applies the embedded schema. A single connection avoids
// SQLITE_BUSY under concurrent writers; sqlite serializes them anyway.
func Open(path string) (*sql.DB, error) {
	if path == "" {
		return nil, errors.New("empty sqlite path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}

// Constraint predicates so repositories can map driver failures onto their
// sentinel errors without importing the driver themselves.

func IsPrimaryKeyConstraint(err error) bool {
	return hasExtendedCode(err, sqlite3.ErrConstraintPrimaryKey)
}

func IsUniqueConstraint(err error) bool {
	return hasExtendedCode(err, sqlite3.ErrConstraintUnique)
}

func IsForeignKeyConstraint(err error) bool {
	return hasExtendedCode(err, sqlite3.ErrConstraintForeignKey)
}

func hasExtendedCode(err error, code sqlite3.ErrNoExtended) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == code
}
