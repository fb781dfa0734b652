package db

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

const (
	DriverSqlite3  = "sqlite3"
	DriverPostgres = "postgres"
)

// Adapter provides database-driver-specific behaviour.
type Adapter interface {
	Driver() string
	Placeholder() sq.PlaceholderFormat
	// MigrationDir names the embedded directory holding this driver's migrations.
	MigrationDir() string
	PostCreate(db *sqlx.DB) error
}

type sqlite3Adapter struct{}

func (sqlite3Adapter) Driver() string                    { return DriverSqlite3 }
func (sqlite3Adapter) Placeholder() sq.PlaceholderFormat { return sq.Question }
func (sqlite3Adapter) MigrationDir() string              { return "migrations/sqlite3" }

func (sqlite3Adapter) PostCreate(db *sqlx.DB) error {
	// PRAGMAs are per connection
	db.SetMaxOpenConns(1)
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	return nil
}

type postgresAdapter struct{}

func (postgresAdapter) Driver() string                    { return DriverPostgres }
func (postgresAdapter) Placeholder() sq.PlaceholderFormat { return sq.Dollar }
func (postgresAdapter) MigrationDir() string              { return "migrations/postgres" }
func (postgresAdapter) PostCreate(*sqlx.DB) error         { return nil }

func newAdapter(driver string) (Adapter, error) {
	switch driver {
	case DriverSqlite3:
		return sqlite3Adapter{}, nil
	case DriverPostgres:
		return postgresAdapter{}, nil
	}
	return nil, fmt.Errorf("no adapter available for database driver '%v'", driver)
}
