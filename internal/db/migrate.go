package db

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
)

//go:embed migrations/*/*.sql
var embeddedMigrations embed.FS

type migrationFile struct {
	name string
	data []byte
}

// Migrate applies pending migrations for driver and returns the names it applied. Files in
// dir take precedence over the embedded set when the directory exists.
func Migrate(db *sqlx.DB, driver, dir string) ([]string, error) {
	adp, err := newAdapter(driver)
	if err != nil {
		return nil, err
	}
	return runMigrations(db, adp, dir)
}

func runMigrations(db *sqlx.DB, adp Adapter, dir string) ([]string, error) {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (name TEXT PRIMARY KEY NOT NULL, applied_at TEXT NOT NULL)`); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}
	files, err := loadMigrations(adp, dir)
	if err != nil {
		return nil, err
	}
	var applied []string
	for _, mf := range files {
		var n int
		check := db.Rebind(`SELECT COUNT(*) FROM schema_migrations WHERE name = ?`)
		if err := db.Get(&n, check, mf.name); err != nil {
			return applied, fmt.Errorf("check migration %s: %w", mf.name, err)
		}
		if n > 0 || len(mf.data) == 0 {
			continue
		}
		if _, err := db.Exec(string(mf.data)); err != nil {
			return applied, fmt.Errorf("exec migration %s: %w", mf.name, err)
		}
		record := db.Rebind(`INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)`)
		if _, err := db.Exec(record, mf.name, time.Now().UTC().Format(time.RFC3339)); err != nil {
			return applied, fmt.Errorf("record migration %s: %w", mf.name, err)
		}
		applied = append(applied, mf.name)
	}
	return applied, nil
}

func loadMigrations(adp Adapter, dir string) ([]migrationFile, error) {
	var files []migrationFile
	if dir != "" {
		entries, err := os.ReadDir(dir)
		if err == nil {
			for _, entry := range entries {
				if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
					continue
				}
				content, err := os.ReadFile(filepath.Join(dir, entry.Name()))
				if err != nil {
					return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
				}
				files = append(files, migrationFile{name: entry.Name(), data: content})
			}
			sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })
			return files, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read migrations: %w", err)
		}
	}

	entries, err := embeddedMigrations.ReadDir(adp.MigrationDir())
	if err != nil {
		return nil, fmt.Errorf("read embedded migrations: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}
		content, err := embeddedMigrations.ReadFile(path.Join(adp.MigrationDir(), entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read embedded migration %s: %w", entry.Name(), err)
		}
		files = append(files, migrationFile{name: entry.Name(), data: content})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })
	return files, nil
}
