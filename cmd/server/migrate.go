package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/tudoramariei/votemonitor/internal/api"
	dbstore "github.com/tudoramariei/votemonitor/internal/db"
)

// MigrateIfNeeded copies a memory-store snapshot into a new SQLite database on first run.
// Nothing happens when the database file already exists or no snapshot is found.
func MigrateIfNeeded(ctx context.Context, snapshotPath, sqlitePath, migrationsDir string) error {
	if sqlitePath == "" {
		return errors.New("sqlite path is required")
	}
	if _, err := os.Stat(sqlitePath); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("check sqlite file: %w", err)
	}
	if snapshotPath == "" {
		return nil
	}
	snap, err := api.LoadSnapshot(snapshotPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	log.WithFields(log.Fields{"snapshot": snapshotPath, "sqlite": sqlitePath}).Info("first run, importing snapshot")

	if err := os.MkdirAll(filepath.Dir(sqlitePath), 0o755); err != nil {
		return fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := dbstore.Open(dbstore.DriverSqlite3, sqlitePath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.WithError(cerr).Warn("close sqlite db")
		}
	}()

	if _, err := dbstore.Migrate(db, dbstore.DriverSqlite3, migrationsDir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	dst, err := dbstore.NewStore(db, dbstore.DriverSqlite3)
	if err != nil {
		return fmt.Errorf("init sqlite store: %w", err)
	}
	if err := api.Restore(ctx, snap, dst); err != nil {
		_ = db.Close()
		_ = os.Remove(sqlitePath)
		return fmt.Errorf("copy data: %w", err)
	}
	log.WithFields(log.Fields{"forms": len(snap.Forms), "submissions": len(snap.Submissions)}).Info("snapshot import completed")
	return nil
}
