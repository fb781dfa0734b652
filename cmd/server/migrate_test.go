package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/tudoramariei/votemonitor/internal/api"
	"github.com/tudoramariei/votemonitor/internal/config"
	dbstore "github.com/tudoramariei/votemonitor/internal/db"
	"github.com/tudoramariei/votemonitor/internal/forms"
	"github.com/tudoramariei/votemonitor/internal/services"
)

func TestMigrateIfNeededImportsSnapshot(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	snapPath := filepath.Join(dir, "forms.json")
	sqlitePath := filepath.Join(dir, "db", "votemonitor.db")

	mem := api.NewMemoryStore()
	svc := services.NewFormService(mem, nil)
	f, err := svc.CreateForm(ctx, "N1", "admin", forms.FormInput{
		ID:              "F1",
		Code:            "CLOSE",
		FormType:        forms.FormTypeClosingAndCounting,
		Name:            forms.TranslatedText{"en": "Closing"},
		Languages:       []string{"en"},
		DefaultLanguage: "en",
	})
	if err != nil {
		t.Fatalf("CreateForm returned error: %v", err)
	}
	if err := mem.SaveSnapshot(snapPath); err != nil {
		t.Fatalf("SaveSnapshot returned error: %v", err)
	}

	if err := MigrateIfNeeded(ctx, snapPath, sqlitePath, ""); err != nil {
		t.Fatalf("MigrateIfNeeded returned error: %v", err)
	}
	cfg := config.Config{DB: config.DbConfig{Driver: config.DbDriverSqlite3, File: sqlitePath}}
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		t.Fatalf("openStore returned error: %v", err)
	}
	defer closeStore()
	rec, err := store.GetForm(ctx, "F1")
	if err != nil || rec == nil {
		t.Fatalf("GetForm = %v, %v", rec, err)
	}
	if rec.NGOID != "N1" || rec.Form.Code != "CLOSE" || rec.Form.Version != f.Version {
		t.Fatalf("imported form = %+v", rec.Form)
	}
	entries, _ := store.ListAudit(ctx, "F1")
	if len(entries) != 1 {
		t.Fatalf("imported %d audit entries, want 1", len(entries))
	}

	// the database exists now, so a second run leaves it alone
	if err := MigrateIfNeeded(ctx, snapPath, sqlitePath, ""); err != nil {
		t.Fatalf("second MigrateIfNeeded returned error: %v", err)
	}
}

func TestMigrateIfNeededWithoutSnapshot(t *testing.T) {
	dir := t.TempDir()
	sqlitePath := filepath.Join(dir, "votemonitor.db")
	if err := MigrateIfNeeded(context.Background(), filepath.Join(dir, "none.json"), sqlitePath, ""); err != nil {
		t.Fatalf("MigrateIfNeeded returned error: %v", err)
	}
	db, err := dbstore.Open(dbstore.DriverSqlite3, sqlitePath)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer db.Close()
	applied, err := dbstore.Migrate(db, dbstore.DriverSqlite3, "")
	if err != nil || len(applied) == 0 {
		t.Fatalf("fresh database should still need migrations: %v, %v", applied, err)
	}
}
