package migration

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestApplyMigrations_FreshDatabase(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	mfs := fstest.MapFS{
		"001_init.sql":   {Data: []byte("CREATE TABLE a (id INTEGER PRIMARY KEY);")},
		"002_second.sql": {Data: []byte("CREATE TABLE b (id INTEGER PRIMARY KEY);")},
		"README.md":      {Data: []byte("ignored")},
	}
	runner := NewRunner(db, mfs, SQLite)

	applied, err := runner.ApplyMigrations(ctx, nil)
	if err != nil {
		t.Fatalf("ApplyMigrations() error = %v", err)
	}
	if applied != 2 {
		t.Errorf("expected 2 migrations applied, got %d", applied)
	}

	version, err := runner.GetCurrentVersion(ctx)
	if err != nil {
		t.Fatalf("GetCurrentVersion() error = %v", err)
	}
	if version != 2 {
		t.Errorf("expected version 2, got %d", version)
	}

	// Second run is a no-op
	applied, err = runner.ApplyMigrations(ctx, nil)
	if err != nil {
		t.Fatalf("second ApplyMigrations() error = %v", err)
	}
	if applied != 0 {
		t.Errorf("expected 0 migrations on rerun, got %d", applied)
	}
}

func TestApplyMigrations_FailedMigrationRollsBack(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	mfs := fstest.MapFS{
		"001_init.sql":   {Data: []byte("CREATE TABLE a (id INTEGER PRIMARY KEY);")},
		"002_broken.sql": {Data: []byte("CREATE TABLE ((;")},
	}
	runner := NewRunner(db, mfs, SQLite)

	applied, err := runner.ApplyMigrations(ctx, nil)
	if err == nil {
		t.Fatal("expected error from broken migration")
	}
	if applied != 1 {
		t.Errorf("expected 1 migration applied before failure, got %d", applied)
	}
	if version, _ := runner.GetCurrentVersion(ctx); version != 1 {
		t.Errorf("expected version to stay at 1, got %d", version)
	}
}

func TestApplyMigrations_DatabaseNewerThanApp(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	runner := NewRunner(db, fstest.MapFS{
		"001_init.sql": {Data: []byte("CREATE TABLE a (id INTEGER PRIMARY KEY);")},
	}, SQLite)
	if err := runner.EnsureSchemaVersionTable(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (5)"); err != nil {
		t.Fatal(err)
	}

	_, err := runner.ApplyMigrations(ctx, nil)
	if err == nil || !strings.Contains(err.Error(), "newer than supported") {
		t.Errorf("expected newer-than-supported error, got %v", err)
	}
}

func TestReadMigrationFiles_Invalid(t *testing.T) {
	tests := []struct {
		name string
		fs   fstest.MapFS
	}{
		{name: "missing underscore", fs: fstest.MapFS{"001.sql": {Data: []byte("")}}},
		{name: "non numeric version", fs: fstest.MapFS{"abc_init.sql": {Data: []byte("")}}},
		{name: "zero version", fs: fstest.MapFS{"000_init.sql": {Data: []byte("")}}},
		{name: "duplicate version", fs: fstest.MapFS{
			"001_a.sql":  {Data: []byte("")},
			"0001_b.sql": {Data: []byte("")},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := NewRunner(nil, tt.fs, SQLite)
			if _, err := runner.ReadMigrationFiles(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDialectPlaceholders(t *testing.T) {
	if got := SQLite.Placeholder(3); got != "?" {
		t.Errorf("SQLite placeholder = %q, want ?", got)
	}
	if got := Postgres.Placeholder(3); got != "$3" {
		t.Errorf("Postgres placeholder = %q, want $3", got)
	}
}
