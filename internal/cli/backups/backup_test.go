package backups

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/julianstephens/tally/internal/backup"
	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/config"
	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/storage/sqlite"
)

func setupTestDB(t *testing.T) (*cli.Context, *bytes.Buffer) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store := sqlite.NewStore(dbPath)
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	ctx := cli.NewContext(context.Background(), &config.Config{DBPath: dbPath, Timezone: "UTC"}, store)
	out := &bytes.Buffer{}
	ctx.Out = out
	t.Cleanup(func() { _ = ctx.Close() })
	return ctx, out
}

func TestBackupCreateAndList(t *testing.T) {
	ctx, out := setupTestDB(t)

	if err := (&BackupListCmd{}).Run(ctx); err != nil {
		t.Fatalf("backup list failed: %v", err)
	}
	if !strings.Contains(out.String(), "No backups found.") {
		t.Errorf("unexpected output: %q", out.String())
	}

	out.Reset()
	if err := (&BackupCreateCmd{}).Run(ctx); err != nil {
		t.Fatalf("backup create failed: %v", err)
	}
	if !strings.Contains(out.String(), "Backup created: tally-") {
		t.Errorf("unexpected output: %q", out.String())
	}

	out.Reset()
	if err := (&BackupListCmd{}).Run(ctx); err != nil {
		t.Fatalf("backup list failed: %v", err)
	}
	if !strings.Contains(out.String(), "1 total") {
		t.Errorf("expected one backup listed, got %q", out.String())
	}
}

func TestBackupRestoreCmd(t *testing.T) {
	ctx, _ := setupTestDB(t)
	if err := ctx.Store.SetSetting(ctx.Context(), constants.SettingUserID, "before"); err != nil {
		t.Fatal(err)
	}
	path, err := backup.NewManager(ctx.Store.Path()).Create(ctx.Context())
	if err != nil {
		t.Fatal(err)
	}
	if err := ctx.Store.SetSetting(ctx.Context(), constants.SettingUserID, "after"); err != nil {
		t.Fatal(err)
	}

	if err := (&BackupRestoreCmd{BackupFile: filepath.Base(path), Yes: true}).Run(ctx); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	reopened := sqlite.NewStore(ctx.Store.Path())
	defer reopened.Close()
	if err := reopened.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	got, err := reopened.GetSetting(context.Background(), constants.SettingUserID)
	if err != nil || got != "before" {
		t.Errorf("expected restored value %q, got %q (%v)", "before", got, err)
	}
}

func TestBackupRestoreCmd_NotFound(t *testing.T) {
	ctx, _ := setupTestDB(t)
	if err := (&BackupRestoreCmd{BackupFile: "tally-missing.db", Yes: true}).Run(ctx); err == nil {
		t.Error("expected an error for a missing backup")
	}
}
