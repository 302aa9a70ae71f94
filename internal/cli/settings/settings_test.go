package settings

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	gokeyring "github.com/zalando/go-keyring"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/config"
	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/storage/sqlite"
)

func setupTestDB(t *testing.T) (*cli.Context, *bytes.Buffer) {
	t.Helper()
	gokeyring.MockInit()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	store := sqlite.NewStore(dbPath)
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}

	cfg := &config.Config{DBPath: dbPath, Timezone: "UTC", ProbeAddress: "127.0.0.1:1"}
	ctx := cli.NewContext(context.Background(), cfg, store)
	out := &bytes.Buffer{}
	ctx.Out = out
	t.Cleanup(func() {
		if err := ctx.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	})
	return ctx, out
}

func TestSettingsCmd_List(t *testing.T) {
	ctx, out := setupTestDB(t)
	if err := ctx.Store.SetSetting(ctx.Context(), constants.SettingUserID, "user-1"); err != nil {
		t.Fatal(err)
	}
	if err := ctx.Store.SetSetting(ctx.Context(), constants.SettingHabitsWatermark+":user-1", "2026-10-14T09:00:00Z"); err != nil {
		t.Fatal(err)
	}

	if err := (&SettingsCmd{List: true}).Run(ctx); err != nil {
		t.Fatalf("settings list failed: %v", err)
	}
	for _, want := range []string{"user-1", "UTC", "not configured", "2026-10-14T09:00:00Z", "never"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("settings output missing %q:\n%s", want, out.String())
		}
	}
}

func TestSettingsCmd_UpdateUserID(t *testing.T) {
	ctx, _ := setupTestDB(t)

	id := "  user-2 "
	if err := (&SettingsCmd{UserID: &id}).Run(ctx); err != nil {
		t.Fatalf("settings update failed: %v", err)
	}
	got, err := ctx.Store.GetSetting(ctx.Context(), constants.SettingUserID)
	if err != nil || got != "user-2" {
		t.Errorf("expected user id user-2, got %q (%v)", got, err)
	}

	empty := " "
	if err := (&SettingsCmd{UserID: &empty}).Run(ctx); err == nil {
		t.Error("empty user id should be rejected")
	}
}

func TestSettingsCmd_NoChanges(t *testing.T) {
	ctx, out := setupTestDB(t)
	if err := (&SettingsCmd{}).Run(ctx); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "No changes specified") {
		t.Errorf("unexpected output: %q", out.String())
	}
}
