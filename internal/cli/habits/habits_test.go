package habits

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	gokeyring "github.com/zalando/go-keyring"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/config"
	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/stats"
	"github.com/julianstephens/tally/internal/storage/sqlite"
)

func setupTestDB(t *testing.T) (*cli.Context, *bytes.Buffer) {
	t.Helper()
	gokeyring.MockInit()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	cfg := &config.Config{
		DBPath:         dbPath,
		Timezone:       "UTC",
		UserID:         "user-1",
		ProbeAddress:   "127.0.0.1:1",
		StatsCacheSize: 16,
	}
	store := sqlite.NewStore(dbPath)
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	ctx := cli.NewContext(context.Background(), cfg, store)
	out := &bytes.Buffer{}
	ctx.Out = out

	t.Cleanup(func() {
		if err := ctx.Close(); err != nil {
			t.Errorf("failed to close context: %v", err)
		}
	})
	return ctx, out
}

func getHabit(t *testing.T, ctx *cli.Context, ref string) models.EnrichedHabit {
	t.Helper()
	h, err := ctx.ResolveHabit(ctx.Context(), ref)
	if err != nil {
		t.Fatalf("ResolveHabit(%q) error = %v", ref, err)
	}
	return h
}

func TestHabitAddCmd(t *testing.T) {
	ctx, out := setupTestDB(t)

	cmd := &HabitAddCmd{Title: "Drink water", Icon: "💧", Target: 8, Unit: "glasses", Frequency: "daily"}
	if err := cmd.Run(ctx); err != nil {
		t.Fatalf("habit add failed: %v", err)
	}
	if !strings.Contains(out.String(), "Added habit Drink water") {
		t.Errorf("unexpected output: %q", out.String())
	}

	h := getHabit(t, ctx, "drink water")
	if h.TargetCount != 8 || h.TargetUnit != "glasses" || h.Icon != "💧" {
		t.Errorf("unexpected habit: %+v", h.Habit)
	}
	if !h.IsDirty || h.SyncStatus != constants.SyncStatusPending {
		t.Errorf("new habit should be pending, got dirty=%v status=%s", h.IsDirty, h.SyncStatus)
	}
}

func TestHabitAddCmd_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cmd  HabitAddCmd
	}{
		{name: "empty title", cmd: HabitAddCmd{Title: "  ", Target: 1, Frequency: "daily"}},
		{name: "bad weekday", cmd: HabitAddCmd{Title: "Run", Target: 1, Frequency: "daily", Days: "funday"}},
		{name: "weekly without count", cmd: HabitAddCmd{Title: "Run", Target: 1, Frequency: "weekly"}},
		{name: "weekly with days", cmd: HabitAddCmd{Title: "Run", Target: 1, Frequency: "weekly", Count: 2, Days: "mon"}},
		{name: "bad color", cmd: HabitAddCmd{Title: "Run", Target: 1, Frequency: "daily", Color: "blue"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, _ := setupTestDB(t)
			if err := tt.cmd.Run(ctx); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestHabitListCmd(t *testing.T) {
	ctx, out := setupTestDB(t)

	if err := (&HabitListCmd{}).Run(ctx); err != nil {
		t.Fatalf("habit list failed: %v", err)
	}
	if !strings.Contains(out.String(), "No habits yet") {
		t.Errorf("expected empty message, got %q", out.String())
	}

	add := &HabitAddCmd{Title: "Stretch", Target: 1, Frequency: "weekly", Count: 3}
	if err := add.Run(ctx); err != nil {
		t.Fatal(err)
	}
	out.Reset()
	if err := (&HabitListCmd{}).Run(ctx); err != nil {
		t.Fatalf("habit list failed: %v", err)
	}
	for _, want := range []string{"Stretch", "0/1", "3 day(s) per week", "unsynced"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("list output missing %q:\n%s", want, out.String())
		}
	}
}

func TestHabitDoneIncDec(t *testing.T) {
	ctx, out := setupTestDB(t)
	if err := (&HabitAddCmd{Title: "Drink water", Target: 8, Frequency: "daily"}).Run(ctx); err != nil {
		t.Fatal(err)
	}

	steps := []struct {
		name string
		run  func(*cli.Context) error
		want int
	}{
		{name: "inc", run: (&HabitIncCmd{Habit: "drink water", By: 1}).Run, want: 1},
		{name: "inc by 3", run: (&HabitIncCmd{Habit: "drink water", By: 3}).Run, want: 4},
		{name: "dec", run: (&HabitDecCmd{Habit: "drink water", By: 1}).Run, want: 3},
		{name: "dec clamps at zero", run: (&HabitDecCmd{Habit: "drink water", By: 10}).Run, want: 0},
		{name: "done defaults to target", run: (&HabitDoneCmd{Habit: "drink water"}).Run, want: 8},
		{name: "done replaces the count", run: (&HabitDoneCmd{Habit: "drink water", Count: ptr(5)}).Run, want: 5},
	}

	for _, step := range steps {
		if err := step.run(ctx); err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		h := getHabit(t, ctx, "drink water")
		if h.TodayCompletion == nil || h.TodayCompletion.CompletedCount != step.want {
			t.Fatalf("%s: expected count %d, got %+v", step.name, step.want, h.TodayCompletion)
		}
	}

	out.Reset()
	if err := (&HabitDoneCmd{Habit: "drink water"}).Run(ctx); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "done for today") {
		t.Errorf("expected completion message, got %q", out.String())
	}
	if err := (&HabitDoneCmd{Habit: "drink water", Count: ptr(-1)}).Run(ctx); err == nil {
		t.Error("negative count should be rejected")
	}
}

func TestHabitDoneCmd_KeepsNotes(t *testing.T) {
	ctx, _ := setupTestDB(t)
	if err := (&HabitAddCmd{Title: "Read", Target: 2, Frequency: "daily"}).Run(ctx); err != nil {
		t.Fatal(err)
	}
	if err := (&HabitDoneCmd{Habit: "read", Count: ptr(1), Notes: "chapter 3"}).Run(ctx); err != nil {
		t.Fatal(err)
	}
	if err := (&HabitIncCmd{Habit: "read", By: 1}).Run(ctx); err != nil {
		t.Fatal(err)
	}
	h := getHabit(t, ctx, "read")
	if h.TodayCompletion.Notes != "chapter 3" {
		t.Errorf("notes should survive an increment, got %q", h.TodayCompletion.Notes)
	}
}

func TestHabitEditCmd(t *testing.T) {
	ctx, _ := setupTestDB(t)
	if err := (&HabitAddCmd{Title: "Run", Target: 1, Frequency: "daily", Days: "mon,wed"}).Run(ctx); err != nil {
		t.Fatal(err)
	}

	if err := (&HabitEditCmd{Habit: "run"}).Run(ctx); err == nil {
		t.Error("edit without flags should fail")
	}

	if err := (&HabitEditCmd{Habit: "run", Title: ptr("Run 5k"), Target: ptr(2)}).Run(ctx); err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	h := getHabit(t, ctx, "run 5k")
	if h.TargetCount != 2 || len(h.FrequencyDays) != 2 {
		t.Errorf("unexpected habit after edit: %+v", h.Habit)
	}

	// Switching to weekly drops the weekday list
	if err := (&HabitEditCmd{Habit: "run 5k", Frequency: ptr("weekly"), Count: ptr(3)}).Run(ctx); err != nil {
		t.Fatalf("frequency edit failed: %v", err)
	}
	h = getHabit(t, ctx, "run 5k")
	if h.FrequencyType != constants.FrequencyWeekly || h.FrequencyCount != 3 || len(h.FrequencyDays) != 0 {
		t.Errorf("unexpected schedule after edit: %+v", h.Habit)
	}

	// And back to daily drops the count
	if err := (&HabitEditCmd{Habit: "run 5k", Frequency: ptr("daily")}).Run(ctx); err != nil {
		t.Fatalf("frequency edit failed: %v", err)
	}
	h = getHabit(t, ctx, "run 5k")
	if h.FrequencyType != constants.FrequencyDaily || h.FrequencyCount != 0 {
		t.Errorf("unexpected schedule after edit: %+v", h.Habit)
	}

	if err := (&HabitEditCmd{Habit: "run 5k", Target: ptr(0)}).Run(ctx); err == nil {
		t.Error("zero target should fail validation")
	}
}

func TestHabitDeleteCmd(t *testing.T) {
	ctx, _ := setupTestDB(t)
	if err := (&HabitAddCmd{Title: "Floss", Target: 1, Frequency: "daily"}).Run(ctx); err != nil {
		t.Fatal(err)
	}
	if err := (&HabitDeleteCmd{Habit: "floss", Yes: true}).Run(ctx); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := ctx.ResolveHabit(ctx.Context(), "floss"); err == nil {
		t.Error("deleted habit should no longer resolve")
	}
}

func TestHabitStatsCmd_JSON(t *testing.T) {
	ctx, out := setupTestDB(t)
	if err := (&HabitAddCmd{Title: "Journal", Target: 1, Frequency: "daily"}).Run(ctx); err != nil {
		t.Fatal(err)
	}
	if err := (&HabitDoneCmd{Habit: "journal"}).Run(ctx); err != nil {
		t.Fatal(err)
	}

	out.Reset()
	if err := (&HabitStatsCmd{Habit: "journal", Days: 7, JSON: true}).Run(ctx); err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	var report stats.Report
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("stats output is not JSON: %v\n%s", err, out.String())
	}
	if report.Streak.Current != 1 || report.Metrics.Completed != 1 || report.Days != 7 {
		t.Errorf("unexpected report: %+v", report)
	}

	out.Reset()
	if err := (&HabitStatsCmd{Habit: "journal", Days: 7}).Run(ctx); err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if !strings.Contains(out.String(), "Current streak:  1") {
		t.Errorf("unexpected stats output:\n%s", out.String())
	}
}

func TestInsightsCmd(t *testing.T) {
	ctx, out := setupTestDB(t)
	if err := (&HabitAddCmd{Title: "Walk", Target: 2, Frequency: "daily"}).Run(ctx); err != nil {
		t.Fatal(err)
	}
	if err := (&HabitIncCmd{Habit: "walk", By: 1}).Run(ctx); err != nil {
		t.Fatal(err)
	}

	out.Reset()
	if err := (&InsightsCmd{}).Run(ctx); err != nil {
		t.Fatalf("insights failed: %v", err)
	}
	var summaries []models.HabitSummary
	if err := json.Unmarshal(out.Bytes(), &summaries); err != nil {
		t.Fatalf("insights output is not JSON: %v\n%s", err, out.String())
	}
	if len(summaries) != 1 || summaries[0].Title != "Walk" || len(summaries[0].RecentCounts) != 1 {
		t.Errorf("unexpected summaries: %+v", summaries)
	}
}

func TestHabitResolveCmd(t *testing.T) {
	ctx, out := setupTestDB(t)
	if err := (&HabitAddCmd{Title: "Meditate", Target: 1, Frequency: "daily"}).Run(ctx); err != nil {
		t.Fatal(err)
	}
	if err := (&HabitResolveCmd{Habit: "meditate"}).Run(ctx); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !strings.Contains(out.String(), "Kept local copy") {
		t.Errorf("unexpected output: %q", out.String())
	}
}

func ptr[T any](v T) *T { return &v }
