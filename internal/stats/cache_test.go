package stats

import (
	"testing"

	"github.com/julianstephens/tally/internal/constants"
)

func TestCache_HitRequiresSameInputs(t *testing.T) {
	cache, err := NewCache(8)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	habit := dailyHabit(date(2026, 10, 1), 1)
	completions := ones("2026-10-13", "2026-10-14")

	first, err := cache.Report(habit, completions, 7, today)
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}
	if first.Streak.Current != 2 {
		t.Errorf("expected streak 2, got %+v", first.Streak)
	}
	if _, err := cache.Report(habit, completions, 7, today); err != nil {
		t.Fatalf("Report failed: %v", err)
	}
	if hits, misses := cache.Stats(); hits != 1 || misses != 1 {
		t.Errorf("expected 1 hit and 1 miss, got %d/%d", hits, misses)
	}

	// Sync bookkeeping does not affect statistics
	habit.SyncStatus = constants.SyncStatusSynced
	habit.IsDirty = false
	if _, err := cache.Report(habit, completions, 7, today); err != nil {
		t.Fatalf("Report failed: %v", err)
	}
	if hits, _ := cache.Stats(); hits != 2 {
		t.Errorf("bookkeeping change should still hit, hits=%d", hits)
	}

	// New history misses and recomputes
	completions = ones("2026-10-12", "2026-10-13", "2026-10-14")
	got, err := cache.Report(habit, completions, 7, today)
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}
	if got.Streak.Current != 3 {
		t.Errorf("expected recomputed streak 3, got %+v", got.Streak)
	}
	if _, misses := cache.Stats(); misses != 2 {
		t.Errorf("expected a second miss, misses=%d", misses)
	}

	// Completion order does not matter
	reversed := ones("2026-10-14", "2026-10-13", "2026-10-12")
	if _, err := cache.Report(habit, reversed, 7, today); err != nil {
		t.Fatalf("Report failed: %v", err)
	}
	if hits, _ := cache.Stats(); hits != 3 {
		t.Errorf("reordered completions should hit, hits=%d", hits)
	}
}

func TestCache_Invalidate(t *testing.T) {
	cache, err := NewCache(0)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	a := dailyHabit(date(2026, 10, 1), 1)
	b := a
	b.ID = "h2"

	for _, h := range []string{a.ID, b.ID} {
		habit := a
		habit.ID = h
		if _, err := cache.Report(habit, nil, 7, today); err != nil {
			t.Fatalf("Report failed: %v", err)
		}
	}
	if cache.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", cache.Len())
	}

	cache.Invalidate(a.ID)
	if cache.Len() != 1 {
		t.Errorf("expected 1 entry after invalidate, got %d", cache.Len())
	}
	if _, err := cache.Report(a, nil, 7, today); err != nil {
		t.Fatalf("Report failed: %v", err)
	}
	if _, misses := cache.Stats(); misses != 3 {
		t.Errorf("invalidated habit should miss, misses=%d", misses)
	}

	cache.Purge()
	if cache.Len() != 0 {
		t.Errorf("expected empty cache after purge, got %d", cache.Len())
	}
}

func TestCache_Eviction(t *testing.T) {
	cache, err := NewCache(1)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	a := dailyHabit(date(2026, 10, 1), 1)
	b := a
	b.ID = "h2"

	_, _ = cache.Report(a, nil, 7, today)
	_, _ = cache.Report(b, nil, 7, today)
	_, _ = cache.Report(a, nil, 7, today)

	if hits, misses := cache.Stats(); hits != 0 || misses != 3 {
		t.Errorf("expected eviction to force misses, got %d hits %d misses", hits, misses)
	}
}
