// Package remote defines the contract the sync engine uses to reach the
// shared backend.
package remote

import (
	"context"
	"errors"
	"time"

	"github.com/julianstephens/tally/internal/models"
)

// ErrNotConfigured is returned when no remote connection string is available
var ErrNotConfigured = errors.New("remote store not configured")

// Store is the remote backend. Habits are upserted by id and completions by
// (user_id, habit_id, completion_date). The last write wins.
type Store interface {
	UpsertHabit(ctx context.Context, habit models.Habit) error
	UpsertCompletion(ctx context.Context, c models.Completion) error
	// HabitsUpdatedAfter returns the user's habits with updated_at strictly after
	// after, oldest first. A zero after returns everything.
	HabitsUpdatedAfter(ctx context.Context, userID string, after time.Time) ([]models.Habit, error)
	CompletionsUpdatedAfter(ctx context.Context, userID string, after time.Time) ([]models.Completion, error)
	Close() error
}

// StripHabit drops the local sync bookkeeping before a habit leaves the device
func StripHabit(h models.Habit) models.Habit {
	h.IsDirty = false
	h.SyncStatus = ""
	h.LastSyncedAt = nil
	h.ConflictData = nil
	return h
}

// StripCompletion drops the local sync bookkeeping before a completion leaves the device
func StripCompletion(c models.Completion) models.Completion {
	c.IsDirty = false
	c.SyncStatus = ""
	c.LastSyncedAt = nil
	return c
}
