package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/models"
)

var (
	// ErrNotFound is returned when a point lookup matches no row
	ErrNotFound = errors.New("not found")
	// ErrStoreClosed is returned by every operation after Close
	ErrStoreClosed = errors.New("store is closed")
	// ErrNotInitialized is returned when the database file does not exist yet
	ErrNotInitialized = errors.New("storage not initialized, run 'tally init' first")
)

// Table names a synced table for bookkeeping operations
type Table string

const (
	TableHabits      Table = constants.TableHabits
	TableCompletions Table = constants.TableCompletions
)

// UnsyncedCounts summarises pending local work for one user
type UnsyncedCounts struct {
	Habits      int
	Completions int
	Conflicts   int
	Errors      int
}

// Provider is the local persistent store. It is pure data access: callers own
// dirty flags and sync status except where an operation documents otherwise.
type Provider interface {
	// Lifecycle
	Init(ctx context.Context) error
	Load(ctx context.Context) error
	Close() error
	Path() string

	// Habits
	InsertHabit(ctx context.Context, habit models.Habit) error
	GetHabit(ctx context.Context, id string) (models.Habit, error)
	// GetHabits returns active habits, newest created first
	GetHabits(ctx context.Context, userID string) ([]models.Habit, error)
	UpdateHabit(ctx context.Context, id string, update models.HabitUpdate) (models.Habit, error)
	// DeleteHabit soft-deletes and marks the row dirty/pending
	DeleteHabit(ctx context.Context, id string) error

	// Completions
	InsertCompletion(ctx context.Context, c models.Completion) error
	// UpsertCompletion writes by natural key (habit, user, date) and returns the stored row
	UpsertCompletion(ctx context.Context, c models.Completion) (models.Completion, error)
	// IncrementCompletion adds delta to the count for c's natural key atomically, never below zero
	IncrementCompletion(ctx context.Context, c models.Completion, delta int) (models.Completion, error)
	// GetCompletions restricts to the trailing days window when days > 0
	GetCompletions(ctx context.Context, userID string, days int) ([]models.Completion, error)
	GetCompletionsForHabit(ctx context.Context, habitID string) ([]models.Completion, error)
	GetCompletionByDate(ctx context.Context, habitID, userID, date string) (models.Completion, error)
	GetTodayCompletion(ctx context.Context, habitID, userID string) (models.Completion, error)

	// Sync bookkeeping
	GetUnsyncedHabits(ctx context.Context, userID string) ([]models.Habit, error)
	GetUnsyncedCompletions(ctx context.Context, userID string) ([]models.Completion, error)
	// MarkAsSynced skips the update when version is non-zero and the row's
	// updated_at no longer matches it
	MarkAsSynced(ctx context.Context, table Table, id string, version time.Time) error
	MarkSyncError(ctx context.Context, table Table, id string) error
	SetConflict(ctx context.Context, habitID string, snapshot json.RawMessage) error
	ClearConflict(ctx context.Context, habitID string) error
	// ApplyRemote* write pulled rows as synced. A locally dirty row is left untouched
	// and reported as not applied.
	ApplyRemoteHabit(ctx context.Context, habit models.Habit) (bool, error)
	ApplyRemoteCompletion(ctx context.Context, c models.Completion) (bool, error)
	CountUnsynced(ctx context.Context, userID string) (UnsyncedCounts, error)

	// Settings
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}
