// Package syncer reconciles the local store with the remote store: dirty rows
// are pushed, then rows changed elsewhere are pulled.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/remote"
	"github.com/julianstephens/tally/internal/storage"
)

// EntityResult counts the work done for one table in one pass
type EntityResult struct {
	Pushed int `json:"pushed"`
	Failed int `json:"failed"`
	Pulled int `json:"pulled"`
	// Skipped counts pulled rows left alone because the local copy is dirty or identical
	Skipped int `json:"skipped"`
}

// Result summarises a sync pass
type Result struct {
	Habits      EntityResult  `json:"habits"`
	Completions EntityResult  `json:"completions"`
	Duration    time.Duration `json:"duration"`
}

// Options configures an Engine
type Options struct {
	// Concurrency bounds parallel remote writes during a push
	Concurrency int
}

// Engine is safe for concurrent use. Concurrent Sync calls for the same user
// share one pass.
type Engine struct {
	local       storage.Provider
	remote      remote.Store
	concurrency int

	group singleflight.Group

	mu    sync.RWMutex
	hooks []func(habitIDs []string)
}

func New(local storage.Provider, rs remote.Store, opts Options) *Engine {
	if opts.Concurrency < 1 {
		opts.Concurrency = constants.DefaultSyncConcurrency
	}
	return &Engine{
		local:       local,
		remote:      rs,
		concurrency: opts.Concurrency,
	}
}

// OnPulled registers fn to receive the ids of habits whose data changed during a pull
func (e *Engine) OnPulled(fn func(habitIDs []string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hooks = append(e.hooks, fn)
}

func (e *Engine) notify(habitIDs []string) {
	if len(habitIDs) == 0 {
		return
	}
	e.mu.RLock()
	hooks := append([]func([]string){}, e.hooks...)
	e.mu.RUnlock()
	for _, fn := range hooks {
		fn(habitIDs)
	}
}

func (e *Engine) ready() error {
	if e.remote == nil {
		return remote.ErrNotConfigured
	}
	return nil
}

// localErr marks failures of the local store, which abort a pass
type localErr struct{ err error }

func (e *localErr) Error() string { return "local store: " + e.err.Error() }
func (e *localErr) Unwrap() error { return e.err }

func localError(err error) error {
	return &localErr{err: err}
}

func isLocal(err error) bool {
	var le *localErr
	return errors.As(err, &le)
}

// Sync runs habits then completions, each push before pull
func (e *Engine) Sync(ctx context.Context, userID string) (Result, error) {
	v, err, shared := e.group.Do(userID, func() (any, error) {
		return e.sync(ctx, userID)
	})
	if shared {
		logger.Debug("Joined in-flight sync", "component", "syncer", "user_id", userID)
	}
	res, _ := v.(Result)
	return res, err
}

func (e *Engine) sync(ctx context.Context, userID string) (Result, error) {
	start := time.Now()
	var res Result
	if err := e.ready(); err != nil {
		return res, err
	}

	var remoteErrs []error

	habits, err := e.SyncHabits(ctx, userID)
	res.Habits = habits
	if err != nil {
		if isLocal(err) {
			return res, err
		}
		remoteErrs = append(remoteErrs, err)
	}

	completions, err := e.SyncCompletions(ctx, userID)
	res.Completions = completions
	if err != nil {
		if isLocal(err) {
			return res, err
		}
		remoteErrs = append(remoteErrs, err)
	}

	res.Duration = time.Since(start)
	logger.Info("Sync pass finished", "component", "syncer", "user_id", userID,
		"habits_pushed", res.Habits.Pushed, "habits_pulled", res.Habits.Pulled,
		"completions_pushed", res.Completions.Pushed, "completions_pulled", res.Completions.Pulled,
		"failed", res.Habits.Failed+res.Completions.Failed, "duration", res.Duration)
	return res, errors.Join(remoteErrs...)
}

// SyncHabits pushes then pulls habits
func (e *Engine) SyncHabits(ctx context.Context, userID string) (EntityResult, error) {
	pushed, err := e.PushHabits(ctx, userID)
	if err != nil && isLocal(err) {
		return pushed, err
	}
	pushErr := err

	pulled, err := e.PullHabits(ctx, userID)
	pushed.Pulled, pushed.Skipped = pulled.Pulled, pulled.Skipped
	if err != nil {
		return pushed, err
	}
	return pushed, pushErr
}

// SyncCompletions pushes then pulls completions
func (e *Engine) SyncCompletions(ctx context.Context, userID string) (EntityResult, error) {
	pushed, err := e.PushCompletions(ctx, userID)
	if err != nil && isLocal(err) {
		return pushed, err
	}
	pushErr := err

	pulled, err := e.PullCompletions(ctx, userID)
	pushed.Pulled, pushed.Skipped = pulled.Pulled, pulled.Skipped
	if err != nil {
		return pushed, err
	}
	return pushed, pushErr
}

// ErrPushIncomplete is returned when at least one row failed to push
var ErrPushIncomplete = errors.New("some rows failed to push")

// PushHabits upserts every unsynced habit. Failures are isolated per row.
func (e *Engine) PushHabits(ctx context.Context, userID string) (EntityResult, error) {
	if err := e.ready(); err != nil {
		return EntityResult{}, err
	}
	rows, err := e.local.GetUnsyncedHabits(ctx, userID)
	if err != nil {
		return EntityResult{}, localError(err)
	}
	return e.push(ctx, len(rows), func(i int) error {
		return e.SyncHabit(ctx, rows[i])
	})
}

// PushCompletions upserts every unsynced completion by natural key
func (e *Engine) PushCompletions(ctx context.Context, userID string) (EntityResult, error) {
	if err := e.ready(); err != nil {
		return EntityResult{}, err
	}
	rows, err := e.local.GetUnsyncedCompletions(ctx, userID)
	if err != nil {
		return EntityResult{}, localError(err)
	}
	return e.push(ctx, len(rows), func(i int) error {
		return e.SyncCompletion(ctx, rows[i])
	})
}

func (e *Engine) push(ctx context.Context, n int, pushOne func(i int) error) (EntityResult, error) {
	var pushed, failed atomic.Int32

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := pushOne(i); err != nil {
				if isLocal(err) {
					return err
				}
				failed.Add(1)
				return nil
			}
			pushed.Add(1)
			return nil
		})
	}
	err := g.Wait()

	res := EntityResult{Pushed: int(pushed.Load()), Failed: int(failed.Load())}
	if err != nil {
		return res, err
	}
	if res.Failed > 0 {
		return res, fmt.Errorf("%w: %d of %d", ErrPushIncomplete, res.Failed, n)
	}
	return res, nil
}

// SyncHabit pushes one habit. On remote failure the row is marked as errored
// and stays dirty for the next pass.
func (e *Engine) SyncHabit(ctx context.Context, h models.Habit) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.remote.UpsertHabit(ctx, remote.StripHabit(h)); err != nil {
		logger.Warn("Habit push failed", "component", "syncer", "habit_id", h.ID, "error", err)
		if markErr := e.local.MarkSyncError(ctx, storage.TableHabits, h.ID); markErr != nil {
			return localError(markErr)
		}
		return fmt.Errorf("push habit %s: %w", h.ID, err)
	}
	if err := e.local.MarkAsSynced(ctx, storage.TableHabits, h.ID, h.UpdatedAt); err != nil {
		return localError(err)
	}
	return nil
}

// SyncCompletion pushes one completion
func (e *Engine) SyncCompletion(ctx context.Context, c models.Completion) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.remote.UpsertCompletion(ctx, remote.StripCompletion(c)); err != nil {
		logger.Warn("Completion push failed", "component", "syncer",
			"habit_id", c.HabitID, "date", c.CompletionDate, "error", err)
		if markErr := e.local.MarkSyncError(ctx, storage.TableCompletions, c.ID); markErr != nil {
			return localError(markErr)
		}
		return fmt.Errorf("push completion %s: %w", c.ID, err)
	}
	if err := e.local.MarkAsSynced(ctx, storage.TableCompletions, c.ID, c.UpdatedAt); err != nil {
		return localError(err)
	}
	return nil
}

// PullHabits applies remote habits updated since the stored watermark
func (e *Engine) PullHabits(ctx context.Context, userID string) (EntityResult, error) {
	if err := e.ready(); err != nil {
		return EntityResult{}, err
	}
	key := watermarkKey(constants.SettingHabitsWatermark, userID)
	after, err := e.watermark(ctx, key)
	if err != nil {
		return EntityResult{}, err
	}

	rows, err := e.remote.HabitsUpdatedAfter(ctx, userID, after)
	if err != nil {
		return EntityResult{}, fmt.Errorf("pull habits: %w", err)
	}

	var res EntityResult
	var changed []string
	next := after
	blocked := false
	for _, h := range rows {
		applied, err := e.local.ApplyRemoteHabit(ctx, h)
		if err != nil {
			if errors.Is(err, storage.ErrStoreClosed) {
				return res, localError(err)
			}
			logger.Warn("Could not apply remote habit", "component", "syncer", "habit_id", h.ID, "error", err)
			blocked = true
			continue
		}
		if applied {
			res.Pulled++
			changed = append(changed, h.ID)
		} else {
			res.Skipped++
		}
		// Rows are ordered by updated_at; stop advancing at the first failure so it is retried
		if !blocked && h.UpdatedAt.After(next) {
			next = h.UpdatedAt
		}
	}

	e.notify(changed)
	if next.After(after) {
		if err := e.local.SetSetting(ctx, key, next.UTC().Format(time.RFC3339Nano)); err != nil {
			return res, localError(err)
		}
	}
	return res, nil
}

// PullCompletions applies remote completions by natural key
func (e *Engine) PullCompletions(ctx context.Context, userID string) (EntityResult, error) {
	if err := e.ready(); err != nil {
		return EntityResult{}, err
	}
	key := watermarkKey(constants.SettingCompletionsWatermark, userID)
	after, err := e.watermark(ctx, key)
	if err != nil {
		return EntityResult{}, err
	}

	rows, err := e.remote.CompletionsUpdatedAfter(ctx, userID, after)
	if err != nil {
		return EntityResult{}, fmt.Errorf("pull completions: %w", err)
	}

	var res EntityResult
	seen := make(map[string]bool)
	var changed []string
	next := after
	blocked := false
	for _, c := range rows {
		applied, err := e.local.ApplyRemoteCompletion(ctx, c)
		if err != nil {
			if errors.Is(err, storage.ErrStoreClosed) {
				return res, localError(err)
			}
			logger.Warn("Could not apply remote completion", "component", "syncer",
				"habit_id", c.HabitID, "date", c.CompletionDate, "error", err)
			blocked = true
			continue
		}
		if applied {
			res.Pulled++
			if !seen[c.HabitID] {
				seen[c.HabitID] = true
				changed = append(changed, c.HabitID)
			}
		} else {
			res.Skipped++
		}
		if !blocked && c.UpdatedAt.After(next) {
			next = c.UpdatedAt
		}
	}

	e.notify(changed)
	if next.After(after) {
		if err := e.local.SetSetting(ctx, key, next.UTC().Format(time.RFC3339Nano)); err != nil {
			return res, localError(err)
		}
	}
	return res, nil
}

func watermarkKey(prefix, userID string) string {
	return prefix + ":" + userID
}

func (e *Engine) watermark(ctx context.Context, key string) (time.Time, error) {
	value, err := e.local.GetSetting(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, localError(err)
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		logger.Warn("Ignoring malformed watermark", "component", "syncer", "key", key, "value", value)
		return time.Time{}, nil
	}
	return t, nil
}
