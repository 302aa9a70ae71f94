// Package service is the habit façade: local reads and writes first, remote
// sync in the background whenever the device is online.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/network"
	"github.com/julianstephens/tally/internal/remote"
	"github.com/julianstephens/tally/internal/stats"
	"github.com/julianstephens/tally/internal/storage"
	"github.com/julianstephens/tally/internal/syncer"
	"github.com/julianstephens/tally/internal/utils"
	"github.com/julianstephens/tally/internal/validation"
)

var (
	// ErrNoUser is returned when no user is signed in
	ErrNoUser = errors.New("no signed-in user")
	// ErrInvalidHabit matches every habit validation failure
	ErrInvalidHabit = errors.New("invalid habit")
	// ErrInvalidCount is returned for a negative completion count
	ErrInvalidCount = errors.New("completed count must not be negative")
)

// ValidationError carries the individual problems found in a habit
type ValidationError struct {
	Result validation.ValidationResult
}

func (e *ValidationError) Error() string {
	return strings.TrimSuffix(e.Result.FormatReport(), "\n")
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidHabit }

// Auth supplies the signed-in user
type Auth interface {
	UserID(ctx context.Context) (string, error)
}

// StaticAuth is a fixed user id, as configured for the CLI
type StaticAuth string

func (a StaticAuth) UserID(context.Context) (string, error) {
	if a == "" {
		return "", ErrNoUser
	}
	return string(a), nil
}

// InsightSink consumes read-only habit summaries
type InsightSink interface {
	Publish(ctx context.Context, summaries []models.HabitSummary) error
}

// Options wires a Service. Engine and Prober may be nil for a local-only service.
type Options struct {
	Auth     Auth
	Local    storage.Provider
	Engine   *syncer.Engine
	Prober   network.Prober
	Interval time.Duration
	Cache    *stats.Cache
	Sink     InsightSink
	Location *time.Location
	Now      func() time.Time
}

// Service is safe for concurrent use. Destroy must be called before the local
// store is closed.
type Service struct {
	auth      Auth
	local     storage.Provider
	engine    *syncer.Engine
	monitor   *network.Monitor
	cache     *stats.Cache
	sink      InsightSink
	validator *validation.Validator
	loc       *time.Location
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
	once   sync.Once
}

func New(opts Options) (*Service, error) {
	if opts.Local == nil {
		return nil, errors.New("service requires a local store")
	}
	if opts.Auth == nil {
		opts.Auth = StaticAuth("")
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Cache == nil {
		cache, err := stats.NewCache(constants.DefaultStatsCacheSize)
		if err != nil {
			return nil, err
		}
		opts.Cache = cache
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		auth:      opts.Auth,
		local:     opts.Local,
		engine:    opts.Engine,
		cache:     opts.Cache,
		sink:      opts.Sink,
		validator: validation.New(),
		loc:       opts.Location,
		now:       opts.Now,
		ctx:       ctx,
		cancel:    cancel,
	}

	if s.engine != nil {
		s.engine.OnPulled(func(ids []string) { s.cache.Invalidate(ids...) })
		if opts.Prober != nil {
			s.monitor = network.NewMonitor(opts.Prober, network.Options{
				Interval: opts.Interval,
				OnReconnect: func(ctx context.Context) error {
					_, err := s.Sync(ctx)
					return err
				},
			})
		}
	}
	return s, nil
}

// Destroy stops the monitor and waits for background sync to finish. It is
// safe to call more than once.
func (s *Service) Destroy() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		if s.monitor != nil {
			s.monitor.Destroy()
		}
		s.wg.Wait()
		s.cancel()
	})
}

// Online reports whether sync is configured and the network is usable
func (s *Service) Online() bool {
	return s.engine != nil && s.monitor != nil && s.monitor.IsOnline()
}

// Monitor exposes the network monitor, nil when sync is not configured
func (s *Service) Monitor() *network.Monitor {
	return s.monitor
}

func (s *Service) today() time.Time {
	return s.now().In(s.loc)
}

func (s *Service) userID(ctx context.Context) (string, error) {
	id, err := s.auth.UserID(ctx)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", ErrNoUser
	}
	return id, nil
}

// background runs fn on the service-lifetime context. Failures are logged only.
func (s *Service) background(task string, fn func(ctx context.Context) error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		if err := fn(s.ctx); err != nil {
			logger.Warn("Background sync failed", "component", "service", "task", task, "error", err)
		}
	}()
}

// owned loads an active habit and hides it from other users
func (s *Service) owned(ctx context.Context, habitID string) (models.Habit, string, error) {
	h, userID, err := s.ownedAny(ctx, habitID)
	if err != nil {
		return models.Habit{}, "", err
	}
	if !h.IsActive {
		return models.Habit{}, "", fmt.Errorf("habit %s: %w", habitID, storage.ErrNotFound)
	}
	return h, userID, nil
}

// ownedAny is owned without the active check, deleted habits included
func (s *Service) ownedAny(ctx context.Context, habitID string) (models.Habit, string, error) {
	userID, err := s.userID(ctx)
	if err != nil {
		return models.Habit{}, "", err
	}
	h, err := s.local.GetHabit(ctx, habitID)
	if err != nil {
		return models.Habit{}, "", err
	}
	if h.UserID != userID {
		return models.Habit{}, "", fmt.Errorf("habit %s: %w", habitID, storage.ErrNotFound)
	}
	return h, userID, nil
}

// GetHabits returns active habits with today's progress and streaks. A sync
// pass is started in the background when online; it is never awaited.
func (s *Service) GetHabits(ctx context.Context) ([]models.EnrichedHabit, error) {
	userID, err := s.userID(ctx)
	if err != nil {
		return nil, err
	}
	habits, err := s.local.GetHabits(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load habits: %w", err)
	}

	if s.Online() {
		s.background("sync", func(ctx context.Context) error {
			_, err := s.engine.Sync(ctx, userID)
			return err
		})
	}

	today := s.today()
	enriched := make([]models.EnrichedHabit, 0, len(habits))
	for _, h := range habits {
		e, err := s.enrich(ctx, h, userID, today)
		if err != nil {
			return nil, err
		}
		enriched = append(enriched, e)
	}
	return enriched, nil
}

func (s *Service) enrich(ctx context.Context, h models.Habit, userID string, today time.Time) (models.EnrichedHabit, error) {
	e := models.EnrichedHabit{Habit: h}

	c, err := s.local.GetCompletionByDate(ctx, h.ID, userID, utils.FormatDate(today))
	switch {
	case err == nil:
		e.TodayCompletion = &c
		e.IsCompleted = models.IsComplete(c.CompletedCount, h.TargetCount)
		e.Progress = models.Progress(c.CompletedCount, h.TargetCount)
	case errors.Is(err, storage.ErrNotFound):
	default:
		return e, fmt.Errorf("failed to load today's completion for %s: %w", h.ID, err)
	}

	report, err := s.report(ctx, h, stats.DefaultWindowDays, today)
	if err != nil {
		return e, err
	}
	e.Streak = report.Streak.Current
	e.LongestStreak = report.Streak.Longest
	return e, nil
}

func (s *Service) report(ctx context.Context, h models.Habit, days int, today time.Time) (stats.Report, error) {
	completions, err := s.local.GetCompletionsForHabit(ctx, h.ID)
	if err != nil {
		return stats.Report{}, fmt.Errorf("failed to load completions for %s: %w", h.ID, err)
	}
	return s.cache.Report(h, completions, days, today)
}

// CreateHabit validates and stores a new habit, then pushes it when online
func (s *Service) CreateHabit(ctx context.Context, in models.HabitInput) (models.Habit, error) {
	userID, err := s.userID(ctx)
	if err != nil {
		return models.Habit{}, err
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.TargetCount == 0 {
		in.TargetCount = 1
	}
	if result := s.validator.ValidateHabitInput(in); result.HasProblems() {
		return models.Habit{}, &ValidationError{Result: result}
	}

	now := s.now().UTC()
	h := models.Habit{
		ID:             uuid.NewString(),
		UserID:         userID,
		Title:          in.Title,
		Icon:           in.Icon,
		Description:    in.Description,
		Category:       in.Category,
		BgColor:        in.BgColor,
		TargetCount:    in.TargetCount,
		TargetUnit:     in.TargetUnit,
		FrequencyType:  in.FrequencyType,
		FrequencyDays:  in.FrequencyDays,
		FrequencyCount: in.FrequencyCount,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
		IsDirty:        true,
		SyncStatus:     constants.SyncStatusPending,
	}
	if err := s.local.InsertHabit(ctx, h); err != nil {
		return models.Habit{}, fmt.Errorf("failed to save habit: %w", err)
	}
	logger.Info("Created habit", "component", "service", "habit_id", h.ID)

	s.pushHabit(h.ID)
	return h, nil
}

// pushHabit re-reads the row so the push carries exactly what was stored
func (s *Service) pushHabit(habitID string) {
	if !s.Online() {
		return
	}
	s.background("push habit", func(ctx context.Context) error {
		h, err := s.local.GetHabit(ctx, habitID)
		if err != nil {
			return err
		}
		return s.engine.SyncHabit(ctx, h)
	})
}

func (s *Service) pushCompletion(c models.Completion) {
	if !s.Online() {
		return
	}
	s.background("push completion", func(ctx context.Context) error {
		return s.engine.SyncCompletion(ctx, c)
	})
}

// UpdateHabit applies a partial update and marks the habit for sync
func (s *Service) UpdateHabit(ctx context.Context, habitID string, update models.HabitUpdate) (models.Habit, error) {
	existing, _, err := s.owned(ctx, habitID)
	if err != nil {
		return models.Habit{}, err
	}
	if update.IsEmpty() {
		return existing, nil
	}

	merged := update.Apply(existing)
	if result := s.validator.ValidateHabit(merged); result.HasProblems() {
		return models.Habit{}, &ValidationError{Result: result}
	}

	now := s.now().UTC()
	dirty := true
	pending := constants.SyncStatusPending
	update.UpdatedAt = &now
	update.IsDirty = &dirty
	update.SyncStatus = &pending

	updated, err := s.local.UpdateHabit(ctx, habitID, update)
	if err != nil {
		return models.Habit{}, fmt.Errorf("failed to update habit: %w", err)
	}
	s.cache.Invalidate(habitID)
	s.pushHabit(habitID)
	return updated, nil
}

// DeleteHabit soft-deletes and pushes the tombstone when online
func (s *Service) DeleteHabit(ctx context.Context, habitID string) error {
	if _, _, err := s.ownedAny(ctx, habitID); err != nil {
		return err
	}
	if err := s.local.DeleteHabit(ctx, habitID); err != nil {
		return fmt.Errorf("failed to delete habit: %w", err)
	}
	s.cache.Invalidate(habitID)
	logger.Info("Deleted habit", "component", "service", "habit_id", habitID)
	s.pushHabit(habitID)
	return nil
}

// CompleteHabit sets today's count for a habit. Calling it again replaces the count.
func (s *Service) CompleteHabit(ctx context.Context, habitID string, count int, notes string) (models.Completion, error) {
	if count < 0 {
		return models.Completion{}, ErrInvalidCount
	}
	_, userID, err := s.owned(ctx, habitID)
	if err != nil {
		return models.Completion{}, err
	}

	now := s.now().UTC()
	stored, err := s.local.UpsertCompletion(ctx, models.Completion{
		ID:             uuid.NewString(),
		HabitID:        habitID,
		UserID:         userID,
		CompletionDate: utils.FormatDate(s.today()),
		CompletedCount: count,
		Notes:          notes,
		CreatedAt:      now,
		UpdatedAt:      now,
		IsDirty:        true,
		SyncStatus:     constants.SyncStatusPending,
	})
	if err != nil {
		return models.Completion{}, fmt.Errorf("failed to record completion: %w", err)
	}
	s.cache.Invalidate(habitID)
	s.pushCompletion(stored)
	return stored, nil
}

// AdjustCompletion adds delta to today's count, never going below zero. The
// increment happens in the store so concurrent adjustments all land.
func (s *Service) AdjustCompletion(ctx context.Context, habitID string, delta int) (models.Completion, error) {
	_, userID, err := s.owned(ctx, habitID)
	if err != nil {
		return models.Completion{}, err
	}

	now := s.now().UTC()
	stored, err := s.local.IncrementCompletion(ctx, models.Completion{
		ID:             uuid.NewString(),
		HabitID:        habitID,
		UserID:         userID,
		CompletionDate: utils.FormatDate(s.today()),
		CreatedAt:      now,
		UpdatedAt:      now,
		IsDirty:        true,
		SyncStatus:     constants.SyncStatusPending,
	}, delta)
	if err != nil {
		return models.Completion{}, fmt.Errorf("failed to adjust completion: %w", err)
	}
	s.cache.Invalidate(habitID)
	s.pushCompletion(stored)
	return stored, nil
}

// GetStatistics reports streaks and rates over the trailing days
func (s *Service) GetStatistics(ctx context.Context, habitID string, days int) (stats.Report, error) {
	h, _, err := s.owned(ctx, habitID)
	if err != nil {
		return stats.Report{}, err
	}
	return s.report(ctx, h, days, s.today())
}

// Sync runs one full pass and waits for it
func (s *Service) Sync(ctx context.Context) (syncer.Result, error) {
	if s.engine == nil {
		return syncer.Result{}, remote.ErrNotConfigured
	}
	userID, err := s.userID(ctx)
	if err != nil {
		return syncer.Result{}, err
	}
	return s.engine.Sync(ctx, userID)
}

// ResolveConflict drops the stored conflict snapshot and keeps the local version
func (s *Service) ResolveConflict(ctx context.Context, habitID string) error {
	if _, _, err := s.owned(ctx, habitID); err != nil {
		return err
	}
	if err := s.local.ClearConflict(ctx, habitID); err != nil {
		return fmt.Errorf("failed to resolve conflict: %w", err)
	}
	return nil
}

// Status describes local sync state for display
type Status struct {
	UserID           string                 `json:"user_id"`
	RemoteConfigured bool                   `json:"remote_configured"`
	Online           bool                   `json:"online"`
	Network          network.Status         `json:"network"`
	Unsynced         storage.UnsyncedCounts `json:"unsynced"`
}

func (s *Service) Status(ctx context.Context) (Status, error) {
	userID, err := s.userID(ctx)
	if err != nil {
		return Status{}, err
	}
	counts, err := s.local.CountUnsynced(ctx, userID)
	if err != nil {
		return Status{}, err
	}
	st := Status{
		UserID:           userID,
		RemoteConfigured: s.engine != nil,
		Online:           s.Online(),
		Unsynced:         counts,
	}
	if s.monitor != nil {
		st.Network = s.monitor.Status()
	}
	return st, nil
}

// PublishSummaries hands a summary of every active habit to the insight sink
func (s *Service) PublishSummaries(ctx context.Context) error {
	if s.sink == nil {
		return nil
	}
	userID, err := s.userID(ctx)
	if err != nil {
		return err
	}
	habits, err := s.local.GetHabits(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load habits: %w", err)
	}
	recent, err := s.local.GetCompletions(ctx, userID, stats.DefaultWindowDays)
	if err != nil {
		return fmt.Errorf("failed to load completions: %w", err)
	}
	byHabit := make(map[string]map[string]int)
	for _, c := range recent {
		if byHabit[c.HabitID] == nil {
			byHabit[c.HabitID] = make(map[string]int)
		}
		byHabit[c.HabitID][c.CompletionDate] = c.CompletedCount
	}

	today := s.today()
	summaries := make([]models.HabitSummary, 0, len(habits))
	for _, h := range habits {
		report, err := s.report(ctx, h, stats.DefaultWindowDays, today)
		if err != nil {
			return err
		}
		counts := byHabit[h.ID]
		if counts == nil {
			counts = map[string]int{}
		}
		summaries = append(summaries, models.HabitSummary{
			HabitID:          h.ID,
			Title:            h.Title,
			Category:         h.Category,
			FrequencyType:    h.FrequencyType,
			TargetCount:      h.TargetCount,
			TargetUnit:       h.TargetUnit,
			CurrentStreak:    report.Streak.Current,
			LongestStreak:    report.Streak.Longest,
			SuccessRate:      report.Metrics.SuccessRate,
			ConsistencyScore: report.Metrics.ConsistencyScore,
			RecentCounts:     counts,
		})
	}
	return s.sink.Publish(ctx, summaries)
}
