// Package memory is an in-process remote.Store used by tests and by offline
// demos of the sync loop.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/remote"
)

var _ remote.Store = (*Store)(nil)

type completionKey struct {
	userID, habitID, date string
}

// Store keeps remote rows in maps guarded by a mutex
type Store struct {
	mu          sync.Mutex
	habits      map[string]models.Habit
	completions map[completionKey]models.Completion
	writes      int
	reads       int

	// FailWrite, when set, is consulted before every upsert with the row id.
	// A non-nil error fails that write.
	FailWrite func(id string) error
	// FailRead, when set, fails every pull query
	FailRead error
}

func New() *Store {
	return &Store{
		habits:      make(map[string]models.Habit),
		completions: make(map[completionKey]models.Completion),
	}
}

func (s *Store) UpsertHabit(ctx context.Context, h models.Habit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrite != nil {
		if err := s.FailWrite(h.ID); err != nil {
			return err
		}
	}
	s.writes++
	if existing, ok := s.habits[h.ID]; ok {
		h.CreatedAt = existing.CreatedAt
		h.UserID = existing.UserID
	}
	s.habits[h.ID] = remote.StripHabit(h)
	return nil
}

func (s *Store) UpsertCompletion(ctx context.Context, c models.Completion) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrite != nil {
		if err := s.FailWrite(c.ID); err != nil {
			return err
		}
	}
	s.writes++
	key := completionKey{c.UserID, c.HabitID, c.CompletionDate}
	if existing, ok := s.completions[key]; ok {
		// Natural key wins; the first id and created_at are kept
		c.ID = existing.ID
		c.CreatedAt = existing.CreatedAt
	}
	s.completions[key] = remote.StripCompletion(c)
	return nil
}

func (s *Store) HabitsUpdatedAfter(ctx context.Context, userID string, after time.Time) ([]models.Habit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailRead != nil {
		return nil, s.FailRead
	}
	s.reads++

	out := []models.Habit{}
	for _, h := range s.habits {
		if h.UserID == userID && h.UpdatedAt.After(after) {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) CompletionsUpdatedAfter(ctx context.Context, userID string, after time.Time) ([]models.Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailRead != nil {
		return nil, s.FailRead
	}
	s.reads++

	out := []models.Completion{}
	for _, c := range s.completions {
		if c.UserID == userID && c.UpdatedAt.After(after) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) Close() error { return nil }

// Writes returns the number of successful upserts
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Reads returns the number of successful pull queries
func (s *Store) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// Habit returns the stored habit by id
func (s *Store) Habit(id string) (models.Habit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.habits[id]
	return h, ok
}

// Completion returns the stored completion by natural key
func (s *Store) Completion(userID, habitID, date string) (models.Completion, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.completions[completionKey{userID, habitID, date}]
	return c, ok
}

// Len returns the number of stored habits and completions
func (s *Store) Len() (habits, completions int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.habits), len(s.completions)
}
