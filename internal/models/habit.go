package models

import (
	"encoding/json"
	"time"

	"github.com/julianstephens/tally/internal/constants"
)

// Habit represents a recurring intention owned by one user
type Habit struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Title       string `json:"title"`
	Icon        string `json:"icon"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category"`
	BgColor     string `json:"bg_color"`

	TargetCount int    `json:"target_count"`
	TargetUnit  string `json:"target_unit"`

	FrequencyType  constants.FrequencyType `json:"frequency_type"`
	FrequencyDays  []time.Weekday          `json:"frequency_days,omitempty"`  // daily habits only, empty means every day
	FrequencyCount int                     `json:"frequency_count,omitempty"` // weekly/monthly habits only

	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	IsDirty      bool                 `json:"is_dirty"`
	SyncStatus   constants.SyncStatus `json:"sync_status"`
	LastSyncedAt *time.Time           `json:"last_synced_at,omitempty"`
	ConflictData json.RawMessage      `json:"conflict_data,omitempty"`
}

// PeriodQuota returns the number of completed days a weekly or monthly period needs.
func (h Habit) PeriodQuota() int {
	if h.FrequencyCount < 1 {
		return 1
	}
	return h.FrequencyCount
}

// Completion represents progress toward a habit on one calendar date
type Completion struct {
	ID             string `json:"id"`
	HabitID        string `json:"habit_id"`
	UserID         string `json:"user_id"`
	CompletionDate string `json:"completion_date"` // YYYY-MM-DD format
	CompletedCount int    `json:"completed_count"`
	Notes          string `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	IsDirty      bool                 `json:"is_dirty"`
	SyncStatus   constants.SyncStatus `json:"sync_status"`
	LastSyncedAt *time.Time           `json:"last_synced_at,omitempty"`
}

// HabitUpdate is a partial update. Nil fields are left untouched.
type HabitUpdate struct {
	Title          *string
	Icon           *string
	Description    *string
	Category       *string
	BgColor        *string
	TargetCount    *int
	TargetUnit     *string
	FrequencyType  *constants.FrequencyType
	FrequencyDays  *[]time.Weekday
	FrequencyCount *int
	IsActive       *bool
	UpdatedAt      *time.Time
	IsDirty        *bool
	SyncStatus     *constants.SyncStatus
}

// IsEmpty reports whether the update would change nothing
func (u HabitUpdate) IsEmpty() bool {
	return u == HabitUpdate{}
}

// Apply returns a copy of h with the non-nil fields of u applied.
func (u HabitUpdate) Apply(h Habit) Habit {
	if u.Title != nil {
		h.Title = *u.Title
	}
	if u.Icon != nil {
		h.Icon = *u.Icon
	}
	if u.Description != nil {
		h.Description = *u.Description
	}
	if u.Category != nil {
		h.Category = *u.Category
	}
	if u.BgColor != nil {
		h.BgColor = *u.BgColor
	}
	if u.TargetCount != nil {
		h.TargetCount = *u.TargetCount
	}
	if u.TargetUnit != nil {
		h.TargetUnit = *u.TargetUnit
	}
	if u.FrequencyType != nil {
		h.FrequencyType = *u.FrequencyType
	}
	if u.FrequencyDays != nil {
		h.FrequencyDays = *u.FrequencyDays
	}
	if u.FrequencyCount != nil {
		h.FrequencyCount = *u.FrequencyCount
	}
	if u.IsActive != nil {
		h.IsActive = *u.IsActive
	}
	if u.UpdatedAt != nil {
		h.UpdatedAt = *u.UpdatedAt
	}
	if u.IsDirty != nil {
		h.IsDirty = *u.IsDirty
	}
	if u.SyncStatus != nil {
		h.SyncStatus = *u.SyncStatus
	}
	return h
}

// HabitInput carries the user-editable fields of a new habit
type HabitInput struct {
	Title          string                  `validate:"required,max=120"`
	Icon           string                  `validate:"max=16"`
	Description    string                  `validate:"max=500"`
	Category       string                  `validate:"max=64"`
	BgColor        string                  `validate:"omitempty,hexcolor"`
	TargetCount    int                     `validate:"min=1"`
	TargetUnit     string                  `validate:"max=32"`
	FrequencyType  constants.FrequencyType `validate:"required,oneof=daily weekly monthly"`
	FrequencyDays  []time.Weekday          `validate:"omitempty,max=7,unique,dive,min=0,max=6"`
	FrequencyCount int                     `validate:"min=0,max=31"`
}

// EnrichedHabit is a habit joined with today's completion and derived streak data.
// It is built at read time and never persisted.
type EnrichedHabit struct {
	Habit
	TodayCompletion *Completion `json:"today_completion,omitempty"`
	Streak          int         `json:"streak"`
	LongestStreak   int         `json:"longest_streak"`
	IsCompleted     bool        `json:"is_completed"`
	Progress        float64     `json:"progress"`
}

// IsComplete is the single completion predicate: a day counts as done once the
// recorded count reaches the habit's target.
func IsComplete(completedCount, targetCount int) bool {
	if targetCount < 1 {
		targetCount = 1
	}
	return completedCount >= targetCount
}

// Progress returns completedCount/targetCount clamped to [0, 1].
func Progress(completedCount, targetCount int) float64 {
	if targetCount < 1 {
		targetCount = 1
	}
	p := float64(completedCount) / float64(targetCount)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// HabitSummary is the read-only view handed to insight consumers
type HabitSummary struct {
	HabitID          string                  `json:"habit_id"`
	Title            string                  `json:"title"`
	Category         string                  `json:"category"`
	FrequencyType    constants.FrequencyType `json:"frequency_type"`
	TargetCount      int                     `json:"target_count"`
	TargetUnit       string                  `json:"target_unit"`
	CurrentStreak    int                     `json:"current_streak"`
	LongestStreak    int                     `json:"longest_streak"`
	SuccessRate      float64                 `json:"success_rate"`
	ConsistencyScore float64                 `json:"consistency_score"`
	RecentCounts     map[string]int          `json:"recent_counts"` // completion_date -> completed_count
}
