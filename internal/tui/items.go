package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/models"
)

// Item is one habit row in the list
type Item struct {
	Habit models.EnrichedHabit
}

func (i Item) Title() string {
	mark := "○"
	if i.Habit.IsCompleted {
		mark = "✓"
	}
	if i.Habit.Icon != "" {
		return fmt.Sprintf("%s %s %s", mark, i.Habit.Icon, i.Habit.Title)
	}
	return fmt.Sprintf("%s %s", mark, i.Habit.Title)
}

func (i Item) Description() string {
	count := 0
	if i.Habit.TodayCompletion != nil {
		count = i.Habit.TodayCompletion.CompletedCount
	}
	parts := []string{fmt.Sprintf("%d/%d", count, i.Habit.TargetCount)}
	if i.Habit.TargetUnit != "" {
		parts[0] += " " + i.Habit.TargetUnit
	}
	if i.Habit.Streak > 0 {
		parts = append(parts, fmt.Sprintf("🔥 %d", i.Habit.Streak))
	}
	switch {
	case i.Habit.SyncStatus == constants.SyncStatusConflict:
		parts = append(parts, "conflict")
	case i.Habit.IsDirty:
		parts = append(parts, "unsynced")
	}
	return strings.Join(parts, " · ")
}

func (i Item) FilterValue() string { return i.Habit.Title }

func toItems(habits []models.EnrichedHabit) []list.Item {
	items := make([]list.Item, len(habits))
	for i, h := range habits {
		items[i] = Item{Habit: h}
	}
	return items
}
