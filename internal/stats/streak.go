package stats

import (
	"time"

	"github.com/julianstephens/tally/internal/models"
)

// Streak holds consecutive completed units: days for daily habits, weeks or
// months for periodic ones
type Streak struct {
	Current int `json:"current"`
	Longest int `json:"longest"`
}

// CalculateStreak walks the habit's history as of today. The unit containing
// today neither counts nor breaks the streak until it is complete.
func CalculateStreak(h models.Habit, completions []models.Completion, today time.Time) Streak {
	idx := indexCompletions(completions)
	all := units(h, idx, firstDay(h, idx, today), today, today)

	var s Streak
	run := 0
	for _, u := range all {
		switch {
		case u.complete():
			run++
			s.Longest = max(s.Longest, run)
		case u.current:
			// pending
		default:
			run = 0
		}
	}
	s.Current = run
	return s
}
