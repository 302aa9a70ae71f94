package stats

import (
	"time"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/utils"
)

// DefaultWindowDays is the trailing window used when a caller asks for zero days
const DefaultWindowDays = 30

// Report bundles every statistic shown for one habit
type Report struct {
	HabitID string         `json:"habit_id"`
	Days    int            `json:"days"`
	Streak  Streak         `json:"streak"`
	Metrics SuccessMetrics `json:"metrics"`
	Week    PeriodStats    `json:"week"`
	Month   PeriodStats    `json:"month"`
	All     PeriodStats    `json:"all"`

	// Expected and NormalizedRate are the frequency-normalised view of the
	// same window, kept apart from Metrics.SuccessRate.
	Expected       float64 `json:"expected"`
	NormalizedRate float64 `json:"normalized_rate"`
}

// Compute builds a Report for the trailing days ending today
func Compute(h models.Habit, completions []models.Completion, days int, today time.Time) Report {
	if days <= 0 {
		days = DefaultWindowDays
	}
	end := utils.DateOf(today)
	start := end.AddDate(0, 0, -(days - 1))
	idx := indexCompletions(completions)
	if first := firstDay(h, idx, today); start.Before(first) {
		start = first
	}

	expected := ExpectedCompletions(h.FrequencyType, h.PeriodQuota(), start, end)
	return Report{
		HabitID:        h.ID,
		Days:           days,
		Streak:         CalculateStreak(h, completions, today),
		Metrics:        CalculateSuccessMetrics(h, completions, days, today),
		Week:           CalculatePeriodStats(h, completions, constants.PeriodWeek, today),
		Month:          CalculatePeriodStats(h, completions, constants.PeriodMonth, today),
		All:            CalculatePeriodStats(h, completions, constants.PeriodAll, today),
		Expected:       expected,
		NormalizedRate: FrequencyNormalizedRate(CompletedDays(h, completions, start, end), expected),
	}
}
