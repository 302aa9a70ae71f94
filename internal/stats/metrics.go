package stats

import (
	"time"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/utils"
)

// SuccessMetrics summarises a window. Units are scheduled days for daily
// habits and periods for weekly and monthly habits.
type SuccessMetrics struct {
	TotalScheduled     int     `json:"total_scheduled"`
	Completed          int     `json:"completed"`
	PartiallyCompleted int     `json:"partially_completed"`
	Missed             int     `json:"missed"`
	SuccessRate        float64 `json:"success_rate"`
	ConsistencyScore   float64 `json:"consistency_score"`
}

// PeriodStats is SuccessMetrics over a calendar bucket
type PeriodStats struct {
	Period constants.Period `json:"period"`
	Start  string           `json:"start"`
	End    string           `json:"end"`
	SuccessMetrics
}

// CalculateSuccessMetrics covers the trailing days ending today. days <= 0
// covers the whole history.
func CalculateSuccessMetrics(h models.Habit, completions []models.Completion, days int, today time.Time) SuccessMetrics {
	idx := indexCompletions(completions)
	from := firstDay(h, idx, today)
	if days > 0 {
		from = utils.DateOf(today).AddDate(0, 0, -(days - 1))
	}
	return summarize(units(h, idx, from, today, today))
}

// CalculatePeriodStats buckets by the calendar week (Monday start) or month
// containing today, or by the whole history.
func CalculatePeriodStats(h models.Habit, completions []models.Completion, period constants.Period, today time.Time) PeriodStats {
	idx := indexCompletions(completions)
	to := utils.DateOf(today)

	var from time.Time
	switch period {
	case constants.PeriodWeek:
		from = utils.StartOfWeek(to)
	case constants.PeriodMonth:
		from = utils.StartOfMonth(to)
	default:
		period = constants.PeriodAll
		from = firstDay(h, idx, today)
	}

	if first := firstDay(h, idx, today); from.Before(first) {
		from = first
	}
	return PeriodStats{
		Period:         period,
		Start:          utils.FormatDate(from),
		End:            utils.FormatDate(to),
		SuccessMetrics: summarize(units(h, idx, from, to, today)),
	}
}

func summarize(all []unit) SuccessMetrics {
	var m SuccessMetrics
	var weight float64
	for _, u := range all {
		// The unit in progress only counts once something has been recorded
		if u.current && !u.touched {
			continue
		}
		m.TotalScheduled++
		weight += u.weight()
		switch {
		case u.complete():
			m.Completed++
		case u.touched:
			m.PartiallyCompleted++
		default:
			m.Missed++
		}
	}
	m.SuccessRate = CompletionRate(m.Completed, m.TotalScheduled)
	if m.TotalScheduled > 0 {
		m.ConsistencyScore = weight / float64(m.TotalScheduled) * 100
	}
	return m
}

// CompletionRate is the simple ratio of completed to scheduled units, as a percentage
func CompletionRate(completed, scheduled int) float64 {
	if scheduled <= 0 {
		return 0
	}
	return float64(completed) / float64(scheduled) * 100
}

// ExpectedCompletions is how many completions a frequency calls for between
// start and end inclusive. Months are approximated as 30 days.
func ExpectedCompletions(freq constants.FrequencyType, count int, start, end time.Time) float64 {
	days := utils.DaysBetween(start, end) + 1
	if days <= 0 {
		return 0
	}
	if count < 1 {
		count = 1
	}

	switch freq {
	case constants.FrequencyDaily:
		return float64(days)
	case constants.FrequencyWeekly:
		return spread(count, days, 7)
	case constants.FrequencyMonthly:
		return spread(count, days, 30)
	case constants.FrequencyCustom:
		return float64(count)
	default:
		return 0
	}
}

// spread is count per full unit plus the proportional share of the remainder
func spread(count, days, unitDays int) float64 {
	full := days / unitDays
	rem := days % unitDays
	return float64(count*full) + float64(count)*float64(rem)/float64(unitDays)
}

// FrequencyNormalizedRate compares actual completions to ExpectedCompletions,
// as a percentage capped at 100.
func FrequencyNormalizedRate(actual int, expected float64) float64 {
	if expected <= 0 || actual <= 0 {
		return 0
	}
	rate := float64(actual) / expected * 100
	if rate > 100 {
		return 100
	}
	return rate
}

// CompletedDays counts days in [from, to] whose count meets the habit's target
func CompletedDays(h models.Habit, completions []models.Completion, from, to time.Time) int {
	lo, hi := utils.FormatDate(utils.DateOf(from)), utils.FormatDate(utils.DateOf(to))
	n := 0
	for _, c := range completions {
		if c.CompletionDate < lo || c.CompletionDate > hi {
			continue
		}
		if models.IsComplete(c.CompletedCount, h.TargetCount) {
			n++
		}
	}
	return n
}
