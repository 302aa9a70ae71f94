// Package stats derives streaks and completion metrics from a habit and its
// completion history. Everything here is pure; dates are calendar days in the
// location of the "today" argument.
package stats

import (
	"slices"
	"time"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/utils"
)

// history indexes completed counts by YYYY-MM-DD
type history map[string]int

func indexCompletions(completions []models.Completion) history {
	idx := make(history, len(completions))
	for _, c := range completions {
		idx[c.CompletionDate] = c.CompletedCount
	}
	return idx
}

func (h history) count(day time.Time) int {
	return h[utils.FormatDate(day)]
}

// createdDate is the calendar day of creation in loc. A zero CreatedAt has no lower bound.
func createdDate(h models.Habit, loc *time.Location) (time.Time, bool) {
	if h.CreatedAt.IsZero() {
		return time.Time{}, false
	}
	return utils.DateOf(h.CreatedAt.In(loc)), true
}

// firstDay is the earliest day statistics consider: creation, or the oldest completion
func firstDay(h models.Habit, idx history, today time.Time) time.Time {
	if d, ok := createdDate(h, today.Location()); ok {
		return d
	}
	first := utils.DateOf(today)
	for date := range idx {
		if d, err := utils.ParseDate(date); err == nil && d.Before(first) {
			first = d
		}
	}
	return first
}

// IsScheduled reports whether day is an opportunity to perform the habit.
// Daily habits honour FrequencyDays; weekly and monthly habits may be done on
// any day of their period. Days before creation are never scheduled.
func IsScheduled(h models.Habit, day time.Time) bool {
	if created, ok := createdDate(h, day.Location()); ok && utils.DateOf(day).Before(created) {
		return false
	}
	return onSchedule(h, day.Weekday())
}

func onSchedule(h models.Habit, wd time.Weekday) bool {
	if h.FrequencyType == constants.FrequencyDaily && len(h.FrequencyDays) > 0 {
		return slices.Contains(h.FrequencyDays, wd)
	}
	return true
}

// periodBounds returns the first and last calendar day of the period containing day
func periodBounds(freq constants.FrequencyType, day time.Time) (time.Time, time.Time) {
	d := utils.DateOf(day)
	switch freq {
	case constants.FrequencyWeekly:
		start := utils.StartOfWeek(d)
		return start, start.AddDate(0, 0, 6)
	case constants.FrequencyMonthly:
		start := utils.StartOfMonth(d)
		return start, start.AddDate(0, 1, -1)
	default:
		return d, d
	}
}

func isPeriodic(h models.Habit) bool {
	return h.FrequencyType == constants.FrequencyWeekly || h.FrequencyType == constants.FrequencyMonthly
}

// unit is one scheduled day, or one week or month for periodic habits
type unit struct {
	start, end time.Time
	quota      int     // days meeting target needed to complete the unit
	met        int     // days meeting target
	progress   float64 // summed per-day progress, each clamped to 1
	touched    bool    // any recorded progress
	current    bool    // contains today
}

func (u unit) complete() bool { return u.met >= u.quota }

// weight is the unit's contribution to the consistency score
func (u unit) weight() float64 {
	if u.complete() {
		return 1
	}
	w := u.progress / float64(u.quota)
	if w > 1 {
		return 1
	}
	return w
}

// units lists the scheduled units overlapping [from, to], oldest first. Days after
// today are never observed but still count toward how many a period can hold.
func units(h models.Habit, idx history, from, to, today time.Time) []unit {
	// Creation is a calendar day in today's location, so resolve it before normalising
	first := firstDay(h, idx, today)
	from, to, today = utils.DateOf(from), utils.DateOf(to), utils.DateOf(today)
	if from.Before(first) {
		from = first
	}
	if to.After(today) {
		to = today
	}
	if to.Before(from) {
		return nil
	}

	if !isPeriodic(h) {
		var out []unit
		for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
			// from is already clipped to creation
			if !onSchedule(h, d.Weekday()) {
				continue
			}
			count := idx.count(d)
			u := unit{start: d, end: d, quota: 1, current: d.Equal(today)}
			u.observe(count, h.TargetCount)
			out = append(out, u)
		}
		return out
	}

	var out []unit
	start, _ := periodBounds(h.FrequencyType, from)
	for !start.After(to) {
		pStart, pEnd := periodBounds(h.FrequencyType, start)
		lo := pStart
		if lo.Before(from) {
			lo = from
		}

		available := utils.DaysBetween(lo, pEnd) + 1
		u := unit{
			start:   pStart,
			end:     pEnd,
			quota:   min(h.PeriodQuota(), available),
			current: !today.Before(pStart) && !today.After(pEnd),
		}
		for d := lo; !d.After(pEnd) && !d.After(to); d = d.AddDate(0, 0, 1) {
			u.observe(idx.count(d), h.TargetCount)
		}
		out = append(out, u)
		start = pEnd.AddDate(0, 0, 1)
	}
	return out
}

func (u *unit) observe(count, target int) {
	if count <= 0 {
		return
	}
	u.touched = true
	u.progress += models.Progress(count, target)
	if models.IsComplete(count, target) {
		u.met++
	}
}
