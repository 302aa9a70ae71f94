package habits

import (
	"fmt"
	"strings"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/utils"
)

type HabitCmd struct {
	Add     HabitAddCmd     `cmd:"" help:"Add a new habit."`
	List    HabitListCmd    `cmd:"" default:"1" help:"List habits with today's progress."`
	Done    HabitDoneCmd    `cmd:"" help:"Record today's count for a habit."`
	Inc     HabitIncCmd     `cmd:"" help:"Increase today's count."`
	Dec     HabitDecCmd     `cmd:"" help:"Decrease today's count."`
	Edit    HabitEditCmd    `cmd:"" help:"Edit a habit."`
	Delete  HabitDeleteCmd  `cmd:"" help:"Delete a habit."`
	Stats   HabitStatsCmd   `cmd:"" help:"Show streaks and success rates."`
	Resolve HabitResolveCmd `cmd:"" help:"Keep the local copy of a conflicted habit."`
}

type HabitAddCmd struct {
	Title       string `arg:"" help:"Habit title."`
	Icon        string `help:"Emoji or short icon."`
	Category    string `help:"Category used for grouping."`
	Color       string `help:"Background color as hex (#RRGGBB)."`
	Target      int    `help:"Count that completes a day." default:"1"`
	Unit        string `help:"Unit of the target count (glasses, pages)."`
	Frequency   string `help:"How often the habit is scheduled." enum:"daily,weekly,monthly" default:"daily"`
	Days        string `help:"Weekdays for daily habits (mon,wed,fri). Empty means every day."`
	Count       int    `help:"Days needed per week or month for weekly and monthly habits."`
	Description string `help:"Longer description."`
}

func (c *HabitAddCmd) Run(ctx *cli.Context) error {
	days, err := utils.ParseWeekdays(c.Days)
	if err != nil {
		return err
	}
	svc, err := ctx.Service(ctx.Context())
	if err != nil {
		return err
	}

	h, err := svc.CreateHabit(ctx.Context(), models.HabitInput{
		Title:          c.Title,
		Icon:           c.Icon,
		Description:    c.Description,
		Category:       c.Category,
		BgColor:        c.Color,
		TargetCount:    c.Target,
		TargetUnit:     c.Unit,
		FrequencyType:  constants.FrequencyType(c.Frequency),
		FrequencyDays:  days,
		FrequencyCount: c.Count,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(ctx.Out, "%s Added habit %s (%s)\n", cli.SuccessStyle.Render("✓"), h.Title, shortID(h.ID))
	return nil
}

type HabitListCmd struct{}

func (c *HabitListCmd) Run(ctx *cli.Context) error {
	svc, err := ctx.Service(ctx.Context())
	if err != nil {
		return err
	}
	habits, err := svc.GetHabits(ctx.Context())
	if err != nil {
		return err
	}

	if len(habits) == 0 {
		fmt.Fprintln(ctx.Out, "No habits yet. Add one with 'tally habit add'.")
		return nil
	}

	fmt.Fprintln(ctx.Out, cli.TitleStyle.Render("Habits"))
	for _, h := range habits {
		count := 0
		if h.TodayCompletion != nil {
			count = h.TodayCompletion.CompletedCount
		}
		mark := " "
		if h.IsCompleted {
			mark = cli.SuccessStyle.Render("✓")
		}
		line := fmt.Sprintf("%s %s %-8s %s %s %d/%d%s",
			mark, icon(h.Habit), shortID(h.ID), h.Title,
			cli.ProgressBar(h.Progress, 10), count, h.TargetCount, unit(h.Habit))
		if h.Streak > 0 {
			line += fmt.Sprintf("  🔥 %d", h.Streak)
		}
		if h.SyncStatus == constants.SyncStatusConflict {
			line += "  " + cli.DangerStyle.Render("conflict")
		} else if h.IsDirty {
			line += "  " + cli.MutedStyle.Render("unsynced")
		}
		fmt.Fprintln(ctx.Out, line)
		if sched := schedule(h.Habit); sched != "" {
			fmt.Fprintf(ctx.Out, "             %s\n", cli.MutedStyle.Render(sched))
		}
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func icon(h models.Habit) string {
	if h.Icon == "" {
		return "•"
	}
	return h.Icon
}

func unit(h models.Habit) string {
	if h.TargetUnit == "" {
		return ""
	}
	return " " + h.TargetUnit
}

func schedule(h models.Habit) string {
	switch h.FrequencyType {
	case constants.FrequencyDaily:
		if len(h.FrequencyDays) == 0 || len(h.FrequencyDays) == 7 {
			return ""
		}
		return "on " + utils.FormatWeekdays(h.FrequencyDays)
	case constants.FrequencyWeekly, constants.FrequencyMonthly:
		period := strings.TrimSuffix(string(h.FrequencyType), "ly")
		return fmt.Sprintf("%d day(s) per %s", h.PeriodQuota(), period)
	}
	return ""
}
