package habits

import (
	"encoding/json"
	"fmt"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/service"
	"github.com/julianstephens/tally/internal/stats"
)

type HabitStatsCmd struct {
	Habit string `arg:"" help:"Habit id, id prefix or title."`
	Days  int    `help:"Trailing window in days." default:"30"`
	JSON  bool   `help:"Print the report as JSON."`
}

func (c *HabitStatsCmd) Run(ctx *cli.Context) error {
	h, err := ctx.ResolveHabit(ctx.Context(), c.Habit)
	if err != nil {
		return err
	}
	svc, err := ctx.Service(ctx.Context())
	if err != nil {
		return err
	}
	report, err := svc.GetStatistics(ctx.Context(), h.ID, c.Days)
	if err != nil {
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(ctx.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprintf(ctx.Out, "%s %s\n\n", icon(h.Habit), cli.TitleStyle.Render(h.Title))
	fmt.Fprintf(ctx.Out, "Current streak:  %d\n", report.Streak.Current)
	fmt.Fprintf(ctx.Out, "Longest streak:  %d\n\n", report.Streak.Longest)

	m := report.Metrics
	fmt.Fprintf(ctx.Out, "Last %d days\n", report.Days)
	fmt.Fprintf(ctx.Out, "  Scheduled:     %d\n", m.TotalScheduled)
	fmt.Fprintf(ctx.Out, "  Completed:     %d\n", m.Completed)
	fmt.Fprintf(ctx.Out, "  Partial:       %d\n", m.PartiallyCompleted)
	fmt.Fprintf(ctx.Out, "  Missed:        %d\n", m.Missed)
	fmt.Fprintf(ctx.Out, "  Success rate:  %.1f%%\n", m.SuccessRate)
	fmt.Fprintf(ctx.Out, "  Consistency:   %.1f%%\n", m.ConsistencyScore)
	fmt.Fprintf(ctx.Out, "  Normalized:    %.1f%% of %.1f expected\n\n", report.NormalizedRate, report.Expected)

	for _, p := range []stats.PeriodStats{report.Week, report.Month, report.All} {
		fmt.Fprintf(ctx.Out, "%-6s %s..%s  %d/%d  %.1f%%\n",
			p.Period, p.Start, p.End, p.Completed, p.TotalScheduled, p.SuccessRate)
	}
	return nil
}

// InsightsCmd prints a summary of every habit for downstream consumers
type InsightsCmd struct{}

func (c *InsightsCmd) Run(ctx *cli.Context) error {
	ctx.Sink = service.NewJSONSink(ctx.Out)
	svc, err := ctx.Service(ctx.Context())
	if err != nil {
		return err
	}
	return svc.PublishSummaries(ctx.Context())
}
