package habits

import (
	"fmt"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/models"
)

type HabitDoneCmd struct {
	Habit string `arg:"" help:"Habit id, id prefix or title."`
	Count *int   `help:"Today's count. Defaults to the habit's target."`
	Notes string `help:"Note stored with today's completion."`
}

func (c *HabitDoneCmd) Run(ctx *cli.Context) error {
	h, err := ctx.ResolveHabit(ctx.Context(), c.Habit)
	if err != nil {
		return err
	}
	count := h.TargetCount
	if c.Count != nil {
		count = *c.Count
	}
	notes := c.Notes
	if notes == "" && h.TodayCompletion != nil {
		notes = h.TodayCompletion.Notes
	}

	svc, err := ctx.Service(ctx.Context())
	if err != nil {
		return err
	}
	completion, err := svc.CompleteHabit(ctx.Context(), h.ID, count, notes)
	if err != nil {
		return err
	}
	printProgress(ctx, h.Habit, completion)
	return nil
}

type HabitIncCmd struct {
	Habit string `arg:"" help:"Habit id, id prefix or title."`
	By    int    `help:"Amount to add." default:"1"`
}

func (c *HabitIncCmd) Run(ctx *cli.Context) error {
	return adjust(ctx, c.Habit, c.By)
}

type HabitDecCmd struct {
	Habit string `arg:"" help:"Habit id, id prefix or title."`
	By    int    `help:"Amount to subtract." default:"1"`
}

func (c *HabitDecCmd) Run(ctx *cli.Context) error {
	return adjust(ctx, c.Habit, -c.By)
}

func adjust(ctx *cli.Context, ref string, delta int) error {
	h, err := ctx.ResolveHabit(ctx.Context(), ref)
	if err != nil {
		return err
	}
	svc, err := ctx.Service(ctx.Context())
	if err != nil {
		return err
	}
	completion, err := svc.AdjustCompletion(ctx.Context(), h.ID, delta)
	if err != nil {
		return err
	}
	printProgress(ctx, h.Habit, completion)
	return nil
}

func printProgress(ctx *cli.Context, h models.Habit, c models.Completion) {
	progress := models.Progress(c.CompletedCount, h.TargetCount)
	status := ""
	if models.IsComplete(c.CompletedCount, h.TargetCount) {
		status = " " + cli.SuccessStyle.Render("done for today")
	}
	fmt.Fprintf(ctx.Out, "%s %s %s %d/%d%s%s\n",
		icon(h), h.Title, cli.ProgressBar(progress, 10),
		c.CompletedCount, h.TargetCount, unit(h), status)
}
