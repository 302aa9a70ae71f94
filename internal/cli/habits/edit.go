package habits

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/utils"
)

// HabitEditCmd changes only the flags that are given
type HabitEditCmd struct {
	Habit       string  `arg:"" help:"Habit id, id prefix or title."`
	Title       *string `help:"New title."`
	Icon        *string `help:"New icon."`
	Category    *string `help:"New category."`
	Color       *string `help:"New background color as hex (#RRGGBB). Empty clears it."`
	Target      *int    `help:"New target count."`
	Unit        *string `help:"New target unit."`
	Frequency   *string `help:"New frequency (daily, weekly or monthly)."`
	Days        *string `help:"New weekdays for daily habits. Empty means every day."`
	Count       *int    `help:"New days per week or month."`
	Description *string `help:"New description."`
}

func (c *HabitEditCmd) update() (models.HabitUpdate, error) {
	u := models.HabitUpdate{
		Title:          c.Title,
		Icon:           c.Icon,
		Category:       c.Category,
		BgColor:        c.Color,
		TargetCount:    c.Target,
		TargetUnit:     c.Unit,
		FrequencyCount: c.Count,
		Description:    c.Description,
	}
	if c.Days != nil {
		days, err := utils.ParseWeekdays(*c.Days)
		if err != nil {
			return u, err
		}
		if days == nil {
			days = []time.Weekday{}
		}
		u.FrequencyDays = &days
	}
	if c.Frequency != nil {
		ft := constants.FrequencyType(strings.ToLower(strings.TrimSpace(*c.Frequency)))
		u.FrequencyType = &ft
		// Switching schedules drops the fields the new frequency forbids
		if ft == constants.FrequencyDaily && c.Count == nil {
			zero := 0
			u.FrequencyCount = &zero
		}
		if ft != constants.FrequencyDaily && c.Days == nil {
			none := []time.Weekday{}
			u.FrequencyDays = &none
		}
	}
	return u, nil
}

func (c *HabitEditCmd) Run(ctx *cli.Context) error {
	update, err := c.update()
	if err != nil {
		return err
	}
	if update.IsEmpty() {
		return fmt.Errorf("nothing to change, pass at least one flag")
	}

	h, err := ctx.ResolveHabit(ctx.Context(), c.Habit)
	if err != nil {
		return err
	}
	svc, err := ctx.Service(ctx.Context())
	if err != nil {
		return err
	}
	updated, err := svc.UpdateHabit(ctx.Context(), h.ID, update)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "%s Updated habit %s\n", cli.SuccessStyle.Render("✓"), updated.Title)
	return nil
}

type HabitDeleteCmd struct {
	Habit string `arg:"" help:"Habit id, id prefix or title."`
	Yes   bool   `short:"y" help:"Skip the confirmation prompt."`
}

func (c *HabitDeleteCmd) Run(ctx *cli.Context) error {
	h, err := ctx.ResolveHabit(ctx.Context(), c.Habit)
	if err != nil {
		return err
	}

	if !c.Yes {
		fmt.Fprintf(ctx.Out, "Delete habit %q and hide its history? [y/N]: ", h.Title)
		response, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return err
		}
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "y" && response != "yes" {
			fmt.Fprintln(ctx.Out, "Delete cancelled.")
			return nil
		}
	}

	svc, err := ctx.Service(ctx.Context())
	if err != nil {
		return err
	}
	if err := svc.DeleteHabit(ctx.Context(), h.ID); err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "%s Deleted habit %s\n", cli.SuccessStyle.Render("✓"), h.Title)
	return nil
}

type HabitResolveCmd struct {
	Habit string `arg:"" help:"Habit id, id prefix or title."`
}

func (c *HabitResolveCmd) Run(ctx *cli.Context) error {
	h, err := ctx.ResolveHabit(ctx.Context(), c.Habit)
	if err != nil {
		return err
	}
	svc, err := ctx.Service(ctx.Context())
	if err != nil {
		return err
	}
	if err := svc.ResolveConflict(ctx.Context(), h.ID); err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "%s Kept local copy of %s, it will be pushed on the next sync\n", cli.SuccessStyle.Render("✓"), h.Title)
	return nil
}
