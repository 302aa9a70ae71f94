package system

import (
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/remote"
	"github.com/julianstephens/tally/internal/syncer"
)

type StatusCmd struct{}

func (c *StatusCmd) Run(ctx *cli.Context) error {
	svc, err := ctx.Service(ctx.Context())
	if err != nil {
		return err
	}
	st, err := svc.Status(ctx.Context())
	if err != nil {
		return err
	}

	fmt.Fprintln(ctx.Out, cli.TitleStyle.Render("Sync status"))
	fmt.Fprintf(ctx.Out, "User:      %s\n", st.UserID)

	switch {
	case !st.RemoteConfigured:
		fmt.Fprintf(ctx.Out, "Remote:    %s\n", cli.MutedStyle.Render("not connected (local only)"))
	case st.Online:
		fmt.Fprintf(ctx.Out, "Remote:    %s\n", cli.SuccessStyle.Render("online"))
	default:
		fmt.Fprintf(ctx.Out, "Remote:    %s\n", cli.WarningStyle.Render("offline"))
	}

	u := st.Unsynced
	fmt.Fprintf(ctx.Out, "Unsynced:  %d habit(s), %d completion(s)\n", u.Habits, u.Completions)
	if u.Conflicts > 0 {
		fmt.Fprintf(ctx.Out, "Conflicts: %s\n", cli.DangerStyle.Render(fmt.Sprintf("%d, see 'tally habit resolve'", u.Conflicts)))
	}
	if u.Errors > 0 {
		fmt.Fprintf(ctx.Out, "Errors:    %s\n", cli.WarningStyle.Render(fmt.Sprintf("%d row(s) failed to push and will be retried", u.Errors)))
	}
	return nil
}

type SyncCmd struct{}

func (c *SyncCmd) Run(ctx *cli.Context) error {
	svc, err := ctx.Service(ctx.Context())
	if err != nil {
		return err
	}

	if st, err := svc.Status(ctx.Context()); err == nil && st.RemoteConfigured && !st.Online {
		return errors.New("remote is unreachable, local changes stay queued until the next sync")
	}

	result, err := svc.Sync(ctx.Context())
	if errors.Is(err, remote.ErrNotConfigured) {
		return errors.New("no remote configured, use 'tally remote set' to add one")
	}
	printResult(ctx, result)
	if err != nil {
		return fmt.Errorf("sync incomplete: %w", err)
	}
	fmt.Fprintf(ctx.Out, "%s Synced in %s\n", cli.SuccessStyle.Render("✓"), result.Duration.Round(time.Millisecond))
	return nil
}

func printResult(ctx *cli.Context, r syncer.Result) {
	rows := []struct {
		name string
		res  syncer.EntityResult
	}{
		{"Habits", r.Habits},
		{"Completions", r.Completions},
	}
	for _, row := range rows {
		line := fmt.Sprintf("%-12s pushed %d, pulled %d", row.name, row.res.Pushed, row.res.Pulled)
		if row.res.Skipped > 0 {
			line += fmt.Sprintf(", kept %d local", row.res.Skipped)
		}
		if row.res.Failed > 0 {
			line += ", " + cli.DangerStyle.Render(fmt.Sprintf("%d failed", row.res.Failed))
		}
		fmt.Fprintln(ctx.Out, line)
	}
}
