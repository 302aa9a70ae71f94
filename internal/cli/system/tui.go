package system

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/network"
	"github.com/julianstephens/tally/internal/tui"
)

type TuiCmd struct{}

func (c *TuiCmd) Run(ctx *cli.Context) error {
	ctx.PerformAutomaticBackup(ctx.Context())

	ctx.Watch = true
	svc, err := ctx.Service(ctx.Context())
	if err != nil {
		return err
	}

	opts := tui.Options{Refresh: ctx.Config.ProbeInterval}
	if mon := svc.Monitor(); mon != nil {
		statuses := make(chan network.Status, 1)
		unsubscribe := mon.Subscribe(func(s network.Status) {
			select {
			case statuses <- s:
			default:
				// The UI reloads on every status, so a pending one is enough
			}
		})
		defer unsubscribe()
		opts.Statuses = statuses
	}

	p := tea.NewProgram(tui.NewModel(ctx.Context(), svc, opts), tea.WithAltScreen(), tea.WithContext(ctx.Context()))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
