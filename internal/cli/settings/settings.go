package settings

import (
	"errors"
	"fmt"
	"strings"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/remote"
	"github.com/julianstephens/tally/internal/remote/postgres"
	"github.com/julianstephens/tally/internal/storage"
)

type SettingsCmd struct {
	List bool `help:"List current settings."`

	UserID *string `name:"user-id" help:"Change the user id stored for this device."`
}

func (c *SettingsCmd) Run(ctx *cli.Context) error {
	if c.UserID != nil {
		id := strings.TrimSpace(*c.UserID)
		if id == "" {
			return errors.New("user id cannot be empty")
		}
		if err := ctx.Store.SetSetting(ctx.Context(), constants.SettingUserID, id); err != nil {
			return fmt.Errorf("failed to save settings: %w", err)
		}
		fmt.Fprintln(ctx.Out, "Settings updated successfully.")
		if ctx.Config.UserID != "" {
			fmt.Fprintln(ctx.Out, cli.WarningStyle.Render("user_id from the configuration or environment still takes precedence."))
		}
		return nil
	}

	if !c.List {
		fmt.Fprintln(ctx.Out, "No changes specified. Use --list to view settings or flags to update them.")
		return nil
	}

	cfg := ctx.Config
	userID, err := ctx.UserID(ctx.Context())
	if err != nil {
		userID = cli.MutedStyle.Render("(none)")
	}
	remoteURL, err := ctx.RemoteURL()
	switch {
	case err == nil:
		remoteURL = postgres.Redact(remoteURL)
	case errors.Is(err, remote.ErrNotConfigured):
		remoteURL = cli.MutedStyle.Render("(not configured)")
	default:
		remoteURL = cli.WarningStyle.Render(err.Error())
	}

	fmt.Fprintln(ctx.Out, "Current Settings:")
	fmt.Fprintf(ctx.Out, "  Database:          %s\n", cfg.DBPath)
	fmt.Fprintf(ctx.Out, "  Timezone:          %s\n", cfg.Timezone)
	fmt.Fprintf(ctx.Out, "  User ID:           %s\n", userID)
	fmt.Fprintf(ctx.Out, "  Remote:            %s\n", remoteURL)
	fmt.Fprintln(ctx.Out, "\nSync Settings:")
	fmt.Fprintf(ctx.Out, "  Probe Address:     %s\n", cfg.ProbeAddress)
	fmt.Fprintf(ctx.Out, "  Probe Interval:    %s\n", cfg.ProbeInterval)
	fmt.Fprintf(ctx.Out, "  Sync Concurrency:  %d\n", cfg.SyncConcurrency)
	fmt.Fprintf(ctx.Out, "  Stats Cache Size:  %d\n", cfg.StatsCacheSize)

	if id, err := ctx.UserID(ctx.Context()); err == nil {
		fmt.Fprintln(ctx.Out, "\nLast Pulled:")
		for _, w := range []struct{ label, prefix string }{
			{"Habits", constants.SettingHabitsWatermark},
			{"Completions", constants.SettingCompletionsWatermark},
		} {
			value, err := ctx.Store.GetSetting(ctx.Context(), w.prefix+":"+id)
			if errors.Is(err, storage.ErrNotFound) {
				value = "never"
			} else if err != nil {
				return fmt.Errorf("failed to get settings: %w", err)
			}
			fmt.Fprintf(ctx.Out, "  %-18s %s\n", w.label+":", value)
		}
	}
	return nil
}
