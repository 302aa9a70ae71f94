package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/cli/backups"
	"github.com/julianstephens/tally/internal/cli/habits"
	"github.com/julianstephens/tally/internal/cli/settings"
	"github.com/julianstephens/tally/internal/cli/system"
	"github.com/julianstephens/tally/internal/config"
	"github.com/julianstephens/tally/internal/constants"
	tallyerrors "github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/storage"
	"github.com/julianstephens/tally/internal/storage/sqlite"
	"github.com/julianstephens/tally/internal/utils"
)

var CLI struct {
	Version   kong.VersionFlag
	ConfigDir string `name:"config-dir" help:"Directory holding the database, logs and backups." default:"${config_dir}"`
	Config    string `help:"Path to a YAML config file. Defaults to config.yaml in the config directory."`
	Debug     bool   `help:"Log debug output to stderr."`

	Init     system.InitCmd       `cmd:"" help:"Initialize tally storage."`
	Doctor   system.DoctorCmd     `cmd:"" help:"Run health checks and diagnostics."`
	Status   system.StatusCmd     `cmd:"" help:"Show sync status."`
	Sync     system.SyncCmd       `cmd:"" help:"Push local changes and pull remote ones."`
	Remote   system.RemoteCmd     `cmd:"" help:"Manage the remote connection."`
	Settings settings.SettingsCmd `cmd:"" help:"View and change settings."`
	Habit    habits.HabitCmd      `cmd:"" help:"Manage habits and habit tracking."`
	Insights habits.InsightsCmd   `cmd:"" help:"Print habit summaries as JSON."`
	Backup   backups.BackupCmd    `cmd:"" help:"Manage database backups."`
	Tui      system.TuiCmd        `cmd:"" help:"Start the interactive habit tracker."`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Offline-first habit tracker with background sync"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version":    constants.Version,
			"config_dir": constants.DefaultConfigDir,
		},
	)

	cfg, err := config.Load(config.Options{ConfigDir: CLI.ConfigDir, ConfigFile: CLI.Config})
	if err != nil {
		tallyerrors.Fatal(err)
	}
	if CLI.Debug {
		cfg.Debug = true
	}
	if err := logger.Init(logger.Config{Debug: cfg.Debug, ConfigDir: cfg.ConfigDir}); err != nil {
		tallyerrors.Fatal(err)
	}

	loc, err := utils.LoadLocation(cfg.Timezone)
	if err != nil {
		tallyerrors.Fatal(err)
	}
	store := sqlite.NewStore(cfg.DBPath, sqlite.WithLocation(loc))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	appCtx := cli.NewContext(ctx, cfg, store)

	// Init command handles its own loading
	if kctx.Selected() != nil && kctx.Selected().Name != "init" {
		if err := store.Load(ctx); err != nil {
			stop()
			if errors.Is(err, storage.ErrNotInitialized) {
				err = tallyerrors.WithHint(err, "run 'tally init' to create the database")
			}
			tallyerrors.Fatal(err)
		}
	}

	err = kctx.Run(appCtx)
	if closeErr := appCtx.Close(); closeErr != nil {
		logger.Warn("Failed to close store", "error", closeErr)
	}
	stop()
	tallyerrors.Fatal(err)
}
