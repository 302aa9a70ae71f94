package system

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/julianstephens/tally/internal/backup"
	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/keyring"
	"github.com/julianstephens/tally/internal/migration"
	"github.com/julianstephens/tally/internal/remote"
	"github.com/julianstephens/tally/internal/storage/sqlite"
	"github.com/julianstephens/tally/internal/utils"
	"github.com/julianstephens/tally/migrations"
)

// errSkipped marks a check that could not run because an earlier one failed
var errSkipped = errors.New("skipped")

type check struct {
	name string
	// warn downgrades a failure to a warning
	warn    bool
	needsDB bool
	run     func(ctx *cli.Context) error
}

var checks = []check{
	{name: "Clock/timezone", run: checkTimezone},
	{name: "Schema version", needsDB: true, run: checkSchemaVersion},
	{name: "User id", needsDB: true, run: checkUserID},
	{name: "Sync state", warn: true, needsDB: true, run: checkSyncState},
	{name: "Backups present", warn: true, run: checkBackupsPresent},
	{name: "OS keyring", warn: true, run: checkKeyring},
	{name: "Remote reachable", warn: true, run: checkRemote},
}

type DoctorCmd struct{}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	fmt.Fprintln(ctx.Out, "Running diagnostics...")
	fmt.Fprintln(ctx.Out)

	failed := 0
	dbErr := checkDBReachable(ctx)
	all := append([]check{{name: "Database reachable", run: func(*cli.Context) error { return dbErr }}}, checks...)
	for _, c := range all {
		err := errSkipped
		if !c.needsDB || dbErr == nil {
			err = c.run(ctx)
		}

		switch {
		case err == nil:
			fmt.Fprintf(ctx.Out, "%s %s: OK\n", cli.SuccessStyle.Render("✓"), c.name)
		case errors.Is(err, errSkipped):
			fmt.Fprintf(ctx.Out, "⊘ %s: SKIPPED (database not reachable)\n", c.name)
		case c.warn:
			fmt.Fprintf(ctx.Out, "%s %s: WARNING\n   %v\n", cli.WarningStyle.Render("⚠"), c.name, err)
		default:
			fmt.Fprintf(ctx.Out, "%s %s: FAIL\n   Error: %v\n", cli.DangerStyle.Render("✗"), c.name, err)
			failed++
		}
	}

	fmt.Fprintln(ctx.Out)
	if failed > 0 {
		fmt.Fprintln(ctx.Out, "Diagnostics completed with errors.")
		return fmt.Errorf("%d health check(s) failed", failed)
	}
	fmt.Fprintln(ctx.Out, "All diagnostics passed!")
	return nil
}

func checkDBReachable(ctx *cli.Context) error {
	if err := ctx.Store.Load(ctx.Context()); err != nil {
		return fmt.Errorf("failed to load database: %w", err)
	}
	if store, ok := ctx.Store.(*sqlite.Store); ok {
		db := store.DB()
		if db == nil {
			return errors.New("database connection is nil")
		}
		var one int
		if err := db.QueryRowContext(ctx.Context(), "SELECT 1").Scan(&one); err != nil {
			return fmt.Errorf("failed to query database: %w", err)
		}
	}
	return nil
}

func checkSchemaVersion(ctx *cli.Context) error {
	store, ok := ctx.Store.(*sqlite.Store)
	if !ok {
		return nil
	}
	sub, err := fs.Sub(migrations.FS, "sqlite")
	if err != nil {
		return err
	}
	runner := migration.NewRunner(store.DB(), sub, migration.SQLite)

	current, err := runner.GetCurrentVersion(ctx.Context())
	if err != nil {
		return err
	}
	latest, err := runner.GetLatestVersion()
	if err != nil {
		return err
	}
	if current != latest {
		return fmt.Errorf("schema version %d, expected %d", current, latest)
	}
	return nil
}

func checkTimezone(ctx *cli.Context) error {
	if !utils.ValidateTimezone(ctx.Config.Timezone) {
		return fmt.Errorf("invalid timezone %q", ctx.Config.Timezone)
	}
	return nil
}

func checkUserID(ctx *cli.Context) error {
	if _, err := ctx.UserID(ctx.Context()); err != nil {
		return fmt.Errorf("%w, run 'tally init' to create one", err)
	}
	return nil
}

func checkSyncState(ctx *cli.Context) error {
	userID, err := ctx.UserID(ctx.Context())
	if err != nil {
		return err
	}
	counts, err := ctx.Store.CountUnsynced(ctx.Context(), userID)
	if err != nil {
		return err
	}
	if counts.Conflicts > 0 || counts.Errors > 0 {
		return fmt.Errorf("%d conflict(s) and %d failed push(es) waiting", counts.Conflicts, counts.Errors)
	}
	return nil
}

func checkBackupsPresent(ctx *cli.Context) error {
	backups, err := backup.NewManager(ctx.Store.Path()).List()
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		return errors.New("no backups found, run 'tally backup create'")
	}
	return nil
}

func checkKeyring(ctx *cli.Context) error {
	if ctx.Config.RemoteURL != "" {
		return nil
	}
	if !keyring.IsAvailable() {
		return keyring.ErrKeyringUnavailable
	}
	return nil
}

func checkRemote(ctx *cli.Context) error {
	pg, err := ctx.Remote()
	if errors.Is(err, remote.ErrNotConfigured) {
		return nil
	}
	if err != nil {
		return err
	}
	return pg.Open(ctx.Context())
}
