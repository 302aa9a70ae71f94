package system

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/julianstephens/tally/internal/backup"
	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/storage/sqlite"
)

type InitCmd struct {
	Force  bool   `help:"Back up, then delete the existing database before initialization."`
	UserID string `name:"user-id" help:"User id to store for this device. A random id is generated when empty."`
}

func (c *InitCmd) Run(ctx *cli.Context) error {
	dbPath := ctx.Store.Path()

	if c.Force {
		if _, err := os.Stat(dbPath); err == nil {
			mgr := backup.NewManager(dbPath)
			if backupPath, err := mgr.Create(ctx.Context()); err != nil {
				fmt.Fprintf(ctx.Out, "%s failed to back up existing database: %v\n", cli.WarningStyle.Render("Warning:"), err)
			} else {
				fmt.Fprintf(ctx.Out, "Backed up existing database to: %s\n", backupPath)
			}

			// Database exists, close it first to prevent file locking issues
			if err := ctx.Store.Close(); err != nil {
				return fmt.Errorf("failed to close existing database: %w", err)
			}
			for _, suffix := range []string{"", "-wal", "-shm"} {
				if err := os.Remove(dbPath + suffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("failed to delete existing database: %w", err)
				}
			}
			fmt.Fprintf(ctx.Out, "Deleted existing database at: %s\n", dbPath)

			loc, err := ctx.Location()
			if err != nil {
				return err
			}
			ctx.Store = sqlite.NewStore(dbPath, sqlite.WithLocation(loc))
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to access existing database: %w", err)
		}
	}

	if err := ctx.Store.Init(ctx.Context()); err != nil {
		return err
	}
	userID, err := ctx.EnsureUserID(ctx.Context(), c.UserID)
	if err != nil {
		return err
	}

	fmt.Fprintf(ctx.Out, "Initialized tally storage at: %s\n", dbPath)
	fmt.Fprintf(ctx.Out, "User id: %s\n", userID)
	return nil
}
