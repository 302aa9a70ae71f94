package system

import (
	"errors"
	"fmt"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/keyring"
	"github.com/julianstephens/tally/internal/remote"
	"github.com/julianstephens/tally/internal/remote/postgres"
)

type RemoteCmd struct {
	Set   RemoteSetCmd   `cmd:"" help:"Store the remote PostgreSQL connection string in the OS keyring."`
	Show  RemoteShowCmd  `cmd:"" help:"Show the remote connection string with the password hidden."`
	Clear RemoteClearCmd `cmd:"" help:"Remove the stored connection string."`
}

type RemoteSetCmd struct {
	ConnectionString string `arg:"" help:"PostgreSQL connection string."`
}

func (cmd *RemoteSetCmd) Run(ctx *cli.Context) error {
	// The keyring is encrypted, so an embedded password is allowed here
	if err := postgres.ValidateConnString(cmd.ConnectionString, true); err != nil {
		return err
	}
	if postgres.HasPassword(cmd.ConnectionString) {
		fmt.Fprintln(ctx.Out, cli.WarningStyle.Render("Warning: connection string contains an embedded password."))
		fmt.Fprintln(ctx.Out, "   It is stored as-is in the encrypted OS keyring.")
	}
	if err := ctx.Credentials.SetRemoteURL(cmd.ConnectionString); err != nil {
		return err
	}

	fmt.Fprintf(ctx.Out, "%s Remote stored in OS keyring: %s\n", cli.SuccessStyle.Render("✓"), postgres.Redact(cmd.ConnectionString))
	return nil
}

type RemoteShowCmd struct{}

func (cmd *RemoteShowCmd) Run(ctx *cli.Context) error {
	url, err := ctx.RemoteURL()
	if errors.Is(err, remote.ErrNotConfigured) {
		return errors.New("no remote configured, use 'tally remote set' to store one")
	}
	if err != nil {
		return err
	}

	source := "OS keyring"
	if ctx.Config.RemoteURL != "" {
		source = "configuration"
	}
	fmt.Fprintf(ctx.Out, "%s (from %s)\n", postgres.Redact(url), source)
	return nil
}

type RemoteClearCmd struct{}

func (cmd *RemoteClearCmd) Run(ctx *cli.Context) error {
	if err := ctx.Credentials.Clear(); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return errors.New("no connection string found in keyring")
		}
		return err
	}
	fmt.Fprintf(ctx.Out, "%s Remote connection string removed from OS keyring\n", cli.SuccessStyle.Render("✓"))
	if ctx.Config.RemoteURL != "" {
		fmt.Fprintln(ctx.Out, cli.WarningStyle.Render("A remote URL is still set in the configuration or environment."))
	}
	return nil
}
