package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/tally/internal/backup"
	"github.com/julianstephens/tally/internal/config"
	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/keyring"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/network"
	"github.com/julianstephens/tally/internal/remote"
	"github.com/julianstephens/tally/internal/remote/postgres"
	"github.com/julianstephens/tally/internal/service"
	"github.com/julianstephens/tally/internal/stats"
	"github.com/julianstephens/tally/internal/storage"
	"github.com/julianstephens/tally/internal/syncer"
	"github.com/julianstephens/tally/internal/utils"
)

// Context is handed to every command's Run method
type Context struct {
	Config      *config.Config
	Store       storage.Provider
	Credentials *keyring.Credentials
	Out         io.Writer
	// Sink receives habit summaries; set before the first Service call
	Sink        service.InsightSink
	// Watch keeps the network monitor polling; set for long-running commands
	Watch       bool

	base      context.Context
	svc       *service.Service
	remote    *postgres.Store
	remoteErr error
}

// NewContext prepares a command context; nothing is opened until first use
func NewContext(base context.Context, cfg *config.Config, store storage.Provider) *Context {
	if base == nil {
		base = context.Background()
	}
	return &Context{
		Config:      cfg,
		Store:       store,
		Credentials: keyring.New(""),
		Out:         os.Stdout,
		base:        base,
	}
}

// Context is cancelled when the process is interrupted
func (c *Context) Context() context.Context {
	if c.base == nil {
		return context.Background()
	}
	return c.base
}

// PerformAutomaticBackup creates a backup and logs instead of failing
func (c *Context) PerformAutomaticBackup(ctx context.Context) {
	mgr := backup.NewManager(c.Store.Path())
	if _, err := mgr.Create(ctx); err != nil {
		logger.Warn("Automatic backup failed", "error", err)
	}
}

// Location is the configured timezone
func (c *Context) Location() (*time.Location, error) {
	loc, err := utils.LoadLocation(c.Config.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Config.Timezone, err)
	}
	return loc, nil
}

// RemoteURL resolves the remote connection string: config or environment
// first, then the OS keyring
func (c *Context) RemoteURL() (string, error) {
	if c.Config.RemoteURL != "" {
		return c.Config.RemoteURL, nil
	}
	url, err := c.Credentials.RemoteURL()
	if errors.Is(err, keyring.ErrNotFound) {
		return "", remote.ErrNotConfigured
	}
	if err != nil {
		return "", err
	}
	return url, nil
}

// UserID returns the configured user, falling back to the id stored at init
func (c *Context) UserID(ctx context.Context) (string, error) {
	if c.Config.UserID != "" {
		return c.Config.UserID, nil
	}
	id, err := c.Store.GetSetting(ctx, constants.SettingUserID)
	if errors.Is(err, storage.ErrNotFound) {
		return "", service.ErrNoUser
	}
	return id, err
}

// EnsureUserID stores a fresh local user id unless one exists
func (c *Context) EnsureUserID(ctx context.Context, preferred string) (string, error) {
	if existing, err := c.Store.GetSetting(ctx, constants.SettingUserID); err == nil {
		return existing, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return "", err
	}
	id := preferred
	if id == "" {
		id = uuid.NewString()
	}
	if err := c.Store.SetSetting(ctx, constants.SettingUserID, id); err != nil {
		return "", fmt.Errorf("failed to store user id: %w", err)
	}
	return id, nil
}

// Remote prepares the remote store once. Only configuration errors are
// remembered; the connection itself is opened on first use and retried after
// a failure.
func (c *Context) Remote() (*postgres.Store, error) {
	if c.remote != nil || c.remoteErr != nil {
		return c.remote, c.remoteErr
	}
	url, err := c.RemoteURL()
	if errors.Is(err, remote.ErrNotConfigured) {
		return nil, err
	}
	if err != nil {
		c.remoteErr = err
		return nil, err
	}
	pg, err := postgres.New(url, constants.DefaultRemoteTimeout)
	if err != nil {
		c.remoteErr = err
		return nil, err
	}
	c.remote = pg
	return pg, nil
}

// Service builds the habit service. Without a reachable remote the service
// works locally and sync is skipped.
func (c *Context) Service(ctx context.Context) (*service.Service, error) {
	if c.svc != nil {
		return c.svc, nil
	}

	userID, err := c.UserID(ctx)
	if err != nil {
		return nil, err
	}
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}
	cache, err := stats.NewCache(c.Config.StatsCacheSize)
	if err != nil {
		return nil, err
	}

	opts := service.Options{
		Auth:     service.StaticAuth(userID),
		Local:    c.Store,
		Cache:    cache,
		Sink:     c.Sink,
		Location: loc,
	}
	if c.Watch {
		opts.Interval = c.Config.ProbeInterval
	}

	// With a remote configured the monitor is always attached, so a service
	// started offline syncs once connectivity returns
	rs, err := c.Remote()
	switch {
	case err == nil:
		opts.Engine = syncer.New(c.Store, rs, syncer.Options{Concurrency: c.Config.SyncConcurrency})
		opts.Prober = network.NewDialProber(c.Config.ProbeAddress)
	case errors.Is(err, remote.ErrNotConfigured):
	default:
		logger.Warn("Remote misconfigured, working offline", "error", err)
	}

	svc, err := service.New(opts)
	if err != nil {
		return nil, err
	}
	c.svc = svc
	return svc, nil
}

// Close tears down in dependency order: background work, remote, then the store
func (c *Context) Close() error {
	if c.svc != nil {
		c.svc.Destroy()
	}
	if c.remote != nil {
		if err := c.remote.Close(); err != nil {
			logger.Warn("Failed to close remote store", "error", err)
		}
	}
	return c.Store.Close()
}

// ResolveHabit finds an active habit by id, unique id prefix or
// case-insensitive title
func (c *Context) ResolveHabit(ctx context.Context, ref string) (models.EnrichedHabit, error) {
	svc, err := c.Service(ctx)
	if err != nil {
		return models.EnrichedHabit{}, err
	}
	habits, err := svc.GetHabits(ctx)
	if err != nil {
		return models.EnrichedHabit{}, err
	}

	ref = strings.TrimSpace(ref)
	if ref == "" {
		return models.EnrichedHabit{}, errors.New("habit reference cannot be empty")
	}
	var prefixed, titled []models.EnrichedHabit
	for _, h := range habits {
		if h.ID == ref {
			return h, nil
		}
		if strings.HasPrefix(h.ID, ref) {
			prefixed = append(prefixed, h)
		}
		if strings.EqualFold(h.Title, ref) {
			titled = append(titled, h)
		}
	}

	for _, matches := range [][]models.EnrichedHabit{prefixed, titled} {
		switch len(matches) {
		case 0:
		case 1:
			return matches[0], nil
		default:
			return models.EnrichedHabit{}, fmt.Errorf("%q matches %d habits, use the id", ref, len(matches))
		}
	}
	return models.EnrichedHabit{}, fmt.Errorf("habit %q: %w", ref, storage.ErrNotFound)
}
