// Package config loads tally's runtime configuration from built-in defaults,
// an optional YAML file, a .env file and TALLY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/utils"
)

// ConfigFileName is looked up inside the config directory when no explicit path is given
const ConfigFileName = "config.yaml"

// ErrEmbeddedCredentials is returned when the config file carries a remote URL with a password
var ErrEmbeddedCredentials = errors.New("remote_url in the config file must not contain a password; use TALLY_REMOTE_URL or 'tally remote set'")

// Config is the resolved runtime configuration
type Config struct {
	DBPath          string        `koanf:"db_path"`
	Timezone        string        `koanf:"timezone"`
	UserID          string        `koanf:"user_id"`
	RemoteURL       string        `koanf:"remote_url"`
	ProbeAddress    string        `koanf:"probe_address"`
	ProbeInterval   time.Duration `koanf:"probe_interval"`
	SyncConcurrency int           `koanf:"sync_concurrency"`
	StatsCacheSize  int           `koanf:"stats_cache_size"`
	Debug           bool          `koanf:"debug"`

	// ConfigDir holds logs and backups; it is not itself configurable from the file
	ConfigDir string `koanf:"-"`
}

// Options controls where Load looks for configuration
type Options struct {
	ConfigDir  string // defaults to constants.DefaultConfigDir
	ConfigFile string // defaults to <ConfigDir>/config.yaml
	EnvFile    string // defaults to .env in the working directory
}

func defaults(configDir string) map[string]any {
	return map[string]any{
		constants.ConfigDBPath:          filepath.Join(configDir, constants.DefaultDBFile),
		constants.ConfigTimezone:        constants.DefaultTimezone,
		constants.ConfigProbeAddress:    constants.DefaultProbeAddress,
		constants.ConfigProbeInterval:   constants.DefaultProbeInterval.String(),
		constants.ConfigSyncConcurrency: constants.DefaultSyncConcurrency,
		constants.ConfigStatsCacheSize:  constants.DefaultStatsCacheSize,
		constants.ConfigDebug:           false,
	}
}

// Load resolves configuration. A missing config file or .env file is not an error.
func Load(opts Options) (*Config, error) {
	configDir, err := ExpandHome(opts.ConfigDir)
	if err != nil {
		return nil, err
	}
	if configDir == "" {
		if configDir, err = ExpandHome(constants.DefaultConfigDir); err != nil {
			return nil, err
		}
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	k := koanf.New(".")
	for key, val := range defaults(configDir) {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("failed to set default %s: %w", key, err)
		}
	}

	configFile := opts.ConfigFile
	if configFile == "" {
		configFile = filepath.Join(configDir, ConfigFileName)
	}
	if configFile, err = ExpandHome(configFile); err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(configFile); statErr == nil {
		fk := koanf.New(".")
		if err := fk.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configFile, err)
		}
		if hasPassword(fk.String(constants.ConfigRemoteURL)) {
			return nil, ErrEmbeddedCredentials
		}
		if err := k.Merge(fk); err != nil {
			return nil, fmt.Errorf("failed to merge config file: %w", err)
		}
	} else if !errors.Is(statErr, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, statErr)
	}

	// TALLY_SYNC_CONCURRENCY -> sync_concurrency
	if err := k.Load(env.Provider(constants.EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, constants.EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.ConfigDir = configDir
	if cfg.DBPath, err = ExpandHome(cfg.DBPath); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges that the decoder cannot enforce
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("db_path must not be empty")
	}
	if !utils.ValidateTimezone(c.Timezone) {
		return fmt.Errorf("invalid timezone %q", c.Timezone)
	}
	if c.ProbeInterval <= 0 {
		return fmt.Errorf("probe_interval must be positive, got %v", c.ProbeInterval)
	}
	if c.SyncConcurrency < 1 {
		return fmt.Errorf("sync_concurrency must be at least 1, got %d", c.SyncConcurrency)
	}
	if c.StatsCacheSize < 1 {
		return fmt.Errorf("stats_cache_size must be at least 1, got %d", c.StatsCacheSize)
	}
	return nil
}

// ExpandHome replaces a leading "~" with the current user's home directory
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

func hasPassword(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return false
	}
	_, set := u.User.Password()
	return set
}
