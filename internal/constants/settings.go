package constants

const (
	// Local settings table keys
	SettingUserID = "user_id"
	// Pull watermarks are stored per user as "<prefix>:<user id>"
	SettingHabitsWatermark      = "habits_pulled_until"
	SettingCompletionsWatermark = "completions_pulled_until"

	// Config keys
	ConfigDBPath          = "db_path"
	ConfigTimezone        = "timezone"
	ConfigUserID          = "user_id"
	ConfigRemoteURL       = "remote_url"
	ConfigProbeAddress    = "probe_address"
	ConfigProbeInterval   = "probe_interval"
	ConfigSyncConcurrency = "sync_concurrency"
	ConfigStatsCacheSize  = "stats_cache_size"
	ConfigDebug           = "debug"

	// EnvPrefix is the prefix for environment overrides (TALLY_DB_PATH, ...)
	EnvPrefix = "TALLY_"

	DefaultTimezone = "Local" // Use system local timezone by default
)
