package constants

import "time"

// SyncStatus represents the sync lifecycle state of a local record
type SyncStatus string

// FrequencyType represents how often a habit is scheduled
type FrequencyType string

// Period represents a calendar bucket for statistics
type Period string

const (
	AppName            = "tally"
	DefaultKeyringUser = "remote-connection"
	DefaultConfigDir   = "~/.config/tally"
	DefaultDBFile      = "tally.db"
	Version            = "v0.1.0"

	// Backup constants
	MaxBackups       = 14
	BackupDirName    = "backups"
	BackupFilePrefix = "tally-"
	BackupFileSuffix = ".db"

	// Local table names
	TableHabits      = "habits"
	TableCompletions = "habit_completions"

	// Sync Status constants
	SyncStatusSynced   SyncStatus = "synced"
	SyncStatusPending  SyncStatus = "pending"
	SyncStatusConflict SyncStatus = "conflict"
	SyncStatusError    SyncStatus = "error"

	// Frequency constants
	FrequencyDaily   FrequencyType = "daily"
	FrequencyWeekly  FrequencyType = "weekly"
	FrequencyMonthly FrequencyType = "monthly"
	// FrequencyCustom only appears in reporting inputs; habits are never stored with it.
	FrequencyCustom FrequencyType = "custom"

	// Statistics periods
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodAll   Period = "all"

	// Sync engine defaults
	DefaultSyncConcurrency = 4
	DefaultStatsCacheSize  = 256
	DefaultProbeAddress    = "1.1.1.1:443"
	DefaultProbeInterval   = 15 * time.Second
	DefaultProbeTimeout    = 3 * time.Second
	DefaultRemoteTimeout   = 10 * time.Second
)
