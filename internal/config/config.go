// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package config

import (
	"time"
)

// Config holds all application configuration loaded from defaults, an optional
// YAML file, and environment variables (in that order of precedence, lowest first).
//
// Configuration Categories:
//
//  1. Device: biometric terminal address, timeouts, connection retry budget
//  2. Infrastructure: database, sync scheduling, ledger spool (WAL), backups
//  3. API: HTTP server, CORS, rate limiting, NATS event publishing
//  4. Observability: logging level, format, log directory and retention
//
// Config is immutable after Load() and safe for concurrent read access.
type Config struct {
	Device   DeviceConfig   `koanf:"device"`
	Database DatabaseConfig `koanf:"database"`
	Sync     SyncConfig     `koanf:"sync"`
	Server   ServerConfig   `koanf:"server"`
	WAL      WALConfig      `koanf:"wal"`
	Audit    AuditConfig    `koanf:"audit"`
	Backup   BackupConfig   `koanf:"backup"`
	Events   EventsConfig   `koanf:"events"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// Device modes. Fast mode polls aggressively and uses a shorter per-attempt timeout.
const (
	DeviceModeDaemon = "daemon"
	DeviceModeFast   = "fast"
)

// Default per-attempt connect timeouts by device mode.
const (
	DefaultDaemonTimeout = 15 * time.Second
	DefaultFastTimeout   = 5 * time.Second
)

// DeviceConfig holds biometric terminal connection settings.
type DeviceConfig struct {
	IP   string `koanf:"ip"`
	Port int    `koanf:"port"`

	// Timeout is the per-attempt timeout. Zero selects the mode default
	// (15s daemon, 5s fast).
	Timeout time.Duration `koanf:"timeout"`

	// ParserVersion selects the record layout: auto, v1 (legacy 28/16-byte
	// records) or v2 (72/40-byte records).
	ParserVersion string `koanf:"parser_version"`

	// ConnectionTries and ConnectionDelay fall back to Sync.RetryAttempts and
	// Sync.RetryDelay when zero.
	ConnectionTries int           `koanf:"connection_tries"`
	ConnectionDelay time.Duration `koanf:"connection_delay"`

	Mode         string        `koanf:"mode"`
	ProbeEnabled bool          `koanf:"probe_enabled"`
	ProbeTimeout time.Duration `koanf:"probe_timeout"`
}

// EffectiveTimeout returns the per-attempt timeout after applying mode defaults.
func (d DeviceConfig) EffectiveTimeout() time.Duration {
	if d.Timeout > 0 {
		return d.Timeout
	}
	if d.Mode == DeviceModeFast {
		return DefaultFastTimeout
	}
	return DefaultDaemonTimeout
}

// DatabaseConfig holds DuckDB settings. Path accepts a file path or ":memory:".
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = use NumCPU
}

// SyncConfig holds sync cycle scheduling settings
type SyncConfig struct {
	Interval      time.Duration `koanf:"interval"`
	RetryAttempts int           `koanf:"retry_attempts"`
	RetryDelay    time.Duration `koanf:"retry_delay"`
	AutoStart     bool          `koanf:"auto_start"`

	// Timezone is an IANA zone name used to compute calendar days. Empty means local time.
	Timezone          string        `koanf:"timezone"`
	DefaultDepartment string        `koanf:"default_department"`
	CacheTTL          time.Duration `koanf:"cache_ttl"`

	// ManualMinInterval is the minimum gap between manual sync triggers.
	ManualMinInterval time.Duration `koanf:"manual_min_interval"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port              int           `koanf:"port"`
	Host              string        `koanf:"host"`
	Timeout           time.Duration `koanf:"timeout"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// WALConfig controls the BadgerDB spool for ledger entries that could not be persisted.
type WALConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// AuditConfig controls the control-operation audit trail.
type AuditConfig struct {
	Enabled       bool `koanf:"enabled"`
	RetentionDays int  `koanf:"retention_days"`
}

// BackupConfig controls scheduled snapshots of the DuckDB file.
type BackupConfig struct {
	Enabled       bool          `koanf:"enabled"`
	Dir           string        `koanf:"dir"`
	Interval      time.Duration `koanf:"interval"`
	PreferredHour int           `koanf:"preferred_hour"` // used when Interval >= 24h
	MinCount      int           `koanf:"min_count"`
	MaxCount      int           `koanf:"max_count"`
	MaxAge        time.Duration `koanf:"max_age"`
}

// EventsConfig controls publishing sync events to NATS. With Embedded set,
// an in-process server listens on EmbeddedHost:EmbeddedPort and URL is ignored.
type EventsConfig struct {
	Enabled       bool   `koanf:"enabled"`
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix"`
	Embedded      bool   `koanf:"embedded"`
	EmbeddedHost  string `koanf:"embedded_host"`
	EmbeddedPort  int    `koanf:"embedded_port"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is the output format: json or console.
	Format string `koanf:"format"`

	// Caller includes caller file and line number in logs.
	Caller bool `koanf:"caller"`

	// Dir enables a rotating log file in this directory in addition to stderr.
	Dir string `koanf:"dir"`

	// RetentionDays is how long rotated log files are kept.
	RetentionDays int `koanf:"retention_days"`

	// MaxSizeMB is the size at which the log file rotates.
	MaxSizeMB int `koanf:"max_size_mb"`
}

// DeviceConnectionTries resolves the connect attempt budget.
func (c *Config) DeviceConnectionTries() int {
	if c.Device.ConnectionTries > 0 {
		return c.Device.ConnectionTries
	}
	return c.Sync.RetryAttempts
}

// DeviceConnectionDelay resolves the delay between connect attempts.
func (c *Config) DeviceConnectionDelay() time.Duration {
	if c.Device.ConnectionDelay > 0 {
		return c.Device.ConnectionDelay
	}
	return c.Sync.RetryDelay
}

// Location resolves Sync.Timezone. Validate() guarantees it loads.
func (c *Config) Location() *time.Location {
	if c.Sync.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Sync.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Load reads configuration using the layered koanf loader.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
