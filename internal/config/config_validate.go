// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package config

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateDevice(); err != nil {
		return err
	}

	if err := c.validateDatabase(); err != nil {
		return err
	}

	if err := c.validateSync(); err != nil {
		return err
	}

	if err := c.validateServer(); err != nil {
		return err
	}

	if c.Audit.RetentionDays < 0 {
		return fmt.Errorf("AUDIT_RETENTION_DAYS must not be negative")
	}

	if err := c.validateBackup(); err != nil {
		return err
	}

	if err := c.validateEvents(); err != nil {
		return err
	}

	return c.validateLogging()
}

// validateDevice validates the terminal connection settings
func (c *Config) validateDevice() error {
	if c.Device.IP == "" {
		return fmt.Errorf("DEVICE_IP is required")
	}
	if net.ParseIP(c.Device.IP) == nil && strings.ContainsAny(c.Device.IP, " /:") {
		return fmt.Errorf("DEVICE_IP must be an IP address or hostname, got %q", c.Device.IP)
	}
	if c.Device.Port < 1 || c.Device.Port > 65535 {
		return fmt.Errorf("DEVICE_PORT must be between 1 and 65535")
	}
	if c.Device.Timeout < 0 {
		return fmt.Errorf("DEVICE_TIMEOUT must not be negative")
	}
	switch c.Device.Mode {
	case DeviceModeDaemon, DeviceModeFast:
	default:
		return fmt.Errorf("DEVICE_MODE must be %q or %q, got %q", DeviceModeDaemon, DeviceModeFast, c.Device.Mode)
	}
	switch c.Device.ParserVersion {
	case "auto", "v1", "v2":
	default:
		return fmt.Errorf("DEVICE_PARSER_VERSION must be auto, v1 or v2, got %q", c.Device.ParserVersion)
	}
	if c.DeviceConnectionTries() < 1 {
		return fmt.Errorf("DEVICE_CONNECTION_TRIES (or SYNC_RETRY_ATTEMPTS) must be at least 1")
	}
	if c.DeviceConnectionDelay() < 0 {
		return fmt.Errorf("DEVICE_CONNECTION_DELAY must not be negative")
	}
	if c.Device.ProbeEnabled && c.Device.ProbeTimeout <= 0 {
		return fmt.Errorf("DEVICE_PROBE_TIMEOUT must be positive when probing is enabled")
	}
	return nil
}

// validateDatabase validates the DuckDB settings
func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("DATABASE_URL (or DUCKDB_PATH) is required")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("DUCKDB_THREADS must not be negative")
	}
	return nil
}

// validateSync validates cycle scheduling
func (c *Config) validateSync() error {
	if c.Sync.Interval < time.Second {
		return fmt.Errorf("SYNC_INTERVAL must be at least 1s, got %v", c.Sync.Interval)
	}
	if c.Sync.RetryDelay < 0 {
		return fmt.Errorf("SYNC_RETRY_DELAY must not be negative")
	}
	if c.Sync.CacheTTL <= 0 {
		return fmt.Errorf("SYNC_CACHE_TTL must be positive")
	}
	if c.Sync.ManualMinInterval < 0 {
		return fmt.Errorf("SYNC_MANUAL_MIN_INTERVAL must not be negative")
	}
	if c.Sync.Timezone != "" {
		if _, err := time.LoadLocation(c.Sync.Timezone); err != nil {
			return fmt.Errorf("SYNC_TIMEZONE %q is not a valid IANA zone: %w", c.Sync.Timezone, err)
		}
	}
	return nil
}

// validateServer validates HTTP server configuration
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if !c.Server.RateLimitDisabled {
		if c.Server.RateLimitReqs < 1 {
			return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1")
		}
		if c.Server.RateLimitWindow < time.Second {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be at least 1s")
		}
	}
	return nil
}

// validateBackup validates the snapshot schedule and retention
func (c *Config) validateBackup() error {
	if !c.Backup.Enabled {
		return nil
	}
	if c.Backup.Dir == "" {
		return fmt.Errorf("BACKUP_DIR is required when backups are enabled")
	}
	if c.Backup.Interval < time.Hour {
		return fmt.Errorf("BACKUP_INTERVAL must be at least 1h, got %v", c.Backup.Interval)
	}
	if c.Backup.PreferredHour < 0 || c.Backup.PreferredHour > 23 {
		return fmt.Errorf("BACKUP_PREFERRED_HOUR must be between 0 and 23, got %d", c.Backup.PreferredHour)
	}
	if c.Backup.MinCount < 1 {
		return fmt.Errorf("BACKUP_MIN_COUNT must be at least 1")
	}
	if c.Backup.MaxCount > 0 && c.Backup.MaxCount < c.Backup.MinCount {
		return fmt.Errorf("BACKUP_MAX_COUNT (%d) must be >= BACKUP_MIN_COUNT (%d)", c.Backup.MaxCount, c.Backup.MinCount)
	}
	if strings.HasPrefix(c.Database.Path, ":memory:") {
		return fmt.Errorf("backups require a file-backed database, DATABASE_URL is %q", c.Database.Path)
	}
	return nil
}

// validateEvents validates NATS publishing settings
func (c *Config) validateEvents() error {
	if !c.Events.Enabled {
		return nil
	}
	if c.Events.SubjectPrefix == "" || strings.ContainsAny(c.Events.SubjectPrefix, " *>") {
		return fmt.Errorf("NATS_SUBJECT_PREFIX must be a literal subject, got %q", c.Events.SubjectPrefix)
	}
	if c.Events.Embedded {
		if c.Events.EmbeddedPort < 1 || c.Events.EmbeddedPort > 65535 {
			return fmt.Errorf("NATS_EMBEDDED_PORT must be between 1 and 65535")
		}
		return nil
	}
	if !strings.HasPrefix(c.Events.URL, "nats://") && !strings.HasPrefix(c.Events.URL, "tls://") {
		return fmt.Errorf("NATS_URL must start with nats:// or tls://, got %q", c.Events.URL)
	}
	return nil
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error; got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	if c.Logging.Dir != "" && c.Logging.RetentionDays < 0 {
		return fmt.Errorf("LOG_RETENTION_DAYS must not be negative")
	}
	return nil
}
