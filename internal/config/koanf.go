// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/attendsync/config.yaml",
	"/etc/attendsync/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			IP:              "",
			Port:            4370,
			Timeout:         0, // mode default
			ParserVersion:   "auto",
			ConnectionTries: 0, // falls back to sync.retry_attempts
			ConnectionDelay: 0, // falls back to sync.retry_delay
			Mode:            DeviceModeFast,
			ProbeEnabled:    true,
			ProbeTimeout:    2 * time.Second,
		},
		Database: DatabaseConfig{
			Path:      "/data/attendsync.duckdb",
			MaxMemory: "512MB",
			Threads:   0,
		},
		Sync: SyncConfig{
			Interval:          5 * time.Second,
			RetryAttempts:     5,
			RetryDelay:        2 * time.Second,
			AutoStart:         true,
			Timezone:          "",
			DefaultDepartment: "General",
			CacheTTL:          5 * time.Minute,
			ManualMinInterval: 5 * time.Second,
		},
		Server: ServerConfig{
			Port:              8085,
			Host:              "0.0.0.0",
			Timeout:           30 * time.Second,
			CORSOrigins:       []string{},
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		WAL: WALConfig{
			Enabled: false,
			Path:    "/data/attendsync-wal",
		},
		Audit: AuditConfig{
			Enabled:       true,
			RetentionDays: 90,
		},
		Backup: BackupConfig{
			Enabled:       false,
			Dir:           "/data/backups",
			Interval:      24 * time.Hour,
			PreferredHour: 2,
			MinCount:      3,
			MaxCount:      30,
			MaxAge:        90 * 24 * time.Hour,
		},
		Events: EventsConfig{
			Enabled:       false,
			URL:           "nats://127.0.0.1:4222",
			SubjectPrefix: "attendsync.sync",
			Embedded:      false,
			EmbeddedHost:  "127.0.0.1",
			EmbeddedPort:  4222,
		},
		Logging: LoggingConfig{
			Level:         "info",
			Format:        "json",
			Caller:        false,
			Dir:           "",
			RetentionDays: 14,
			MaxSizeMB:     50,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// DEVICE_IP -> device.ip, SYNC_INTERVAL -> sync.interval
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf config paths.
var envMappings = map[string]string{
	// Device
	"device_ip":               "device.ip",
	"device_port":             "device.port",
	"device_timeout":          "device.timeout",
	"device_parser_version":   "device.parser_version",
	"device_connection_tries": "device.connection_tries",
	"device_connection_delay": "device.connection_delay",
	"device_mode":             "device.mode",
	"device_probe_enabled":    "device.probe_enabled",
	"device_probe_timeout":    "device.probe_timeout",

	// Database
	"database_url":      "database.path",
	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	// Sync
	"sync_interval":            "sync.interval",
	"sync_retry_attempts":      "sync.retry_attempts",
	"sync_retry_delay":         "sync.retry_delay",
	"sync_auto_start":          "sync.auto_start",
	"sync_timezone":            "sync.timezone",
	"sync_default_department":  "sync.default_department",
	"sync_cache_ttl":           "sync.cache_ttl",
	"sync_manual_min_interval": "sync.manual_min_interval",
	"sync_manual_rate":         "sync.manual_min_interval",

	// Server
	"http_port":           "server.port",
	"http_host":           "server.host",
	"http_timeout":        "server.timeout",
	"cors_origins":        "server.cors_origins",
	"rate_limit_requests": "server.rate_limit_reqs",
	"rate_limit_window":   "server.rate_limit_window",
	"disable_rate_limit":  "server.rate_limit_disabled",

	// Ledger spool
	"wal_enabled": "wal.enabled",
	"wal_path":    "wal.path",

	// Audit trail
	"audit_enabled":        "audit.enabled",
	"audit_retention_days": "audit.retention_days",

	// Backups
	"backup_enabled":        "backup.enabled",
	"backup_dir":            "backup.dir",
	"backup_interval":       "backup.interval",
	"backup_preferred_hour": "backup.preferred_hour",
	"backup_min_count":      "backup.min_count",
	"backup_max_count":      "backup.max_count",
	"backup_max_age":        "backup.max_age",

	// Event publishing
	"nats_enabled":        "events.enabled",
	"nats_url":            "events.url",
	"nats_subject_prefix": "events.subject_prefix",
	"nats_embedded":       "events.embedded",
	"nats_embedded_host":  "events.embedded_host",
	"nats_embedded_port":  "events.embedded_port",

	// Logging
	"log_level":          "logging.level",
	"log_format":         "logging.format",
	"log_caller":         "logging.caller",
	"log_dir":            "logging.dir",
	"log_retention_days": "logging.retention_days",
	"log_max_size_mb":    "logging.max_size_mb",
}

// envTransformFunc transforms environment variable names to koanf config paths.
// Unmapped keys return "" so unrelated environment variables never reach the config.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
