// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

/*
Package config provides centralized configuration management for AttendSync.

# Configuration Sources

Koanf v2 loads three layers, highest priority last:
  - Built-in defaults (defaultConfig)
  - Optional YAML file: $CONFIG_PATH, ./config.yaml, /etc/attendsync/config.yaml
  - Environment variables, through an explicit mapping table

# Environment Variables

Device:
  - DEVICE_IP: terminal address (required)
  - DEVICE_PORT: TCP port (default: 4370)
  - DEVICE_TIMEOUT: per-attempt timeout (default: 15s daemon, 5s fast)
  - DEVICE_PARSER_VERSION: auto, v1, v2 (default: auto)
  - DEVICE_CONNECTION_TRIES / DEVICE_CONNECTION_DELAY: connect retry budget
  - DEVICE_MODE: daemon or fast (default: fast)
  - DEVICE_PROBE_ENABLED / DEVICE_PROBE_TIMEOUT: ICMP pre-check (default: true, 2s)

Database:
  - DATABASE_URL or DUCKDB_PATH: DuckDB file path or :memory:
  - DUCKDB_MAX_MEMORY, DUCKDB_THREADS

Sync:
  - SYNC_INTERVAL (default: 5s), SYNC_RETRY_ATTEMPTS (5), SYNC_RETRY_DELAY (2s)
  - SYNC_AUTO_START, SYNC_TIMEZONE, SYNC_DEFAULT_DEPARTMENT, SYNC_CACHE_TTL
  - SYNC_MANUAL_MIN_INTERVAL: minimum gap between manual triggers

Server:
  - HTTP_HOST, HTTP_PORT (default: 8085), HTTP_TIMEOUT
  - CORS_ORIGINS (comma separated), RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW, DISABLE_RATE_LIMIT

Ledger spool:
  - WAL_ENABLED, WAL_PATH

Logging:
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER
  - LOG_DIR, LOG_RETENTION_DAYS (default: 14), LOG_MAX_SIZE_MB (default: 50)
*/
package config
