// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/attendsync/internal/logging"
	"github.com/tomtom215/attendsync/internal/metrics"
)

const (
	filePrefix    = "attendsync-"
	archiveExt    = ".tar.gz"
	sidecarExt    = ".json"
	partialExt    = ".partial"
	stampLayout   = "20060102T150405Z"
	metadataEntry = "backup-metadata.json"
)

var (
	// ErrNoDatabaseFile is returned when the store is in-memory.
	ErrNoDatabaseFile = errors.New("database has no file to back up")
	// ErrInProgress is returned when another backup is running.
	ErrInProgress = errors.New("backup already in progress")
	// ErrNotFound is returned for an unknown backup ID.
	ErrNotFound = errors.New("backup not found")
	// ErrCorrupted is returned when an archive fails verification.
	ErrCorrupted = errors.New("backup archive corrupted")
)

// Trigger indicates what started a backup.
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerScheduled Trigger = "scheduled"
)

// File is one archived file with its SHA-256 checksum.
type File struct {
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
}

// Backup describes one archive.
type Backup struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Trigger    Trigger   `json:"trigger"`
	FileName   string    `json:"file_name"`
	Size       int64     `json:"size,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty"`
	Files      []File    `json:"files"`
}

// Database is the store being backed up.
type Database interface {
	Path() string
	Checkpoint(ctx context.Context) error
}

// Config controls scheduling and retention.
type Config struct {
	Dir string

	// Interval between scheduled backups. Intervals of a day or more run
	// at PreferredHour in Location.
	Interval      time.Duration
	PreferredHour int
	Location      *time.Location

	// MinCount newest backups are always kept. Beyond that a backup is
	// removed when it is older than MaxAge or not among the MaxCount newest.
	// Zero disables the respective rule.
	MinCount int
	MaxCount int
	MaxAge   time.Duration

	// CompressionLevel is the gzip level, 1-9.
	CompressionLevel int
}

// DefaultConfig returns daily backups at 02:00 keeping 30.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:              dir,
		Interval:         24 * time.Hour,
		PreferredHour:    2,
		MinCount:         3,
		MaxCount:         30,
		MaxAge:           90 * 24 * time.Hour,
		CompressionLevel: 6,
	}
}

// Manager creates, lists, verifies and prunes backups.
type Manager struct {
	cfg Config
	db  Database
	now func() time.Time

	// serializes Create and Prune
	mu sync.Mutex
}

// NewManager creates the backup directory and returns a Manager.
func NewManager(cfg Config, db Database) (*Manager, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("backup directory is required")
	}
	def := DefaultConfig(cfg.Dir)
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.PreferredHour < 0 || cfg.PreferredHour > 23 {
		return nil, fmt.Errorf("preferred hour must be between 0 and 23, got %d", cfg.PreferredHour)
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MinCount < 1 {
		cfg.MinCount = 1
	}
	if cfg.MaxCount > 0 && cfg.MaxCount < cfg.MinCount {
		cfg.MaxCount = cfg.MinCount
	}
	if cfg.CompressionLevel < 1 || cfg.CompressionLevel > 9 {
		cfg.CompressionLevel = def.CompressionLevel
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create backup directory %s: %w", cfg.Dir, err)
	}
	return &Manager{cfg: cfg, db: db, now: time.Now}, nil
}

// Create writes a new archive. It returns ErrInProgress rather than wait.
func (m *Manager) Create(ctx context.Context, trigger Trigger) (*Backup, error) {
	if !m.mu.TryLock() {
		return nil, ErrInProgress
	}
	defer m.mu.Unlock()

	log := logging.Ctx(ctx)
	b, err := m.create(ctx, trigger)
	metrics.RecordBackup(string(trigger), err)
	if err != nil {
		log.Error().Err(err).Str("trigger", string(trigger)).Msg("Database backup failed")
		return nil, err
	}
	log.Info().
		Str("backup_id", b.ID).
		Str("file", b.FileName).
		Int64("size", b.Size).
		Int64("duration_ms", b.DurationMs).
		Str("trigger", string(trigger)).
		Msg("Database backup created")
	return b, nil
}

func (m *Manager) create(ctx context.Context, trigger Trigger) (*Backup, error) {
	dbPath := m.db.Path()
	if dbPath == "" || dbPath == ":memory:" {
		return nil, ErrNoDatabaseFile
	}
	started := time.Now()

	if err := m.db.Checkpoint(ctx); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Checkpoint failed; backup may miss recent writes")
	}

	created := m.now().UTC()
	id := uuid.New().String()
	b := &Backup{
		ID:        id,
		CreatedAt: created,
		Trigger:   trigger,
		FileName:  filePrefix + created.Format(stampLayout) + "-" + id[:8] + archiveExt,
	}
	final := filepath.Join(m.cfg.Dir, b.FileName)
	tmp := final + partialExt

	if err := m.writeArchive(ctx, tmp, dbPath, b); err != nil {
		_ = os.Remove(tmp)
		return nil, err
	}
	info, err := os.Stat(tmp)
	if err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("stat archive: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("finalize archive: %w", err)
	}

	b.Size = info.Size()
	b.DurationMs = time.Since(started).Milliseconds()
	if err := writeSidecar(final+sidecarExt, b); err != nil {
		_ = os.Remove(final)
		return nil, err
	}
	return b, nil
}

func writeSidecar(path string, b *Backup) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal backup metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write backup metadata: %w", err)
	}
	return nil
}

// List returns all backups, newest first. Unreadable sidecars are skipped.
func (m *Manager) List() ([]Backup, error) {
	matches, err := filepath.Glob(filepath.Join(m.cfg.Dir, filePrefix+"*"+archiveExt+sidecarExt))
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	out := make([]Backup, 0, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from a glob of the backup directory
		if err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("Skipping unreadable backup metadata")
			continue
		}
		var b Backup
		if err := json.Unmarshal(data, &b); err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("Skipping malformed backup metadata")
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Get returns the backup with the given ID.
func (m *Manager) Get(id string) (*Backup, error) {
	backups, err := m.List()
	if err != nil {
		return nil, err
	}
	for i := range backups {
		if backups[i].ID == id {
			return &backups[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Prune applies the retention rules and returns how many backups it removed.
func (m *Manager) Prune(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	backups, err := m.List()
	if err != nil {
		return 0, err
	}
	now := m.now()
	removed := 0
	for i := range backups {
		b := &backups[i]
		if i < m.cfg.MinCount {
			continue
		}
		expired := m.cfg.MaxAge > 0 && now.Sub(b.CreatedAt) > m.cfg.MaxAge
		excess := m.cfg.MaxCount > 0 && i >= m.cfg.MaxCount
		if !expired && !excess {
			continue
		}
		if err := m.remove(b); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		metrics.BackupsPruned.Add(float64(removed))
		logging.Ctx(ctx).Info().Int("removed", removed).Int("kept", len(backups)-removed).Msg("Backup retention applied")
	}
	return removed, nil
}

func (m *Manager) remove(b *Backup) error {
	if strings.ContainsAny(b.FileName, `/\`) {
		return fmt.Errorf("refusing to remove %q outside backup directory", b.FileName)
	}
	archive := filepath.Join(m.cfg.Dir, b.FileName)
	for _, path := range []string{archive, archive + sidecarExt} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove backup %s: %w", b.ID, err)
		}
	}
	return nil
}
