// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package backup

import (
	"archive/tar"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
)

// writeArchive streams the database files into a gzip tar at path and
// records each file's checksum on b.
func (m *Manager) writeArchive(ctx context.Context, path, dbPath string, b *Backup) (err error) {
	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640) //nolint:gosec // G304: path is inside the backup directory
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	gz, err := gzip.NewWriterLevel(out, m.cfg.CompressionLevel)
	if err != nil {
		_ = out.Close()
		return fmt.Errorf("create gzip writer: %w", err)
	}
	tw := tar.NewWriter(gz)

	// Close in reverse order of creation.
	defer func() {
		for _, c := range []io.Closer{tw, gz, out} {
			if cerr := c.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
	}()

	base := filepath.Base(dbPath)
	if err := addFile(tw, dbPath, "database/"+base, b); err != nil {
		return err
	}
	walPath := dbPath + ".wal"
	if _, err := os.Stat(walPath); err == nil {
		if err := addFile(tw, walPath, "database/"+base+".wal", b); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return addJSON(tw, metadataEntry, b, m.now())
}

func addFile(tw *tar.Writer, src, name string, b *Backup) error {
	f, err := os.Open(src) //nolint:gosec // G304: src is the configured database path
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer f.Close() //nolint:errcheck // read-only

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("tar header for %s: %w", src, err)
	}
	hdr.Name = name
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write header for %s: %w", src, err)
	}

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tw, h), f)
	if err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	b.Files = append(b.Files, File{Path: name, Size: n, Checksum: hex.EncodeToString(h.Sum(nil))})
	return nil
}

func addJSON(tw *tar.Writer, name string, v any, modTime time.Time) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	hdr := &tar.Header{Name: name, Size: int64(len(data)), Mode: 0o640, ModTime: modTime}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write header for %s: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Verify recomputes the checksum of every file listed for the backup and
// returns an error wrapping ErrCorrupted on any mismatch or missing entry.
func (m *Manager) Verify(ctx context.Context, id string) (*Backup, error) {
	b, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(m.cfg.Dir, b.FileName)) //nolint:gosec // G304: name comes from backup metadata
	if err != nil {
		return nil, fmt.Errorf("%w: open archive: %v", ErrCorrupted, err)
	}
	defer f.Close() //nolint:errcheck // read-only

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	defer gz.Close() //nolint:errcheck // read-only

	want := make(map[string]string, len(b.Files))
	for _, file := range b.Files {
		want[file.Path] = file.Checksum
	}

	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
		}
		sum, listed := want[hdr.Name]
		if !listed {
			continue
		}
		h := sha256.New()
		if _, err := io.Copy(h, tr); err != nil { //nolint:gosec // G110: size bounded by our own archive
			return nil, fmt.Errorf("%w: read %s: %v", ErrCorrupted, hdr.Name, err)
		}
		if got := hex.EncodeToString(h.Sum(nil)); got != sum {
			return nil, fmt.Errorf("%w: checksum mismatch for %s", ErrCorrupted, hdr.Name)
		}
		delete(want, hdr.Name)
	}
	if len(want) > 0 {
		missing := make([]string, 0, len(want))
		for name := range want {
			missing = append(missing, name)
		}
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: %s missing from archive", ErrCorrupted, strings.Join(missing, ", "))
	}
	return b, nil
}
