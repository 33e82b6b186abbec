// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

// Package wal provides a durable BadgerDB spool for sync ledger entries
// that could not be written to the primary store. Entries are kept in
// append order until the ledger replays and removes them.
package wal

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/attendsync/internal/logging"
	"github.com/tomtom215/attendsync/internal/models"
)

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("spool is closed")
	// ErrNilRecord is returned when appending a nil record.
	ErrNilRecord = errors.New("record is nil")
)

const (
	prefixPending = "pending:"
	sequenceKey   = "meta:seq"
	// sequenceBandwidth is how many sequence numbers badger leases at once.
	sequenceBandwidth = 64
)

// Options configures the spool.
type Options struct {
	// Path is the BadgerDB directory. Ignored when InMemory is set.
	Path string
	// InMemory keeps everything in memory. Intended for tests.
	InMemory bool
	// SyncWrites fsyncs every append.
	SyncWrites bool
}

// Entry is one spooled ledger record.
type Entry struct {
	Seq       uint64                  `json:"seq"`
	SpooledAt time.Time               `json:"spooled_at"`
	Reason    string                  `json:"reason,omitempty"`
	Record    models.SyncStatusRecord `json:"record"`
}

// Spool is a FIFO of ledger records backed by BadgerDB.
type Spool struct {
	db  *badger.DB
	seq *badger.Sequence

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the spool.
func Open(opts Options) (*Spool, error) {
	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Path == "" {
			return nil, fmt.Errorf("spool path is required")
		}
		bopts = badger.DefaultOptions(opts.Path)
		bopts.SyncWrites = opts.SyncWrites
	}
	// Badger logs through its own logger; keep it quiet.
	bopts.Logger = nil

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	seq, err := db.GetSequence([]byte(sequenceKey), sequenceBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open sequence: %w", err)
	}

	s := &Spool{db: db, seq: seq}
	n, err := s.Len(context.Background())
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	logging.Info().
		Str("path", opts.Path).
		Bool("in_memory", opts.InMemory).
		Int("pending", n).
		Msg("Ledger spool opened")
	return s, nil
}

// Append spools rec and returns its sequence number.
func (s *Spool) Append(ctx context.Context, rec *models.SyncStatusRecord, reason string) (uint64, error) {
	if rec == nil {
		return 0, ErrNilRecord
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	// Sequence numbers start at 0; shift by one so a zero Seq means "unset".
	n, err := s.seq.Next()
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	n++

	entry := Entry{Seq: n, SpooledAt: time.Now().UTC(), Reason: reason, Record: *rec}
	data, err := json.Marshal(&entry)
	if err != nil {
		return 0, fmt.Errorf("marshal entry: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(pendingKey(n), data))
	})
	if err != nil {
		return 0, fmt.Errorf("write to BadgerDB: %w", err)
	}
	return n, nil
}

// Pending returns every spooled entry in append order.
func (s *Spool) Pending(ctx context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var entries []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixPending)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var entry Entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			}); err != nil {
				// A corrupt value must not block the rest of the queue.
				logging.Warn().Err(err).Str("key", string(it.Item().Key())).Msg("Skipping unreadable spool entry")
				continue
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read spool: %w", err)
	}
	return entries, nil
}

// Remove deletes the entry with seq. Removing a missing entry is not an error.
func (s *Spool) Remove(_ context.Context, seq uint64) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(pendingKey(seq))
	})
	if err != nil {
		return fmt.Errorf("delete spool entry %d: %w", seq, err)
	}
	return nil
}

// Len counts spooled entries.
func (s *Spool) Len(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}

	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixPending)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count spool: %w", err)
	}
	return n, nil
}

// RunGC reclaims value log space left by removed entries. It rewrites
// files until badger reports nothing left to rewrite.
func (s *Spool) RunGC(discardRatio float64) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	for {
		err := s.db.RunValueLogGC(discardRatio)
		switch {
		case err == nil:
			continue
		case errors.Is(err, badger.ErrNoRewrite), errors.Is(err, badger.ErrGCInMemoryMode):
			return nil
		default:
			return fmt.Errorf("value log GC: %w", err)
		}
	}
}

// Close releases the sequence lease and closes BadgerDB. It is safe to call twice.
func (s *Spool) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if err := s.seq.Release(); err != nil {
		errs = append(errs, fmt.Errorf("release sequence: %w", err))
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close BadgerDB: %w", err))
	}
	return errors.Join(errs...)
}

// pendingKey encodes seq big-endian so lexical key order is append order.
func pendingKey(seq uint64) []byte {
	key := make([]byte, len(prefixPending)+8)
	copy(key, prefixPending)
	binary.BigEndian.PutUint64(key[len(prefixPending):], seq)
	return key
}
