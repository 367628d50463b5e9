// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/goccy/go-json"

	"github.com/tomtom215/scriptorium/internal/logging"
	"github.com/tomtom215/scriptorium/internal/metrics"
)

// Errors returned by store operations.
var (
	// ErrStoreClosed is returned after Close.
	ErrStoreClosed = errors.New("store is closed")

	// ErrKeyNotFound is returned when a key does not exist.
	ErrKeyNotFound = errors.New("key not found")

	// ErrStorageUnavailable is returned when a transaction keeps conflicting
	// after the retry budget is exhausted. Callers treat it as transient.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Conflict retry parameters for Update transactions.
const (
	conflictBackoffBase  = 100 * time.Millisecond
	conflictBackoffCap   = time.Second
	conflictMaxAttempts  = 5
	defaultCloseTimeout  = 30 * time.Second
	defaultGCInterval    = 10 * time.Minute
	defaultGCDiscardRate = 0.5
)

// Config controls the document store.
type Config struct {
	// Path is the on-disk directory for the BadgerDB instance.
	Path string

	// SyncWrites forces fsync on every commit. Slower but durable.
	SyncWrites bool

	// Compression enables Snappy compression of value blocks.
	Compression bool

	// GCInterval is how often the background value-log GC runs.
	// Zero disables the background loop; callers may still call RunGC.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum reclaimable fraction for a GC rewrite.
	GCDiscardRatio float64

	// CloseTimeout bounds how long Close waits for BadgerDB to shut down.
	CloseTimeout time.Duration
}

// DefaultConfig returns production defaults for the given path.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		Compression:    true,
		GCInterval:     defaultGCInterval,
		GCDiscardRatio: defaultGCDiscardRate,
		CloseTimeout:   defaultCloseTimeout,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Path == "" {
		return errors.New("store path is required")
	}
	if c.GCDiscardRatio < 0 || c.GCDiscardRatio >= 1 {
		return fmt.Errorf("gc discard ratio %v out of range [0, 1)", c.GCDiscardRatio)
	}
	return nil
}

// Store is a BadgerDB-backed transactional document store.
type Store struct {
	db     *badger.DB
	config Config

	conflictRetries atomic.Int64

	mu     sync.RWMutex
	closed bool

	gcStop chan struct{}
	gcDone chan struct{}
}

// Open opens (or creates) the store at the configured path.
func Open(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store config: %w", err)
	}
	if cfg.GCDiscardRatio == 0 {
		cfg.GCDiscardRatio = defaultGCDiscardRate
	}
	if cfg.CloseTimeout == 0 {
		cfg.CloseTimeout = defaultCloseTimeout
	}

	opts := badger.DefaultOptions(cfg.Path)
	opts.SyncWrites = cfg.SyncWrites
	if cfg.Compression {
		opts.Compression = options.Snappy
	}

	// Badger's own logger is noisy; operational state is logged here instead.
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	s := &Store{db: db, config: cfg}

	if cfg.GCInterval > 0 {
		s.gcStop = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.gcLoop()
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("sync_writes", cfg.SyncWrites).
		Bool("compression", cfg.Compression).
		Msg("Document store opened")
	return s, nil
}

// Get reads the value at key and unmarshals it into v.
func (s *Store) Get(ctx context.Context, key string, v any) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	err := s.db.View(func(txn *badger.Txn) error {
		return GetJSON(txn, key, v)
	})
	if err != nil {
		return err
	}
	return nil
}

// Set marshals v as JSON and writes it at key.
func (s *Store) Set(ctx context.Context, key string, v any) error {
	return s.Update(ctx, "set", func(txn *badger.Txn) error {
		return SetJSON(txn, key, v)
	})
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.Update(ctx, "delete", func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}

	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// List iterates all keys under prefix in lexicographic order, invoking fn
// with each key and raw value. Returning an error from fn stops iteration.
// The value slice is only valid for the duration of the callback.
func (s *Store) List(ctx context.Context, prefix string, fn func(key string, val []byte) error) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			item := it.Item()
			if err := item.Value(func(val []byte) error {
				return fn(string(item.Key()), val)
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// Count returns the number of keys under prefix.
func (s *Store) Count(ctx context.Context, prefix string) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	var n int
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			n++
		}
		return nil
	})
	return n, err
}

// View runs fn in a read-only snapshot transaction.
func (s *Store) View(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.db.View(fn)
}

// Update runs fn in a read-write transaction, retrying on SSI conflicts
// with exponential backoff. After the retry budget is spent the error is
// wrapped in ErrStorageUnavailable so callers can classify it as transient.
// The operation label is used for transaction latency metrics only.
func (s *Store) Update(ctx context.Context, operation string, fn func(txn *badger.Txn) error) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	start := time.Now()
	defer func() {
		metrics.RecordStoreTxn(operation, time.Since(start))
	}()

	var err error
	for attempt := 0; attempt < conflictMaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(conflictBackoff(attempt - 1)):
			}
		}

		err = s.db.Update(fn)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}

		s.conflictRetries.Add(1)
		metrics.StoreConflictRetries.Inc()
		logging.Debug().
			Str("operation", operation).
			Int("attempt", attempt+1).
			Msg("Store transaction conflict, retrying")
	}

	metrics.StoreUnavailable.Inc()
	return fmt.Errorf("%w: %s conflicted after %d attempts: %v",
		ErrStorageUnavailable, operation, conflictMaxAttempts, err)
}

// conflictBackoff returns the delay before retry attempt n (zero-based).
func conflictBackoff(attempt int) time.Duration {
	d := conflictBackoffBase << uint(attempt)
	if d > conflictBackoffCap || d <= 0 {
		return conflictBackoffCap
	}
	return d
}

// ConflictRetries returns the total number of conflict retries since Open.
func (s *Store) ConflictRetries() int64 {
	return s.conflictRetries.Load()
}

// Size returns the combined LSM and value-log size in bytes.
func (s *Store) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0
	}
	lsm, vlog := s.db.Size()
	return lsm + vlog
}

// RunGC runs value-log garbage collection until no further rewrite is
// possible.
func (s *Store) RunGC() error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	for {
		err := s.db.RunValueLogGC(s.config.GCDiscardRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
		metrics.StoreGCRuns.Inc()
	}
}

// gcLoop runs RunGC on the configured interval until Close.
func (s *Store) gcLoop() {
	defer close(s.gcDone)

	ticker := time.NewTicker(s.config.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.gcStop:
			return
		case <-ticker.C:
			if err := s.RunGC(); err != nil && !errors.Is(err, ErrStoreClosed) {
				logging.Warn().Err(err).Msg("Store GC failed")
			}
		}
	}
}

// Close shuts the store down, waiting at most CloseTimeout for BadgerDB.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	timeout := s.config.CloseTimeout
	s.mu.Unlock()

	if s.gcStop != nil {
		close(s.gcStop)
		<-s.gcDone
	}

	done := make(chan error, 1)
	go func() {
		done <- s.db.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close BadgerDB: %w", err)
		}
		logging.Info().Msg("Document store closed")
		return nil
	case <-time.After(timeout):
		logging.Warn().Dur("timeout", timeout).Msg("BadgerDB close timed out")
		return fmt.Errorf("badgerdb close timeout after %v", timeout)
	}
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// GetJSON reads key inside an open transaction and unmarshals into v.
func GetJSON(txn *badger.Txn, key string, v any) error {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	return item.Value(func(val []byte) error {
		if err := json.Unmarshal(val, v); err != nil {
			return fmt.Errorf("unmarshal %s: %w", key, err)
		}
		return nil
	})
}

// SetJSON marshals v and writes it at key inside an open transaction.
func SetJSON(txn *badger.Txn, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := txn.Set([]byte(key), data); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}
