// Package cache keeps language-model responses in memory and on disk, so
// repeated probing runs do not pay for the same prompt twice.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/maypok86/otter/v2"
)

// FileName is the snapshot file written inside the cache directory.
const FileName = "responses.gob"

// Entry is one cached response.
type Entry struct {
	ExpiresAt time.Time
	Data      []byte
}

// Store is a size-bounded response cache with TTL expiry, snapshotted to
// disk periodically and on Close.
type Store struct {
	cache      *otter.Cache[string, Entry]
	logger     *slog.Logger
	saveCancel context.CancelFunc
	dir        string
	saveWg     sync.WaitGroup
	ttl        time.Duration
	mu         sync.Mutex
}

// Option configures a Store.
type Option func(*options)

type options struct {
	maxSize      int
	saveInterval time.Duration
}

// WithMaxSize bounds the number of entries kept in memory.
func WithMaxSize(n int) Option {
	return func(o *options) {
		o.maxSize = n
	}
}

// WithSaveInterval sets how often the snapshot is rewritten. Zero disables
// periodic saving; Close still saves.
func WithSaveInterval(d time.Duration) Option {
	return func(o *options) {
		o.saveInterval = d
	}
}

// Open loads the snapshot in dir, if any, and starts periodic saving.
func Open(ctx context.Context, dir string, ttl time.Duration, logger *slog.Logger, opts ...Option) (*Store, error) {
	o := options{maxSize: 50_000, saveInterval: 5 * time.Minute}
	for _, opt := range opts {
		opt(&o)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	s := &Store{
		cache: otter.Must(&otter.Options[string, Entry]{
			MaximumSize:      o.maxSize,
			InitialCapacity:  min(o.maxSize, 1_000),
			ExpiryCalculator: otter.ExpiryWriting[string, Entry](ttl),
		}),
		dir:    dir,
		ttl:    ttl,
		logger: logger,
	}

	if err := s.load(); err != nil {
		logger.Warn("failed to load response cache", "error", err)
	}
	logger.Debug("response cache opened", "dir", dir, "entries", s.cache.EstimatedSize())

	if o.saveInterval > 0 {
		s.startPeriodicSave(ctx, o.saveInterval)
	}
	return s, nil
}

// Key derives the cache key of a request from its namespace (for example
// the model name) and payload.
func Key(namespace string, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(namespace))
	h.Write([]byte{0})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// Response returns the cached response for (namespace, payload).
func (s *Store) Response(namespace string, payload []byte) ([]byte, bool) {
	key := Key(namespace, payload)
	e, ok := s.cache.GetIfPresent(key)
	if !ok {
		s.logger.Debug("response cache miss", "namespace", namespace)
		return nil, false
	}
	if time.Now().After(e.ExpiresAt) {
		s.cache.Invalidate(key)
		s.logger.Debug("response cache miss", "namespace", namespace, "reason", "expired")
		return nil, false
	}
	return e.Data, true
}

// SetResponse stores data as the response for (namespace, payload).
func (s *Store) SetResponse(namespace string, payload, data []byte) error {
	e := Entry{Data: data, ExpiresAt: time.Now().Add(s.ttl)}
	s.cache.Set(Key(namespace, payload), e)
	s.logger.Debug("response cached", "namespace", namespace, "size", len(data))
	return nil
}

// Len returns the approximate number of live entries.
func (s *Store) Len() int {
	return s.cache.EstimatedSize()
}

func (s *Store) path() string {
	return filepath.Join(s.dir, FileName)
}

func (s *Store) load() error {
	f, err := os.Open(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("opening cache snapshot: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Debug("failed to close cache snapshot", "error", err)
		}
	}()

	var entries map[string]Entry
	if err := gob.NewDecoder(f).Decode(&entries); err != nil {
		return fmt.Errorf("decoding cache snapshot: %w", err)
	}
	now := time.Now()
	live := 0
	for k, e := range entries {
		if now.Before(e.ExpiresAt) {
			s.cache.Set(k, e)
			live++
		}
	}
	s.logger.Info("loaded response cache", "path", s.path(), "entries", len(entries), "live", live)
	return nil
}

// Save writes a snapshot of the live entries.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path() + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating cache snapshot: %w", err)
	}
	defer func() {
		if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
			s.logger.Debug("failed to remove temp snapshot", "error", err)
		}
	}()

	entries := make(map[string]Entry)
	now := time.Now()
	for k, e := range s.cache.All() {
		if now.Before(e.ExpiresAt) {
			entries[k] = e
		}
	}

	if err := gob.NewEncoder(f).Encode(entries); err != nil {
		f.Close() //nolint:errcheck // already failing
		return fmt.Errorf("encoding cache snapshot: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close() //nolint:errcheck // already failing
		return fmt.Errorf("syncing cache snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing cache snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path()); err != nil {
		return fmt.Errorf("replacing cache snapshot: %w", err)
	}
	s.logger.Debug("response cache saved", "entries", len(entries), "path", s.path())
	return nil
}

func (s *Store) startPeriodicSave(ctx context.Context, every time.Duration) {
	saveCtx, cancel := context.WithCancel(ctx)
	s.saveCancel = cancel

	s.saveWg.Add(1)
	go func() {
		defer s.saveWg.Done()
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-saveCtx.Done():
				return
			case <-ticker.C:
				if err := s.Save(); err != nil {
					s.logger.Error("periodic cache save failed", "error", err)
				}
			}
		}
	}()
}

// Close stops periodic saving and writes a final snapshot.
func (s *Store) Close() error {
	if s.saveCancel != nil {
		s.saveCancel()
	}
	s.saveWg.Wait()
	return s.Save()
}
