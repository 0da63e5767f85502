package cachestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"sumika/internal/fileutil"
	"sumika/internal/logging"
)

// Entry is one cached value plus the logical timestamp reconciliation keys on.
type Entry struct {
	Value         any       `json:"value"`
	Stage         string    `json:"stage,omitempty"`
	LastValidated time.Time `json:"last_validated"`
}

// Delta is the set of entries a worker added or changed against its private
// copy of a cache.
type Delta map[string]Entry

// Store provides thread-safe access to one cache domain file.
type Store struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]Entry
	dirty   map[string]Entry
}

// Open loads a cache file into memory. A missing file yields an empty cache.
func Open(path string, logger *slog.Logger) (*Store, error) {
	s := &Store{
		path:    path,
		logger:  logging.NewComponentLogger(logger, "cachestore"),
		entries: make(map[string]Entry),
		dirty:   make(map[string]Entry),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the cache file location.
func (s *Store) Path() string { return s.path }

// Lookup returns the entry for key if present.
func (s *Store) Lookup(key string) (Entry, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Entry{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[key]
	return entry, ok
}

// Put adds or refreshes an entry, stamping it with the writing stage and the
// current logical validation time. The change is tracked for delta capture.
func (s *Store) Put(key string, value any, stage string) {
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}
	entry := Entry{
		Value:         value,
		Stage:         stage,
		LastValidated: time.Now().UTC(),
	}
	s.mu.Lock()
	s.entries[key] = entry
	s.dirty[key] = entry
	s.mu.Unlock()
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Delta returns a copy of the entries written since the store was opened.
func (s *Store) Delta() Delta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(Delta, len(s.dirty))
	for key, entry := range s.dirty {
		out[key] = entry
	}
	return out
}

// Save persists the full cache to disk atomically.
func (s *Store) Save() error {
	s.mu.RLock()
	data, err := marshalEntries(s.entries)
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	if err := fileutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("persist cache %s: %w", s.path, err)
	}
	return nil
}

// SaveDelta persists only the entries written since open, for later
// reconciliation into the canonical cache by another execution unit.
func (s *Store) SaveDelta(path string) error {
	data, err := marshalEntries(s.Delta())
	if err != nil {
		return err
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("persist cache delta %s: %w", path, err)
	}
	return nil
}

// LoadDelta reads a worker delta file. A missing file yields an empty delta:
// the worker stage failed or had nothing to add.
func LoadDelta(path string) (Delta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Delta{}, nil
		}
		return nil, fmt.Errorf("read cache delta %s: %w", path, err)
	}
	var delta map[string]Entry
	if err := json.Unmarshal(data, &delta); err != nil {
		return nil, fmt.Errorf("parse cache delta %s: %w", path, err)
	}
	return delta, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read cache file %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return nil
	}
	var entries map[string]Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse cache file %s: %w", s.path, err)
	}
	s.entries = entries
	if s.entries == nil {
		s.entries = make(map[string]Entry)
	}
	s.logger.Debug("cache loaded",
		logging.Int("entry_count", len(s.entries)),
		logging.String("path", s.path))
	return nil
}

func marshalEntries(entries map[string]Entry) ([]byte, error) {
	// Deterministic output keeps cache files diffable.
	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	ordered := make(map[string]Entry, len(entries))
	for _, key := range keys {
		ordered[key] = entries[key]
	}
	data, err := json.MarshalIndent(ordered, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal cache: %w", err)
	}
	return data, nil
}
