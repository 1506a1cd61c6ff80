package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/i474232898/weather-tracker/internal/weather"
)

var (
	// ErrNotFound is returned when no data is available for a given location.
	ErrNotFound = errors.New("no weather data for location")
)

// MemoryStore is a concurrency-safe in-memory weather cache with one record per location.
// It can be snapshotted to a JSON file so the cache survives restarts.
type MemoryStore struct {
	mu sync.RWMutex

	// key: normalized location, value: last written record
	data map[string]weather.Record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]weather.Record),
	}
}

// Upsert replaces the record stored for key. Last write wins.
func (s *MemoryStore) Upsert(key string, record weather.Record) {
	k := weather.NormalizeKey(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[k] = record.Clone()
}

// Lookup returns the record stored for key.
func (s *MemoryStore) Lookup(key string) (weather.Record, bool) {
	k := weather.NormalizeKey(key)

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[k]
	return rec.Clone(), ok
}

// Len returns the number of cached locations.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// LoadFile merges a snapshot written by SaveFile. A missing file is not an error.
func (s *MemoryStore) LoadFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read cache snapshot: %w", err)
	}

	var snapshot map[string]weather.Record
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return 0, fmt.Errorf("parse cache snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, rec := range snapshot {
		s.data[weather.NormalizeKey(k)] = rec
	}
	return len(snapshot), nil
}

// SaveFile writes the whole cache to path, replacing it atomically.
func (s *MemoryStore) SaveFile(path string) error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.data, "", "  ")
	s.mu.RUnlock()

	if err != nil {
		return fmt.Errorf("marshal cache snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create cache snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write cache snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cache snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace cache snapshot: %w", err)
	}
	return nil
}
