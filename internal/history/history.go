// Package history persists the recently opened captures list to the
// filesystem. Cached packet data is never persisted; only the file paths
// and summary metadata shown by the recent command.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// maxEntries bounds the recents list.
const maxEntries = 10

// Entry records one opened capture.
type Entry struct {
	Path       string    `json:"path"`
	Frames     uint64    `json:"frames"`
	Filter     string    `json:"filter,omitempty"`
	LastOpened time.Time `json:"last_opened"`
}

// Store reads and writes the recents file.
type Store struct {
	path string
}

// NewStore creates a Store backed by the given JSON file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// List returns the recorded entries, most recent first.
// A missing file yields an empty list without error.
func (s *Store) List() ([]Entry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("history: reading %s: %w", s.path, err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("history: parsing %s: %w", s.path, err)
	}
	return entries, nil
}

// Record inserts or refreshes an entry at the front of the list, dropping
// any older entry for the same path and trimming to the size bound.
func (s *Store) Record(e Entry) error {
	entries, err := s.List()
	if err != nil {
		return err
	}

	updated := make([]Entry, 0, len(entries)+1)
	updated = append(updated, e)
	for _, old := range entries {
		if old.Path == e.Path {
			continue
		}
		updated = append(updated, old)
	}
	if len(updated) > maxEntries {
		updated = updated[:maxEntries]
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("history: creating directory: %w", err)
	}
	data, err := json.MarshalIndent(updated, "", "  ")
	if err != nil {
		return fmt.Errorf("history: marshaling: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("history: writing %s: %w", s.path, err)
	}
	return nil
}
