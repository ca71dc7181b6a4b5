package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File is a store backed by a single JSON file holding every record.
type File struct {
	mu       sync.RWMutex
	filePath string
	records  map[string]Document
}

// NewFile opens the file store at path, creating it on first write.
// If path is empty, defaults to ~/.launchdeck/records.json
func NewFile(path string) (*File, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home dir: %w", err)
		}
		path = filepath.Join(home, ".launchdeck", "records.json")
	}

	s := &File{
		filePath: path,
		records:  make(map[string]Document),
	}
	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	return s, nil
}

func (s *File) Get(ctx context.Context, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyDocument(doc)
}

func (s *File) MergePatch(ctx context.Context, id string, patch map[string]any) error {
	normalized, err := normalize(patch)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	previous, existed := s.records[id]
	if existed {
		if previous, err = copyDocument(previous); err != nil {
			return err
		}
	}
	s.records[id] = Merge(s.records[id], normalized)

	if err := s.persist(); err != nil {
		if existed {
			s.records[id] = previous
		} else {
			delete(s.records, id)
		}
		return fmt.Errorf("failed to persist record %s: %w", id, err)
	}
	return nil
}

func (s *File) Close() error { return nil }

func (s *File) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, &s.records)
}

func (s *File) persist() error {
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, s.filePath)
}
