package store

import (
	"context"
	"encoding/json"
	"sync"
)

// Memory is an in-process store. Records are lost on exit.
type Memory struct {
	mu      sync.RWMutex
	records map[string]Document
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]Document)}
}

func (m *Memory) Get(ctx context.Context, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyDocument(doc)
}

func (m *Memory) MergePatch(ctx context.Context, id string, patch map[string]any) error {
	normalized, err := normalize(patch)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[id] = Merge(m.records[id], normalized)
	return nil
}

func (m *Memory) Close() error { return nil }

func copyDocument(doc Document) (Document, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out Document
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
