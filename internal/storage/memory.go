package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore keeps encoded records in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

func (s *MemoryStore) Load(_ context.Context, key string, dst any) (bool, error) {
	s.mu.RLock()
	data, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *MemoryStore) Commit(_ context.Context, writes map[string]any) error {
	encoded, err := encodeAll(writes)
	if err != nil {
		return err
	}
	s.mu.Lock()
	for key, data := range encoded {
		s.records[key] = data
	}
	s.mu.Unlock()
	return nil
}

func encodeAll(writes map[string]any) (map[string][]byte, error) {
	encoded := make(map[string][]byte, len(writes))
	for key, value := range writes {
		if key == "" {
			return nil, fmt.Errorf("record key required")
		}
		data, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		encoded[key] = data
	}
	return encoded, nil
}
