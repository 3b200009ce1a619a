package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// MemoryStore is a mutex-guarded in-process implementation of Store.
// It backs tests and the STORE_DRIVER=memory development mode; production
// always runs on Redis.
type MemoryStore struct {
	mu    sync.Mutex
	nodes map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nodes: make(map[string][]byte)}
}

func (s *MemoryStore) Get(ctx context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	val, ok := s.nodes[path]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (s *MemoryStore) Put(ctx context.Context, path string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value == nil {
		delete(s.nodes, path)
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store encode %s: %w", path, err)
	}
	s.nodes[path] = data
	return nil
}

func (s *MemoryStore) PutIfAbsent(ctx context.Context, path string, value any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[path]; ok {
		return false, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("store encode %s: %w", path, err)
	}
	s.nodes[path] = data
	return true, nil
}

func (s *MemoryStore) Children(ctx context.Context, path string) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := path + "/"
	children := map[string][]byte{}
	for key, val := range s.nodes {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := strings.TrimPrefix(key, prefix)
		if strings.Contains(rest, "/") {
			continue
		}
		out := make([]byte, len(val))
		copy(out, val)
		children[rest] = out
	}
	return children, nil
}

func (s *MemoryStore) Transaction(ctx context.Context, path string, fn TxFunc) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.nodes[path]
	next, commit := fn(current)
	if !commit {
		return current, nil
	}
	if next == nil {
		delete(s.nodes, path)
		return nil, nil
	}
	data, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("store encode %s: %w", path, err)
	}
	s.nodes[path] = data
	return data, nil
}
