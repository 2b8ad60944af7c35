package directory

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Memory is an in-process Directory. Safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]string // name -> endpoint
}

// NewMemory creates an empty in-memory directory
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]string),
	}
}

// Register adds or replaces a name
func (m *Memory) Register(_ context.Context, name, endpoint string) error {
	if name == "" {
		return fmt.Errorf("register: empty name")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[name] = endpoint
	return nil
}

// Remove deletes a name. Removing an unknown name is not an error.
func (m *Memory) Remove(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, name)
	return nil
}

func (m *Memory) Lookup(_ context.Context, name string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	endpoint, ok := m.entries[name]
	if !ok {
		return "", fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return endpoint, nil
}

func (m *Memory) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
