package db

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryDB is a process-local WarningStore used when no database is configured
type MemoryDB struct {
	mu       sync.Mutex
	warnings map[string]Warning
}

// NewMemoryDB creates an empty journal
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{warnings: make(map[string]Warning)}
}

// InsertWarning stores a warning
func (m *MemoryDB) InsertWarning(ctx context.Context, warning *Warning) error {
	if warning.ID == "" {
		return fmt.Errorf("failed to insert warning: missing id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.warnings[warning.ID]; exists {
		return fmt.Errorf("failed to insert warning: duplicate id %s", warning.ID)
	}
	w := *warning
	w.Attempted = append([]string(nil), warning.Attempted...)
	m.warnings[w.ID] = w
	return nil
}

// GetWarnings returns warnings oldest first
func (m *MemoryDB) GetWarnings(ctx context.Context, includeResolved bool) ([]Warning, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	warnings := make([]Warning, 0, len(m.warnings))
	for _, w := range m.warnings {
		if w.Resolved() && !includeResolved {
			continue
		}
		warnings = append(warnings, w)
	}
	sort.Slice(warnings, func(i, j int) bool {
		if warnings[i].CreatedAt.Equal(warnings[j].CreatedAt) {
			return warnings[i].ID < warnings[j].ID
		}
		return warnings[i].CreatedAt.Before(warnings[j].CreatedAt)
	})
	return warnings, nil
}

// ResolveWarning marks a warning as resolved
func (m *MemoryDB) ResolveWarning(ctx context.Context, id string, resolvedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.warnings[id]
	if !ok {
		return fmt.Errorf("failed to resolve warning %s: %w", id, ErrWarningNotFound)
	}
	w.ResolvedAt = &resolvedAt
	m.warnings[id] = w
	return nil
}
