package db

import (
	"context"
	"time"
)

// WarningStore defines the interface for reconciliation warning journal operations.
// Both the in-memory MemoryDB and postgres.DB implement this interface.
type WarningStore interface {
	InsertWarning(ctx context.Context, warning *Warning) error
	GetWarnings(ctx context.Context, includeResolved bool) ([]Warning, error)
	ResolveWarning(ctx context.Context, id string, resolvedAt time.Time) error
}
