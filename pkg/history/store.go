package history

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no record exists for a run ID.
var ErrNotFound = errors.New("history: record not found")

// Store persists run records. Implementations must be safe for concurrent
// use.
type Store interface {
	// Save persists a record, replacing any existing record for the run.
	Save(ctx context.Context, rec Record) error

	// Get returns the record for a run ID, or ErrNotFound.
	Get(ctx context.Context, runID string) (Record, error)

	// Recent returns up to n records, newest first.
	Recent(ctx context.Context, n int) ([]Record, error)

	// Delete removes the record for a run ID. A missing record is not an
	// error.
	Delete(ctx context.Context, runID string) error

	// Prune removes the oldest records beyond keep and reports how many
	// were removed.
	Prune(ctx context.Context, keep int) (int, error)

	// Close releases store resources.
	Close() error
}
