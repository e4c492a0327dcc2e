package ledger

import (
	"context"
	"errors"
)

var (
	ErrDuplicateRecord = errors.New("settlement already recorded")
	ErrRecordNotFound  = errors.New("settlement record not found")
	ErrInvalidRecord   = errors.New("invalid settlement record")
)

// Store is the append-only settlement ledger
type Store interface {
	// Append persists record. It returns ErrDuplicateRecord when the
	// project or transaction id is already recorded.
	Append(ctx context.Context, record *Record) error

	// HasRecordFor is for diagnostics and reconciliation only
	HasRecordFor(ctx context.Context, projectID string) (bool, error)

	FindByProject(ctx context.Context, projectID string) (*Record, error)
	List(ctx context.Context, filter ListFilter) ([]*Record, error)
}
