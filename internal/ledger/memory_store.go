package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process ledger ordered by append time
type MemoryStore struct {
	mu            sync.RWMutex
	records       []*Record
	byProject     map[string]int
	byTransaction map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byProject:     make(map[string]int),
		byTransaction: make(map[string]int),
	}
}

func (s *MemoryStore) Append(ctx context.Context, record *Record) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byProject[record.ProjectID]; ok {
		return ErrDuplicateRecord
	}
	if _, ok := s.byTransaction[record.TransactionID]; ok {
		return ErrDuplicateRecord
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	stored := record.Clone()
	s.records = append(s.records, stored)
	idx := len(s.records) - 1
	s.byProject[stored.ProjectID] = idx
	s.byTransaction[stored.TransactionID] = idx
	return nil
}

func (s *MemoryStore) HasRecordFor(ctx context.Context, projectID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byProject[projectID]
	return ok, nil
}

func (s *MemoryStore) FindByProject(ctx context.Context, projectID string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byProject[projectID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return s.records[idx].Clone(), nil
}

func (s *MemoryStore) List(ctx context.Context, filter ListFilter) ([]*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Record, 0, len(s.records))
	skipped := 0
	for _, r := range s.records {
		if filter.ProjectID != "" && r.ProjectID != filter.ProjectID {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		out = append(out, r.Clone())
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// Len returns the number of stored records
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

var _ Store = (*MemoryStore)(nil)
