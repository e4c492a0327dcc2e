package settlement

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"aquanexus/marketplace-backend/internal/ledger"
	"aquanexus/marketplace-backend/internal/projects"

	"github.com/shopspring/decimal"
)

func newProject(id, price, quantity string) *projects.Project {
	return &projects.Project{
		ID:             id,
		Name:           "Rancho " + id,
		Region:         "Guanajuato",
		Status:         projects.StatusAvailable,
		PricePerCredit: decimal.RequireFromString(price),
		ImpactQuantity: decimal.RequireFromString(quantity),
	}
}

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// racyCatalog reads then writes without a conditional guard, so it is
// only correct when callers serialize per project
type racyCatalog struct {
	mu       sync.Mutex
	projects map[string]*projects.Project
}

func newRacyCatalog(ps ...*projects.Project) *racyCatalog {
	c := &racyCatalog{projects: make(map[string]*projects.Project)}
	for _, p := range ps {
		c.projects[p.ID] = p.Clone()
	}
	return c
}

func (c *racyCatalog) Fetch(ctx context.Context, id string) (*projects.Project, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.projects[id]
	if !ok {
		return nil, projects.ErrProjectNotFound
	}
	return p.Clone(), nil
}

func (c *racyCatalog) TryTransition(ctx context.Context, id string, expected, next projects.Status, fx projects.SideEffects) (*projects.Project, error) {
	current, err := c.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != expected {
		return nil, projects.ErrPreconditionFailed
	}
	runtime.Gosched()

	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.projects[id]
	p.Status = next
	if fx.VerifiedByAutomatedCheck {
		p.VerifiedByAutomatedCheck = true
	}
	return p.Clone(), nil
}

func (c *racyCatalog) List(ctx context.Context, filter projects.ListFilter) ([]*projects.Project, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*projects.Project
	for _, p := range c.projects {
		if filter.Status == nil || p.Status == *filter.Status {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

func (c *racyCatalog) Atomic() bool { return false }

// stubCatalog returns fixed errors, or blocks until the context ends
type stubCatalog struct {
	fetchErr      error
	transitionErr error
	block         bool
	project       *projects.Project
}

func (c *stubCatalog) Fetch(ctx context.Context, id string) (*projects.Project, error) {
	if c.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if c.fetchErr != nil {
		return nil, c.fetchErr
	}
	return c.project.Clone(), nil
}

func (c *stubCatalog) TryTransition(ctx context.Context, id string, expected, next projects.Status, fx projects.SideEffects) (*projects.Project, error) {
	if c.transitionErr != nil {
		return nil, c.transitionErr
	}
	p := c.project.Clone()
	p.Status = next
	return p, nil
}

func (c *stubCatalog) List(ctx context.Context, filter projects.ListFilter) ([]*projects.Project, error) {
	return nil, nil
}

func (c *stubCatalog) Atomic() bool { return true }

// flakyStore fails the first failures appends. When landFirst is set the
// first append is stored before its error is returned.
type flakyStore struct {
	*ledger.MemoryStore
	failures  int32
	landFirst bool
	err       error
	appends   atomic.Int32
}

func newFlakyStore(failures int32, err error) *flakyStore {
	return &flakyStore{MemoryStore: ledger.NewMemoryStore(), failures: failures, err: err}
}

func (s *flakyStore) Append(ctx context.Context, record *ledger.Record) error {
	n := s.appends.Add(1)
	if n > s.failures {
		return s.MemoryStore.Append(ctx, record)
	}
	if n == 1 && s.landFirst {
		if err := s.MemoryStore.Append(ctx, record); err != nil {
			return err
		}
	}
	return s.err
}

var errStoreDown = errors.New("connection refused")

type recordingSink struct {
	mu      sync.Mutex
	records []*ledger.Record
}

func (s *recordingSink) Enqueue(record *ledger.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
}

func (s *recordingSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}
