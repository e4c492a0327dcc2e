package projects

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryCatalog keeps projects in process. TryTransition runs under the
// catalog mutex, which makes it a real compare-and-swap for every caller
// sharing the instance.
type MemoryCatalog struct {
	mu       sync.RWMutex
	projects map[string]*Project
	now      func() time.Time
}

// NewMemoryCatalog creates a catalog pre-populated with copies of projects
func NewMemoryCatalog(projects ...*Project) *MemoryCatalog {
	c := &MemoryCatalog{
		projects: make(map[string]*Project, len(projects)),
		now:      time.Now,
	}
	for _, p := range projects {
		c.projects[p.ID] = p.Clone()
	}
	return c
}

func (c *MemoryCatalog) Fetch(ctx context.Context, id string) (*Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.projects[id]
	if !ok {
		return nil, ErrProjectNotFound
	}
	return p.Clone(), nil
}

func (c *MemoryCatalog) TryTransition(ctx context.Context, id string, expected, next Status, fx SideEffects) (*Project, error) {
	if err := checkTransition(expected, next); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.projects[id]
	if !ok {
		return nil, ErrProjectNotFound
	}
	if p.Status != expected {
		return nil, ErrPreconditionFailed
	}

	p.Status = next
	fx.apply(p)
	p.UpdatedAt = c.now().UTC()
	return p.Clone(), nil
}

func (c *MemoryCatalog) List(ctx context.Context, filter ListFilter) ([]*Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	out := make([]*Project, 0, len(c.projects))
	for _, p := range c.projects {
		if filter.matches(p) {
			out = append(out, p.Clone())
		}
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return filter.page(out), nil
}

func (c *MemoryCatalog) Atomic() bool { return true }

// Seed inserts projects that are not already present. Existing entries are
// left untouched so a restart never resurrects a sold listing.
func (c *MemoryCatalog) Seed(ctx context.Context, projects []*Project) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	inserted := 0
	now := c.now().UTC()
	for _, p := range projects {
		if err := validateSeed(p); err != nil {
			return inserted, err
		}
		if _, exists := c.projects[p.ID]; exists {
			continue
		}
		cp := p.Clone()
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = now
		}
		cp.UpdatedAt = now
		c.projects[cp.ID] = cp
		inserted++
	}
	return inserted, nil
}

var (
	_ Gateway = (*MemoryCatalog)(nil)
	_ Seeder  = (*MemoryCatalog)(nil)
)
