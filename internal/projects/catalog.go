package projects

import (
	"context"
	"errors"
	"fmt"

	"aquanexus/marketplace-backend/pkg/workflows"
)

var (
	ErrProjectNotFound    = errors.New("project not found")
	ErrPreconditionFailed = errors.New("project status precondition failed")
	ErrInvalidTransition  = errors.New("invalid status transition")
)

// Gateway is the project catalog contract used by the settlement engine
type Gateway interface {
	// Fetch returns a snapshot of the project or ErrProjectNotFound
	Fetch(ctx context.Context, id string) (*Project, error)

	// TryTransition moves the project from expected to next in a single
	// conditional write. It returns ErrPreconditionFailed when the stored
	// status is not expected, ErrProjectNotFound when the id is unknown.
	TryTransition(ctx context.Context, id string, expected, next Status, fx SideEffects) (*Project, error)

	List(ctx context.Context, filter ListFilter) ([]*Project, error)

	// Atomic reports whether TryTransition is a real compare-and-swap
	// against shared storage. Callers must serialize per project otherwise.
	Atomic() bool
}

// Seeder is implemented by catalogs that can be bulk loaded
type Seeder interface {
	Seed(ctx context.Context, projects []*Project) (int, error)
}

var transitions = workflows.NewStateMachine()

func checkTransition(expected, next Status) error {
	if !transitions.CanTransition(string(expected), string(next)) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, expected, next)
	}
	return nil
}

func validateSeed(p *Project) error {
	if p.ID == "" {
		return errors.New("seed project id is required")
	}
	if p.Status == "" {
		p.Status = Status(transitions.Initial())
	}
	if !transitions.IsKnown(string(p.Status)) {
		return fmt.Errorf("seed project %s: unknown status %q", p.ID, p.Status)
	}
	if p.PricePerCredit.IsNegative() {
		return fmt.Errorf("seed project %s: negative price", p.ID)
	}
	if p.ImpactQuantity.IsNegative() {
		return fmt.Errorf("seed project %s: negative impact quantity", p.ID)
	}
	return nil
}
