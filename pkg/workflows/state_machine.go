package workflows

// Project listing statuses
const (
	StatusAvailable = "Available"
	StatusSold      = "Sold"
)

// StateMachine enforces project status transitions
type StateMachine struct {
	initial            string
	allowedTransitions map[string][]string
}

// NewStateMachine creates a new state machine with allowed transitions.
// A listing starts Available and can only ever move to Sold once.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		initial: StatusAvailable,
		allowedTransitions: map[string][]string{
			StatusAvailable: {StatusSold},
			StatusSold:      {},
		},
	}
}

// Initial returns the status every new listing starts in
func (sm *StateMachine) Initial() string {
	return sm.initial
}

// IsKnown reports whether status is part of the machine
func (sm *StateMachine) IsKnown(status string) bool {
	_, exists := sm.allowedTransitions[status]
	return exists
}

// IsTerminal reports whether no transition leaves status
func (sm *StateMachine) IsTerminal(status string) bool {
	allowed, exists := sm.allowedTransitions[status]
	return exists && len(allowed) == 0
}

// CanTransition checks if a status transition is allowed
func (sm *StateMachine) CanTransition(from, to string) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	for _, allowedTo := range allowed {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// GetAllowedTransitions returns the allowed next statuses for a given status
func (sm *StateMachine) GetAllowedTransitions(from string) []string {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []string{}
	}
	return allowed
}
