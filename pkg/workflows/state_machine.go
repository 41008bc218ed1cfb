package workflows

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a status change is not allowed
var ErrInvalidTransition = errors.New("invalid status transition")

// StateMachine enforces status transitions
type StateMachine struct {
	allowedTransitions map[string][]string
}

// NewStateMachine creates a state machine from an explicit transition table
func NewStateMachine(transitions map[string][]string) *StateMachine {
	return &StateMachine{allowedTransitions: transitions}
}

// NewProjectStateMachine returns the lifecycle of a crowdfunded project
func NewProjectStateMachine() *StateMachine {
	return NewStateMachine(map[string][]string{
		"funding":     {"in-progress", "failed"},
		"in-progress": {"completed", "failed"},
		"completed":   {},
		"failed":      {},
	})
}

// NewMilestoneStateMachine returns the lifecycle of a funding tranche.
// A rejected proof sends the milestone back to pending.
func NewMilestoneStateMachine() *StateMachine {
	return NewStateMachine(map[string][]string{
		"pending":   {"submitted"},
		"submitted": {"completed", "pending"},
		"completed": {},
	})
}

// NewApplicationStateMachine returns the farmer vetting review flow
func NewApplicationStateMachine() *StateMachine {
	return NewStateMachine(map[string][]string{
		"pending":  {"approved", "rejected"},
		"approved": {},
		"rejected": {},
	})
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

// Transition returns ErrInvalidTransition wrapped with both statuses when the move is not allowed
func (sm *StateMachine) Transition(from, to string) error {
	if !sm.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// GetAllowedTransitions returns the allowed next statuses for a given status
func (sm *StateMachine) GetAllowedTransitions(from string) []string {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []string{}
	}
	return allowed
}

// IsTerminal reports whether no transition leaves the status
func (sm *StateMachine) IsTerminal(status string) bool {
	return len(sm.GetAllowedTransitions(status)) == 0
}
