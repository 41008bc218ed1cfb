package workflows

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProjectStateMachine(t *testing.T) {
	sm := NewProjectStateMachine()

	assert.True(t, sm.CanTransition("funding", "in-progress"))
	assert.True(t, sm.CanTransition("funding", "failed"))
	assert.True(t, sm.CanTransition("in-progress", "completed"))
	assert.False(t, sm.CanTransition("funding", "completed"))
	assert.False(t, sm.CanTransition("completed", "funding"))
	assert.False(t, sm.CanTransition("unknown", "funding"))

	assert.True(t, sm.IsTerminal("completed"))
	assert.True(t, sm.IsTerminal("failed"))
	assert.False(t, sm.IsTerminal("funding"))
}

func TestMilestoneStateMachine(t *testing.T) {
	sm := NewMilestoneStateMachine()

	assert.NoError(t, sm.Transition("pending", "submitted"))
	assert.NoError(t, sm.Transition("submitted", "pending"))
	assert.NoError(t, sm.Transition("submitted", "completed"))

	err := sm.Transition("pending", "completed")
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Contains(t, err.Error(), "pending -> completed")
}

func TestApplicationStateMachine(t *testing.T) {
	sm := NewApplicationStateMachine()

	assert.ElementsMatch(t, []string{"approved", "rejected"}, sm.GetAllowedTransitions("pending"))
	assert.Empty(t, sm.GetAllowedTransitions("approved"))
	assert.Empty(t, sm.GetAllowedTransitions("missing"))
	assert.False(t, sm.CanTransition("rejected", "approved"))
}
