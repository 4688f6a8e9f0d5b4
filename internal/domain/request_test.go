package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from    RequestState
		to      RequestState
		allowed bool
	}{
		{RequestStatePending, RequestStateAssigned, true},
		{RequestStatePending, RequestStateCancelled, true},
		{RequestStatePending, RequestStateInProgress, false},
		{RequestStatePending, RequestStateCompleted, false},
		{RequestStateAssigned, RequestStateInProgress, true},
		{RequestStateAssigned, RequestStateCompleted, true},
		{RequestStateAssigned, RequestStateCancelled, true},
		{RequestStateAssigned, RequestStatePending, false},
		{RequestStateInProgress, RequestStateCompleted, true},
		{RequestStateInProgress, RequestStateCancelled, false},
		{RequestStateInProgress, RequestStatePending, false},
		{RequestStateCompleted, RequestStatePending, false},
		{RequestStateCompleted, RequestStateInProgress, false},
		{RequestStateCancelled, RequestStatePending, false},
		{RequestStateCancelled, RequestStateAssigned, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, CanTransition(tc.from, tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestTerminalStatesHaveNoSuccessors(t *testing.T) {
	all := []RequestState{
		RequestStatePending, RequestStateAssigned, RequestStateInProgress,
		RequestStateCompleted, RequestStateCancelled,
	}
	for _, next := range all {
		assert.False(t, CanTransition(RequestStateCompleted, next))
		assert.False(t, CanTransition(RequestStateCancelled, next))
	}
}

func TestIsOpen(t *testing.T) {
	open := []RequestState{RequestStatePending, RequestStateAssigned, RequestStateInProgress}
	for _, state := range open {
		r := MaintenanceRequest{State: state}
		assert.True(t, r.IsOpen(), string(state))
		assert.False(t, r.IsTerminal(), string(state))
	}
	for _, state := range []RequestState{RequestStateCompleted, RequestStateCancelled} {
		r := MaintenanceRequest{State: state}
		assert.False(t, r.IsOpen(), string(state))
		assert.True(t, r.IsTerminal(), string(state))
	}
}

func TestCanCancel(t *testing.T) {
	assert.True(t, (&MaintenanceRequest{State: RequestStatePending}).CanCancel())
	assert.True(t, (&MaintenanceRequest{State: RequestStateAssigned}).CanCancel())
	assert.False(t, (&MaintenanceRequest{State: RequestStateInProgress}).CanCancel())
	assert.False(t, (&MaintenanceRequest{State: RequestStateCompleted}).CanCancel())
	assert.False(t, (&MaintenanceRequest{State: RequestStateCancelled}).CanCancel())
}

func TestCanSign(t *testing.T) {
	r := &MaintenanceRequest{State: RequestStateCompleted}
	assert.True(t, r.CanSign())

	sig := "signed"
	r.TenantSignature = &sig
	assert.False(t, r.CanSign(), "already signed")

	assert.False(t, (&MaintenanceRequest{State: RequestStateInProgress}).CanSign())
}

func TestValidateContent(t *testing.T) {
	require.Nil(t, ValidateContent("Leaky tap", "The kitchen tap drips constantly"))

	problems := ValidateContent("Tap", "The kitchen tap drips constantly")
	require.NotNil(t, problems)
	assert.Contains(t, problems, "title")

	problems = ValidateContent("Leaky tap", "short")
	require.NotNil(t, problems)
	assert.Contains(t, problems, "description")

	// Whitespace padding must not count toward the minimum.
	problems = ValidateContent("   a   ", "          ")
	require.NotNil(t, problems)
}

func TestValidEnums(t *testing.T) {
	assert.True(t, ValidPriority(PriorityEmergency))
	assert.False(t, ValidPriority("URGENT"))

	assert.True(t, ValidCategory(CategoryPlumbing))
	assert.False(t, ValidCategory("PAINTING"))

	assert.True(t, ValidSlot(SlotAnytime))
	assert.False(t, ValidSlot("NIGHT"))
}
