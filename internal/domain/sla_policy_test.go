package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeadlinesWithResponseWindow(t *testing.T) {
	response := 60
	policy := SLAPolicy{
		Priority:              PriorityEmergency,
		ResponseTimeMinutes:   &response,
		ResolutionTimeMinutes: 240,
	}
	createdAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	responseDue, resolutionDue := policy.Deadlines(createdAt)
	require.NotNil(t, responseDue)
	assert.Equal(t, createdAt.Add(time.Hour), *responseDue)
	assert.Equal(t, createdAt.Add(4*time.Hour), resolutionDue)
}

func TestDeadlinesWithoutResponseWindow(t *testing.T) {
	policy := SLAPolicy{
		Priority:              PriorityLow,
		ResolutionTimeMinutes: 4320,
	}
	createdAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	responseDue, resolutionDue := policy.Deadlines(createdAt)
	assert.Nil(t, responseDue)
	assert.Equal(t, createdAt.Add(72*time.Hour), resolutionDue)
}

func TestDeadlinesAreAbsolute(t *testing.T) {
	// The same instant expressed in different zones must produce the same
	// due instants.
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	policy := SLAPolicy{Priority: PriorityHigh, ResolutionTimeMinutes: 720}
	createdUTC := time.Date(2025, 11, 2, 3, 30, 0, 0, time.UTC)
	createdNY := createdUTC.In(loc)

	_, dueFromUTC := policy.Deadlines(createdUTC)
	_, dueFromNY := policy.Deadlines(createdNY)
	assert.True(t, dueFromUTC.Equal(dueFromNY))
}

func TestScoped(t *testing.T) {
	propertyID := "prop-1"
	assert.True(t, SLAPolicy{PropertyID: &propertyID}.Scoped())
	assert.False(t, SLAPolicy{}.Scoped())
}
