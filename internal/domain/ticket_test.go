package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTo(t *testing.T) {
	cases := []struct {
		from    TicketStatus
		to      TicketStatus
		allowed bool
	}{
		{TicketStatusQueued, TicketStatusAssigned, true},
		{TicketStatusQueued, TicketStatusIncomplete, true},
		{TicketStatusQueued, TicketStatusDone, false},
		{TicketStatusAssigned, TicketStatusInProgress, true},
		{TicketStatusAssigned, TicketStatusProcessed, true},
		{TicketStatusAssigned, TicketStatusQueued, false},
		{TicketStatusInProgress, TicketStatusAssigned, true},
		{TicketStatusInProgress, TicketStatusProcessed, true},
		{TicketStatusProcessed, TicketStatusInProgress, true},
		{TicketStatusProcessed, TicketStatusDone, true},
		{TicketStatusProcessed, TicketStatusAssigned, false},
		{TicketStatusDone, TicketStatusInProgress, false},
		{TicketStatusIncomplete, TicketStatusQueued, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, TicketStatusDone.IsTerminal())
	assert.True(t, TicketStatusIncomplete.IsTerminal())
	assert.False(t, TicketStatusQueued.IsTerminal())
	assert.False(t, TicketStatusProcessed.IsTerminal())
}

func TestSLAActive(t *testing.T) {
	assert.True(t, TicketStatusAssigned.SLAActive())
	assert.True(t, TicketStatusInProgress.SLAActive())
	assert.False(t, TicketStatusQueued.SLAActive())
	assert.False(t, TicketStatusProcessed.SLAActive())
	assert.False(t, TicketStatusDone.SLAActive())
}

func TestDisplayTitle(t *testing.T) {
	title := "VPN outage"
	assert.Equal(t, "VPN outage", (&Ticket{Title: &title}).DisplayTitle())
	assert.Equal(t, "Untitled", (&Ticket{}).DisplayTitle())
	empty := ""
	assert.Equal(t, "Untitled", (&Ticket{Title: &empty}).DisplayTitle())
}
