package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-platform/internal/domain"
)

func newTeamService(s *memStore) *TeamService {
	return NewTeamService(&fakeUsers{s: s}, &fakeLedger{s: s}, zap.NewNop())
}

func TestRosterReportsActiveLoad(t *testing.T) {
	s := newMemStore()
	manager := s.addUser("manager", "tenant-a", domain.UserRoleManager, nil)
	busy := s.addUser("busy", "tenant-a", domain.UserRoleEmployee, &manager.ID)
	idle := s.addUser("idle", "tenant-a", domain.UserRoleEmployee, &manager.ID)
	s.addUser("outside", "tenant-a", domain.UserRoleEmployee, nil)

	active := s.addTicket("t1", "tenant-a", domain.TicketStatusInProgress)
	s.setCurrent(active.ID, busy.ID, domain.AssignmentTypeAutoAssigned)
	closed := s.addTicket("t2", "tenant-a", domain.TicketStatusDone)
	s.setCurrent(closed.ID, busy.ID, domain.AssignmentTypeAutoAssigned)

	svc := newTeamService(s)
	roster, err := svc.Roster(context.Background(), manager.ID)
	require.NoError(t, err)
	require.Len(t, roster, 2)

	loads := map[string]int{}
	for _, member := range roster {
		loads[member.User.ID] = member.ActiveTickets
	}
	// Only the in-progress ticket counts toward load.
	assert.Equal(t, 1, loads[busy.ID])
	assert.Equal(t, 0, loads[idle.ID])
}

func TestManagerChainWalksUpward(t *testing.T) {
	s := newMemStore()
	director := s.addUser("director", "tenant-a", domain.UserRoleManager, nil)
	manager := s.addUser("manager", "tenant-a", domain.UserRoleManager, &director.ID)
	employee := s.addUser("employee", "tenant-a", domain.UserRoleEmployee, &manager.ID)

	svc := newTeamService(s)
	chain, err := svc.ManagerChain(context.Background(), employee.ID)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, manager.ID, chain[0].ID)
	assert.Equal(t, director.ID, chain[1].ID)
}

func TestManagerChainStopsOnCycle(t *testing.T) {
	s := newMemStore()
	alpha := s.addUser("alpha", "tenant-a", domain.UserRoleManager, nil)
	beta := s.addUser("beta", "tenant-a", domain.UserRoleManager, &alpha.ID)
	alpha.ManagerID = &beta.ID
	employee := s.addUser("employee", "tenant-a", domain.UserRoleEmployee, &alpha.ID)

	svc := newTeamService(s)
	chain, err := svc.ManagerChain(context.Background(), employee.ID)
	require.NoError(t, err)
	// alpha then beta, then the cycle back to alpha stops the walk.
	require.Len(t, chain, 2)
}

func TestManagerChainStopsOnSelfReference(t *testing.T) {
	s := newMemStore()
	owner := s.addUser("owner", "tenant-a", domain.UserRoleManager, nil)
	owner.ManagerID = &owner.ID

	svc := newTeamService(s)
	chain, err := svc.ManagerChain(context.Background(), owner.ID)
	require.NoError(t, err)
	assert.Empty(t, chain)
}

func TestManagerChainUnknownUser(t *testing.T) {
	s := newMemStore()
	svc := newTeamService(s)
	_, err := svc.ManagerChain(context.Background(), "missing")
	require.Error(t, err)
}
