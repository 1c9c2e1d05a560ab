package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-platform/internal/domain"
	"github.com/spec-kit/ticket-platform/internal/repository"
	"github.com/spec-kit/ticket-platform/pkg/util"
)

// maxChainDepth caps manager-chain walks. The hierarchy is shallow in
// practice; anything deeper indicates corrupted data.
const maxChainDepth = 10

// TeamMember pairs a direct report with their current workload.
type TeamMember struct {
	User          domain.User
	ActiveTickets int
}

// TeamService answers manager-facing questions about the reporting
// hierarchy and team workload.
type TeamService struct {
	users  repository.UserRepository
	ledger repository.AssignmentRepository
	logger *zap.Logger
}

// NewTeamService constructs the service.
func NewTeamService(users repository.UserRepository, ledger repository.AssignmentRepository, logger *zap.Logger) *TeamService {
	return &TeamService{users: users, ledger: ledger, logger: logger}
}

// Roster lists a manager's direct reports with their active ticket
// counts against capacity.
func (s *TeamService) Roster(ctx context.Context, managerID string) ([]TeamMember, error) {
	reports, err := s.users.ListByManager(ctx, managerID)
	if err != nil {
		return nil, util.MapError(err)
	}

	result := make([]TeamMember, 0, len(reports))
	for i := range reports {
		load, err := s.ledger.CountActiveForUser(ctx, reports[i].ID)
		if err != nil {
			return nil, util.MapError(err)
		}
		result = append(result, TeamMember{User: reports[i], ActiveTickets: load})
	}
	return result, nil
}

// ManagerChain walks upward from a user, bottom first. The walk stops
// at a missing manager, a self-reference, a previously visited node or
// the depth cap, so cyclic data cannot hang the caller.
func (s *TeamService) ManagerChain(ctx context.Context, userID string) ([]domain.User, error) {
	current, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewNotFound("user", map[string]any{"user_id": userID})
		}
		return nil, util.MapError(err)
	}

	visited := map[string]bool{current.ID: true}
	var chain []domain.User
	for depth := 0; depth < maxChainDepth; depth++ {
		if current.ManagerID == nil || *current.ManagerID == current.ID {
			return chain, nil
		}
		if visited[*current.ManagerID] {
			s.logger.Warn("manager chain contains a cycle",
				zap.String("user_id", userID),
				zap.String("repeated_id", *current.ManagerID),
			)
			return chain, nil
		}

		manager, err := s.users.GetByID(ctx, *current.ManagerID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				s.logger.Warn("manager chain ends at dangling reference",
					zap.String("user_id", current.ID),
					zap.String("manager_id", *current.ManagerID),
				)
				return chain, nil
			}
			return nil, util.MapError(err)
		}
		visited[manager.ID] = true
		chain = append(chain, *manager)
		current = manager
	}
	s.logger.Warn("manager chain truncated at depth cap", zap.String("user_id", userID))
	return chain, nil
}
