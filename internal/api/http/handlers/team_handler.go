package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-platform/internal/api/dto"
	"github.com/spec-kit/ticket-platform/internal/service"
)

// TeamHandler serves manager team views.
type TeamHandler struct {
	service *service.TeamService
}

// NewTeamHandler constructs handler.
func NewTeamHandler(teamService *service.TeamService) *TeamHandler {
	return &TeamHandler{service: teamService}
}

// Roster GET /team.
func (h *TeamHandler) Roster(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}

	members, err := h.service.Roster(c.UserContext(), principal.User.ID)
	if err != nil {
		return err
	}
	items := make([]dto.TeamMemberResponse, 0, len(members))
	for i := range members {
		member := &members[i]
		items = append(items, dto.TeamMemberResponse{
			User:               userResponse(&member.User),
			ActiveTickets:      member.ActiveTickets,
			Capacity:           member.User.Capacity,
			IsAcceptingTickets: member.User.IsAcceptingTickets,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// ManagerChain GET /team/chain/:userId.
func (h *TeamHandler) ManagerChain(c *fiber.Ctx) error {
	if _, err := requirePrincipal(c); err != nil {
		return err
	}

	chain, err := h.service.ManagerChain(c.UserContext(), c.Params("userId"))
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(chain))
	for i := range chain {
		items = append(items, userResponse(&chain[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}
