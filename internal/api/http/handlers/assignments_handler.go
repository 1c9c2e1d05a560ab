package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-platform/internal/api/dto"
	"github.com/spec-kit/ticket-platform/internal/service"
	"github.com/spec-kit/ticket-platform/pkg/util"
)

// AssignmentsHandler serves admin assignment endpoints.
type AssignmentsHandler struct {
	service *service.AssignmentService
}

// NewAssignmentsHandler constructs handler.
func NewAssignmentsHandler(assignmentService *service.AssignmentService) *AssignmentsHandler {
	return &AssignmentsHandler{service: assignmentService}
}

// Assign POST /admin/tickets/:id/assign.
func (h *AssignmentsHandler) Assign(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	tenantID, err := resolveTenantID(c, principal)
	if err != nil {
		return err
	}

	var req dto.AssignTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.AssignToUserID) == "" {
		return util.NewValidationError("assign_to_user_id required", nil)
	}

	outcome, err := h.service.Reassign(c.UserContext(), service.ReassignInput{
		TicketID:         c.Params("id"),
		TenantID:         tenantID,
		AssignToUserID:   req.AssignToUserID,
		AssignedByUserID: principal.User.ID,
		Notes:            req.Notes,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": assignOutcomeResponse(outcome)})
}

// AutoAssign POST /admin/tickets/:id/auto-assign.
func (h *AssignmentsHandler) AutoAssign(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	tenantID, err := resolveTenantID(c, principal)
	if err != nil {
		return err
	}

	actorID := principal.User.ID
	outcome, err := h.service.AutoAssign(c.UserContext(), c.Params("id"), tenantID, &actorID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": assignOutcomeResponse(outcome)})
}

func assignOutcomeResponse(outcome *service.AssignOutcome) dto.AssignOutcomeResponse {
	resp := dto.AssignOutcomeResponse{
		Assigned:     outcome.Assigned(),
		SLAMinutes:   outcome.SLAMinutes,
		TimerStarted: outcome.TimerStarted,
		Notified:     outcome.Notified,
	}
	if outcome.Assignment != nil {
		assignment := assignmentResponse(outcome.Assignment)
		resp.Assignment = &assignment
	}
	return resp
}
