package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-platform/internal/api/dto"
	"github.com/spec-kit/ticket-platform/internal/auth"
	"github.com/spec-kit/ticket-platform/internal/domain"
	"github.com/spec-kit/ticket-platform/internal/repository"
	"github.com/spec-kit/ticket-platform/internal/service"
	"github.com/spec-kit/ticket-platform/pkg/util"
)

// TicketsHandler serves intake, lifecycle and review endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreatePublic POST /public/tenants/:slug/tickets.
func (h *TicketsHandler) CreatePublic(c *fiber.Ctx) error {
	var req dto.CreatePublicTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.CreatePublicTicket(c.UserContext(), service.PublicTicketInput{
		TenantSlug:  c.Params("slug"),
		CategoryID:  req.CategoryID,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Phone:       req.Phone,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// ListMine GET /tickets.
func (h *TicketsHandler) ListMine(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListForAssignee(c.UserContext(), principal.User.ID, parseStatuses(c.Query("status")))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummaries(tickets)})
}

// ListTenant GET /admin/tickets.
func (h *TicketsHandler) ListTenant(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	tenantID, err := resolveTenantID(c, principal)
	if err != nil {
		return err
	}

	filter := repository.TicketFilter{
		Statuses: parseStatuses(c.Query("status")),
		Limit:    parseInt(c.Query("page_size"), 20),
	}
	filter.Offset = (parseInt(c.Query("page"), 1) - 1) * filter.Limit
	if categoryStr := c.Query("category_id"); categoryStr != "" {
		if categoryID, convErr := strconv.ParseInt(categoryStr, 10, 64); convErr == nil {
			filter.CategoryID = &categoryID
		}
	}
	if search := c.Query("search"); search != "" {
		filter.SearchTerm = &search
	}

	tickets, err := h.service.ListForTenant(c.UserContext(), tenantID, filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummaries(tickets)})
}

// GetDetail GET /admin/tickets/:id.
func (h *TicketsHandler) GetDetail(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	tenantID, err := resolveTenantID(c, principal)
	if err != nil {
		return err
	}

	detail, err := h.service.GetDetail(c.UserContext(), tenantID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(detail)})
}

// SLARemaining GET /tickets/:id/sla.
func (h *TicketsHandler) SLARemaining(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	tenantID, err := resolveTenantID(c, principal)
	if err != nil {
		return err
	}

	ticketID := c.Params("id")
	remaining, active, err := h.service.SLARemaining(c.UserContext(), tenantID, ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SLARemainingResponse{
		TicketID:         ticketID,
		TimerActive:      active,
		RemainingSeconds: int64(remaining.Seconds()),
	}})
}

// Submit POST /tickets/:id/submit.
func (h *TicketsHandler) Submit(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.SubmitTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Comment) == "" {
		return util.NewValidationError("comment required", nil)
	}

	submission, err := h.service.SubmitForCompletion(c.UserContext(), principal.User, c.Params("id"), req.Comment, req.AttachmentURL)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": submissionResponse(submission)})
}

// Approve POST /tickets/:id/approve.
func (h *TicketsHandler) Approve(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.ReviewTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}

	submission, err := h.service.Approve(c.UserContext(), principal.User, c.Params("id"), req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": submissionResponse(submission)})
}

// Reject POST /tickets/:id/reject.
func (h *TicketsHandler) Reject(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.ReviewTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}

	submission, err := h.service.Reject(c.UserContext(), principal.User, c.Params("id"), req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": submissionResponse(submission)})
}

// AddNote POST /tickets/:id/notes.
func (h *TicketsHandler) AddNote(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.AddNoteRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}

	submission, err := h.service.AddNote(c.UserContext(), principal.User, c.Params("id"), req.Comment)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": submissionResponse(submission)})
}

// Resolve POST /admin/tickets/:id/resolve.
func (h *TicketsHandler) Resolve(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.SubmitTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Comment) == "" {
		return util.NewValidationError("comment required", nil)
	}

	ticket, err := h.service.SubmitAndResolve(c.UserContext(), principal.User, c.Params("id"), req.Comment, req.AttachmentURL)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// Enrich PATCH /admin/tickets/:id/enrichment.
func (h *TicketsHandler) Enrich(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.EnrichTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.UpdateEnrichment(c.UserContext(), principal.User, c.Params("id"), service.EnrichmentInput{
		Title:       req.Title,
		Summary:     req.Summary,
		Translation: req.Translation,
		CategoryID:  req.CategoryID,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// UpdateStatus PATCH /tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	next, ok := parseStatus(req.Status)
	if !ok {
		return util.NewValidationError("unknown status", map[string]any{"status": req.Status})
	}

	ticket, err := h.service.UpdateStatus(c.UserContext(), principal.User, c.Params("id"), next)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

func requirePrincipal(c *fiber.Ctx) (*auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return nil, util.NewUnauthorized("authentication required")
	}
	return principal, nil
}

// resolveTenantID scopes tenant-wide reads. Tenant members are pinned
// to their own tenant; super-admins select one per request.
func resolveTenantID(c *fiber.Ctx, principal *auth.Principal) (string, error) {
	if principal.User.TenantID != nil {
		return *principal.User.TenantID, nil
	}
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		return "", util.NewValidationError("tenant_id query parameter required", nil)
	}
	return tenantID, nil
}

func parseStatuses(raw string) []domain.TicketStatus {
	if raw == "" {
		return nil
	}
	var statuses []domain.TicketStatus
	for _, part := range strings.Split(raw, ",") {
		if status, ok := parseStatus(strings.TrimSpace(part)); ok {
			statuses = append(statuses, status)
		}
	}
	return statuses
}

func parseStatus(raw string) (domain.TicketStatus, bool) {
	switch domain.TicketStatus(raw) {
	case domain.TicketStatusQueued, domain.TicketStatusAssigned, domain.TicketStatusInProgress,
		domain.TicketStatusProcessed, domain.TicketStatusDone, domain.TicketStatusIncomplete:
		return domain.TicketStatus(raw), true
	}
	return "", false
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:         ticket.ID,
		TenantID:   ticket.TenantID,
		CategoryID: ticket.CategoryID,
		Title:      ticket.Title,
		Status:     ticket.Status,
		CreatedAt:  ticket.CreatedAt,
		UpdatedAt:  ticket.UpdatedAt,
	}
}

func ticketSummaries(tickets []domain.Ticket) []dto.TicketSummary {
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return items
}

func ticketDetail(detail *service.TicketDetail) dto.TicketDetailResponse {
	ticket := detail.Ticket
	assignments := make([]dto.AssignmentResponse, 0, len(detail.Assignments))
	for i := range detail.Assignments {
		assignments = append(assignments, assignmentResponse(&detail.Assignments[i]))
	}
	submissions := make([]dto.SubmissionResponse, 0, len(detail.Submissions))
	for i := range detail.Submissions {
		submissions = append(submissions, submissionResponse(&detail.Submissions[i]))
	}
	escalations := make([]dto.EscalationResponse, 0, len(detail.Escalations))
	for i := range detail.Escalations {
		escalation := &detail.Escalations[i]
		escalations = append(escalations, dto.EscalationResponse{
			ID:          escalation.ID,
			FromUserID:  escalation.FromUserID,
			ToUserID:    escalation.ToUserID,
			Level:       escalation.Level,
			Reason:      escalation.Reason,
			EscalatedAt: escalation.EscalatedAt,
		})
	}
	return dto.TicketDetailResponse{
		ID:          ticket.ID,
		TenantID:    ticket.TenantID,
		CategoryID:  ticket.CategoryID,
		FirstName:   ticket.FirstName,
		LastName:    ticket.LastName,
		Email:       ticket.Email,
		Phone:       ticket.Phone,
		Title:       ticket.Title,
		Description: ticket.Description,
		Summary:     ticket.Summary,
		Translation: ticket.Translation,
		Status:      ticket.Status,
		CreatedAt:   ticket.CreatedAt,
		UpdatedAt:   ticket.UpdatedAt,
		Assignments: assignments,
		Submissions: submissions,
		Escalations: escalations,
	}
}

func assignmentResponse(assignment *domain.Assignment) dto.AssignmentResponse {
	return dto.AssignmentResponse{
		ID:               assignment.ID,
		AssignedToUserID: assignment.AssignedToUserID,
		AssignedByUserID: assignment.AssignedByUserID,
		Type:             assignment.Type,
		IsCurrent:        assignment.IsCurrent,
		AssignedAt:       assignment.AssignedAt,
		CompletedAt:      assignment.CompletedAt,
		Notes:            assignment.Notes,
	}
}

func submissionResponse(submission *domain.Submission) dto.SubmissionResponse {
	return dto.SubmissionResponse{
		ID:                submission.ID,
		SubmittedByUserID: submission.SubmittedByUserID,
		Type:              submission.Type,
		Comment:           submission.Comment,
		AttachmentURL:     submission.AttachmentURL,
		RequiresChanges:   submission.RequiresChanges,
		CreatedAt:         submission.CreatedAt,
	}
}
