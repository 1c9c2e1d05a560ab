package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-platform/internal/domain"
)

// AssignParams describes one ownership transfer. When RequireStatus is
// non-empty the ticket must still be in one of those statuses at lock
// time, otherwise the operation fails with ErrTicketStateConflict.
type AssignParams struct {
	TicketID         string
	AssignToUserID   string
	AssignedByUserID *string
	Type             domain.AssignmentType
	Notes            *string
	RequireStatus    []domain.TicketStatus
}

// EscalateParams describes an SLA-breach ownership transfer.
// FromUserID is the assignee the caller resolved the manager from; if
// the current ledger row no longer belongs to them the operation fails
// with ErrLedgerConflict.
type EscalateParams struct {
	TicketID   string
	FromUserID string
	ToUserID   string
	Reason     string
	Notes      *string
}

// AssignmentRepository owns the ownership ledger. The mutating
// operations run in a single transaction holding a row lock on the
// ticket, which serializes concurrent assignment, escalation and retry
// attempts on the same ticket without any cross-ticket contention.
type AssignmentRepository interface {
	GetCurrent(ctx context.Context, ticketID string) (*domain.Assignment, error)
	ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.Assignment, error)
	CountActiveForUser(ctx context.Context, userID string) (int, error)
	Assign(ctx context.Context, params AssignParams) (*domain.Assignment, error)
	Escalate(ctx context.Context, params EscalateParams) (*domain.Assignment, *domain.Escalation, error)
}

type assignmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssignmentRepository instantiates the repository.
func NewAssignmentRepository(pool *pgxpool.Pool) AssignmentRepository {
	return &assignmentRepository{pool: pool}
}

func (r *assignmentRepository) GetCurrent(ctx context.Context, ticketID string) (*domain.Assignment, error) {
	const query = `
        SELECT id, ticket_id, assigned_to_user_id, assigned_by_user_id, assignment_type,
               is_current, assigned_at, completed_at, notes, created_at, updated_at
        FROM ticket_assignments
        WHERE ticket_id=$1 AND is_current=TRUE`
	var assignment domain.Assignment
	if err := scanAssignmentInto(r.pool.QueryRow(ctx, query, ticketID), &assignment); err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *assignmentRepository) ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.Assignment, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, ticket_id, assigned_to_user_id, assigned_by_user_id, assignment_type,
               is_current, assigned_at, completed_at, notes, created_at, updated_at
        FROM ticket_assignments
        WHERE ticket_id=$1
        ORDER BY assigned_at DESC
        LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, ticketID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Assignment
	for rows.Next() {
		var assignment domain.Assignment
		if err := scanAssignmentInto(rows, &assignment); err != nil {
			return nil, err
		}
		result = append(result, assignment)
	}
	return result, rows.Err()
}

func (r *assignmentRepository) CountActiveForUser(ctx context.Context, userID string) (int, error) {
	const query = `
        SELECT COUNT(a.id)
        FROM ticket_assignments a
        JOIN tickets t ON t.id = a.ticket_id
        WHERE a.assigned_to_user_id=$1
          AND a.is_current=TRUE
          AND t.status IN ('queued','assigned','in-progress')`
	var count int
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *assignmentRepository) Assign(ctx context.Context, params AssignParams) (*domain.Assignment, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	status, err := lockTicket(ctx, tx, params.TicketID)
	if err != nil {
		return nil, err
	}
	if len(params.RequireStatus) > 0 && !statusIn(status, params.RequireStatus) {
		return nil, ErrTicketStateConflict
	}

	if err := closeCurrent(ctx, tx, params.TicketID); err != nil {
		return nil, err
	}

	assignment, err := insertAssignment(ctx, tx, params.TicketID, params.AssignToUserID, params.AssignedByUserID, params.Type, params.Notes)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE tickets SET status=$1, updated_at=NOW() WHERE id=$2`,
		domain.TicketStatusAssigned, params.TicketID,
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return assignment, nil
}

func (r *assignmentRepository) Escalate(ctx context.Context, params EscalateParams) (*domain.Assignment, *domain.Escalation, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	status, err := lockTicket(ctx, tx, params.TicketID)
	if err != nil {
		return nil, nil, err
	}
	if !statusIn(status, domain.EscalatableStatuses) {
		return nil, nil, ErrTicketStateConflict
	}

	var currentAssignee string
	err = tx.QueryRow(ctx,
		`SELECT assigned_to_user_id FROM ticket_assignments WHERE ticket_id=$1 AND is_current=TRUE`,
		params.TicketID,
	).Scan(&currentAssignee)
	if err != nil {
		return nil, nil, err
	}
	if currentAssignee != params.FromUserID {
		return nil, nil, ErrLedgerConflict
	}

	if err := closeCurrent(ctx, tx, params.TicketID); err != nil {
		return nil, nil, err
	}

	assignment, err := insertAssignment(ctx, tx, params.TicketID, params.ToUserID, nil, domain.AssignmentTypeAutoEscalated, params.Notes)
	if err != nil {
		return nil, nil, err
	}

	escalation := &domain.Escalation{
		TicketID:   params.TicketID,
		FromUserID: params.FromUserID,
		ToUserID:   params.ToUserID,
	}
	if params.Reason != "" {
		reason := params.Reason
		escalation.Reason = &reason
	}
	err = tx.QueryRow(ctx, `
        INSERT INTO ticket_escalations (ticket_id, escalated_from_user_id, escalated_to_user_id, escalation_level, reason)
        VALUES ($1, $2, $3,
                (SELECT COALESCE(MAX(escalation_level), 0) + 1 FROM ticket_escalations WHERE ticket_id=$1),
                $4)
        RETURNING id, escalation_level, escalated_at, created_at`,
		params.TicketID, params.FromUserID, params.ToUserID, escalation.Reason,
	).Scan(&escalation.ID, &escalation.Level, &escalation.EscalatedAt, &escalation.CreatedAt)
	if err != nil {
		return nil, nil, err
	}

	// An escalation always returns the ticket to assigned, even from
	// in-progress, since ownership changed.
	if _, err := tx.Exec(ctx,
		`UPDATE tickets SET status=$1, updated_at=NOW() WHERE id=$2`,
		domain.TicketStatusAssigned, params.TicketID,
	); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return assignment, escalation, nil
}

func lockTicket(ctx context.Context, tx pgx.Tx, ticketID string) (domain.TicketStatus, error) {
	var status domain.TicketStatus
	err := tx.QueryRow(ctx,
		`SELECT status FROM tickets WHERE id=$1 FOR UPDATE`,
		ticketID,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", pgx.ErrNoRows
		}
		return "", err
	}
	return status, nil
}

func closeCurrent(ctx context.Context, tx pgx.Tx, ticketID string) error {
	_, err := tx.Exec(ctx, `
        UPDATE ticket_assignments
        SET is_current=FALSE, completed_at=NOW(), updated_at=NOW()
        WHERE ticket_id=$1 AND is_current=TRUE`,
		ticketID,
	)
	return err
}

func insertAssignment(ctx context.Context, tx pgx.Tx, ticketID, assignTo string, assignedBy *string, assignmentType domain.AssignmentType, notes *string) (*domain.Assignment, error) {
	assignment := &domain.Assignment{
		TicketID:         ticketID,
		AssignedToUserID: assignTo,
		AssignedByUserID: assignedBy,
		Type:             assignmentType,
		IsCurrent:        true,
		Notes:            notes,
	}
	err := tx.QueryRow(ctx, `
        INSERT INTO ticket_assignments (ticket_id, assigned_to_user_id, assigned_by_user_id, assignment_type, is_current, notes)
        VALUES ($1, $2, $3, $4, TRUE, $5)
        RETURNING id, assigned_at, created_at, updated_at`,
		ticketID, assignTo, assignedBy, assignmentType, notes,
	).Scan(&assignment.ID, &assignment.AssignedAt, &assignment.CreatedAt, &assignment.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return assignment, nil
}

func statusIn(status domain.TicketStatus, set []domain.TicketStatus) bool {
	for _, candidate := range set {
		if candidate == status {
			return true
		}
	}
	return false
}

func scanAssignmentInto(row pgx.Row, assignment *domain.Assignment) error {
	return row.Scan(
		&assignment.ID,
		&assignment.TicketID,
		&assignment.AssignedToUserID,
		&assignment.AssignedByUserID,
		&assignment.Type,
		&assignment.IsCurrent,
		&assignment.AssignedAt,
		&assignment.CompletedAt,
		&assignment.Notes,
		&assignment.CreatedAt,
		&assignment.UpdatedAt,
	)
}
