package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-platform/internal/domain"
)

// EscalationRepository reads the append-only escalation audit trail.
// Rows are created inside the ledger's Escalate transaction; nothing
// updates or deletes them.
type EscalationRepository interface {
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Escalation, error)
}

type escalationRepository struct {
	pool *pgxpool.Pool
}

// NewEscalationRepository instantiates the repository.
func NewEscalationRepository(pool *pgxpool.Pool) EscalationRepository {
	return &escalationRepository{pool: pool}
}

func (r *escalationRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Escalation, error) {
	const query = `
        SELECT id, ticket_id, escalated_from_user_id, escalated_to_user_id, escalation_level, reason, escalated_at, created_at
        FROM ticket_escalations
        WHERE ticket_id=$1
        ORDER BY escalation_level ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Escalation
	for rows.Next() {
		var escalation domain.Escalation
		if err := scanEscalationInto(rows, &escalation); err != nil {
			return nil, err
		}
		result = append(result, escalation)
	}
	return result, rows.Err()
}

func scanEscalationInto(row pgx.Row, escalation *domain.Escalation) error {
	return row.Scan(
		&escalation.ID,
		&escalation.TicketID,
		&escalation.FromUserID,
		&escalation.ToUserID,
		&escalation.Level,
		&escalation.Reason,
		&escalation.EscalatedAt,
		&escalation.CreatedAt,
	)
}
