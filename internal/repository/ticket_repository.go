package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-platform/internal/domain"
)

// TicketFilter captures admin search parameters.
type TicketFilter struct {
	CategoryID *int64
	Statuses   []domain.TicketStatus
	SearchTerm *string
	Limit      int
	Offset     int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByIDInTenant(ctx context.Context, id, tenantID string) (*domain.Ticket, error)
	UpdateStatus(ctx context.Context, id string, status domain.TicketStatus) error
	UpdateEnrichment(ctx context.Context, id string, title, summary, translation *string, categoryID *int64) error
	ListByStatus(ctx context.Context, status domain.TicketStatus) ([]domain.Ticket, error)
	ListByTenant(ctx context.Context, tenantID string, filter TicketFilter) ([]domain.Ticket, error)
	ListByAssignee(ctx context.Context, userID string, statuses []domain.TicketStatus) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, tenant_id, category_id, first_name, last_name, email, phone,
               title, description, summary, translation, status, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (tenant_id, category_id, first_name, last_name, email, phone, title, description, summary, translation, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.TenantID,
		ticket.CategoryID,
		ticket.FirstName,
		ticket.LastName,
		ticket.Email,
		ticket.Phone,
		ticket.Title,
		ticket.Description,
		ticket.Summary,
		ticket.Translation,
		ticket.Status,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	return fetchTicket(ctx, r.pool, query, id)
}

func (r *ticketRepository) GetByIDInTenant(ctx context.Context, id, tenantID string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1 AND tenant_id=$2`, ticketColumns)
	return fetchTicket(ctx, r.pool, query, id, tenantID)
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, id string, status domain.TicketStatus) error {
	const query = `UPDATE tickets SET status=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, status, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) UpdateEnrichment(ctx context.Context, id string, title, summary, translation *string, categoryID *int64) error {
	const query = `
        UPDATE tickets
        SET title=COALESCE($1, title),
            summary=COALESCE($2, summary),
            translation=COALESCE($3, translation),
            category_id=COALESCE($4, category_id),
            updated_at=NOW()
        WHERE id=$5`
	cmd, err := r.pool.Exec(ctx, query, title, summary, translation, categoryID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) ListByStatus(ctx context.Context, status domain.TicketStatus) ([]domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE status=$1 ORDER BY created_at ASC`, ticketColumns)
	rows, err := r.pool.Query(ctx, query, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListByTenant(ctx context.Context, tenantID string, filter TicketFilter) ([]domain.Ticket, error) {
	base := fmt.Sprintf(`SELECT %s FROM tickets`, ticketColumns)
	args := []any{tenantID}
	clauses := []string{"tenant_id=$1"}

	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		clauses = append(clauses, fmt.Sprintf("category_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(COALESCE(title,'')) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListByAssignee(ctx context.Context, userID string, statuses []domain.TicketStatus) ([]domain.Ticket, error) {
	base := fmt.Sprintf(`
        SELECT %s FROM tickets t
        JOIN ticket_assignments a ON a.ticket_id = t.id AND a.is_current = TRUE
        WHERE a.assigned_to_user_id = $1`, prefixedTicketColumns("t"))
	args := []any{userID}

	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		base += fmt.Sprintf(" AND t.status IN (%s)", strings.Join(placeholders, ","))
	}
	base += " ORDER BY t.updated_at DESC"

	rows, err := r.pool.Query(ctx, base, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func prefixedTicketColumns(alias string) string {
	cols := strings.Split(strings.ReplaceAll(ticketColumns, "\n", ""), ",")
	for i, col := range cols {
		cols[i] = alias + "." + strings.TrimSpace(col)
	}
	return strings.Join(cols, ", ")
}

func fetchTicket(ctx context.Context, pool *pgxpool.Pool, query string, args ...any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := pool.QueryRow(ctx, query, args...).Scan(
		&ticket.ID,
		&ticket.TenantID,
		&ticket.CategoryID,
		&ticket.FirstName,
		&ticket.LastName,
		&ticket.Email,
		&ticket.Phone,
		&ticket.Title,
		&ticket.Description,
		&ticket.Summary,
		&ticket.Translation,
		&ticket.Status,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.TenantID,
			&ticket.CategoryID,
			&ticket.FirstName,
			&ticket.LastName,
			&ticket.Email,
			&ticket.Phone,
			&ticket.Title,
			&ticket.Description,
			&ticket.Summary,
			&ticket.Translation,
			&ticket.Status,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
