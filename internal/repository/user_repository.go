package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-platform/internal/domain"
)

// AgentCandidate pairs an eligible agent with their current active load,
// ordered least-loaded first by the candidate query.
type AgentCandidate struct {
	User       domain.User
	ActiveLoad int
}

// UserRepository defines read access to the user directory. The
// assignment engine consumes these fields but does not own user
// lifecycle.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByLogin(ctx context.Context, login string) (*domain.User, error)
	ListCandidates(ctx context.Context, tenantID string, categoryID *int64) ([]AgentCandidate, error)
	ListByRoles(ctx context.Context, tenantID string, roles []domain.UserRole, activeOnly bool) ([]domain.User, error)
	ListByManager(ctx context.Context, managerID string) ([]domain.User, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `id, tenant_id, manager_id, category_id, username, email, first_name, last_name,
               password_hash, role, is_active, is_accepting_tickets, capacity, created_at, updated_at`

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id=$1`, userColumns)
	return r.fetchSingle(ctx, query, id)
}

func (r *userRepository) GetByLogin(ctx context.Context, login string) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE username=$1 OR email=$1`, userColumns)
	return r.fetchSingle(ctx, query, login)
}

// ListCandidates returns eligible agents with their active load,
// least-loaded first. Eligibility: same tenant, employee role, accepting
// tickets, active, matching category when the ticket has one, and active
// load under capacity. Active load counts current ledger rows whose
// ticket is in an active status.
func (r *userRepository) ListCandidates(ctx context.Context, tenantID string, categoryID *int64) ([]AgentCandidate, error) {
	query := fmt.Sprintf(`
        SELECT %s, COALESCE(l.active_count, 0) AS active_count
        FROM users u
        LEFT JOIN (
            SELECT a.assigned_to_user_id AS user_id, COUNT(a.id) AS active_count
            FROM ticket_assignments a
            JOIN tickets t ON t.id = a.ticket_id
            WHERE a.is_current = TRUE AND t.status IN ('queued','assigned','in-progress')
            GROUP BY a.assigned_to_user_id
        ) l ON l.user_id = u.id
        WHERE u.tenant_id = $1
          AND u.role = $2
          AND u.is_accepting_tickets = TRUE
          AND u.is_active = TRUE
          AND COALESCE(l.active_count, 0) < u.capacity`, prefixedUserColumns("u"))
	args := []any{tenantID, domain.UserRoleEmployee}

	if categoryID != nil {
		args = append(args, *categoryID)
		query += fmt.Sprintf(" AND u.category_id = $%d", len(args))
	}
	query += " ORDER BY COALESCE(l.active_count, 0) ASC, u.created_at ASC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AgentCandidate
	for rows.Next() {
		var candidate AgentCandidate
		if err := scanUserInto(rows, &candidate.User, &candidate.ActiveLoad); err != nil {
			return nil, err
		}
		result = append(result, candidate)
	}
	return result, rows.Err()
}

func (r *userRepository) ListByRoles(ctx context.Context, tenantID string, roles []domain.UserRole, activeOnly bool) ([]domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE tenant_id=$1`, userColumns)
	args := []any{tenantID}

	if len(roles) > 0 {
		placeholders := make([]string, len(roles))
		for i, role := range roles {
			args = append(args, role)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		query += fmt.Sprintf(" AND role IN (%s)", strings.Join(placeholders, ","))
	}
	if activeOnly {
		query += " AND is_active = TRUE"
	}
	query += " ORDER BY created_at ASC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUsers(rows)
}

func (r *userRepository) ListByManager(ctx context.Context, managerID string) ([]domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE manager_id=$1 ORDER BY created_at ASC`, userColumns)
	rows, err := r.pool.Query(ctx, query, managerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUsers(rows)
}

func (r *userRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.User, error) {
	var user domain.User
	if err := scanUserInto(r.pool.QueryRow(ctx, query, args...), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func prefixedUserColumns(alias string) string {
	cols := strings.Split(strings.ReplaceAll(userColumns, "\n", ""), ",")
	for i, col := range cols {
		cols[i] = alias + "." + strings.TrimSpace(col)
	}
	return strings.Join(cols, ", ")
}

func scanUserInto(row pgx.Row, user *domain.User, extra ...any) error {
	dest := []any{
		&user.ID,
		&user.TenantID,
		&user.ManagerID,
		&user.CategoryID,
		&user.Username,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.PasswordHash,
		&user.Role,
		&user.IsActive,
		&user.IsAcceptingTickets,
		&user.Capacity,
		&user.CreatedAt,
		&user.UpdatedAt,
	}
	dest = append(dest, extra...)
	return row.Scan(dest...)
}

func scanUsers(rows pgx.Rows) ([]domain.User, error) {
	var result []domain.User
	for rows.Next() {
		var user domain.User
		if err := scanUserInto(rows, &user); err != nil {
			return nil, err
		}
		result = append(result, user)
	}
	return result, rows.Err()
}
