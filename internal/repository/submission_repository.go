package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-platform/internal/domain"
)

// SubmissionRepository persists completion hand-ins and review decisions.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *domain.Submission) error
	ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.Submission, error)
}

type submissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(pool *pgxpool.Pool) SubmissionRepository {
	return &submissionRepository{pool: pool}
}

func (r *submissionRepository) Create(ctx context.Context, submission *domain.Submission) error {
	const query = `
        INSERT INTO ticket_submissions (ticket_id, submitted_by_user_id, submission_type, comment, attachment_url, requires_changes)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		submission.TicketID,
		submission.SubmittedByUserID,
		submission.Type,
		submission.Comment,
		submission.AttachmentURL,
		submission.RequiresChanges,
	).Scan(&submission.ID, &submission.CreatedAt, &submission.UpdatedAt)
}

func (r *submissionRepository) ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.Submission, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, ticket_id, submitted_by_user_id, submission_type, comment, attachment_url, requires_changes, created_at, updated_at
        FROM ticket_submissions
        WHERE ticket_id=$1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, ticketID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Submission
	for rows.Next() {
		var submission domain.Submission
		if err := rows.Scan(
			&submission.ID,
			&submission.TicketID,
			&submission.SubmittedByUserID,
			&submission.Type,
			&submission.Comment,
			&submission.AttachmentURL,
			&submission.RequiresChanges,
			&submission.CreatedAt,
			&submission.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, submission)
	}
	return result, rows.Err()
}
