package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/deskops/helpdesk-service/internal/domain"
)

const ticketColumns = `
        SELECT t.id, t.title, t.description, t.status, t.priority, t.created_by, c.name,
               t.assigned_to, a.name, t.created_at, t.updated_at, t.due_at, t.version
        FROM tickets t
        JOIN users c ON c.id = t.created_by
        LEFT JOIN users a ON a.id = t.assigned_to`

type ticketRepository struct {
	db   dbtx
	lock bool
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (title, description, status, priority, created_by, assigned_to, created_at, updated_at, due_at, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id`
	err := r.db.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.CreatedBy,
		ticket.AssignedTo,
		ticket.CreatedAt,
		ticket.UpdatedAt,
		ticket.DueAt,
		ticket.Version,
	).Scan(&ticket.ID)
	return mapPgError(err)
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, ticketColumns+` WHERE t.id=$1`, id)
}

func (r *ticketRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := ticketColumns + ` WHERE t.id=$1`
	if r.lock {
		query += ` FOR UPDATE OF t`
	}
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	ticket, err := scanTicket(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, mapPgError(err)
	}
	return ticket, nil
}

func scanTicket(row rowScanner) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.CreatedBy,
		&ticket.CreatorName,
		&ticket.AssignedTo,
		&ticket.AssigneeName,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.DueAt,
		&ticket.Version,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) UpdateIfVersion(ctx context.Context, ticket *domain.Ticket, expected int) error {
	const query = `
        UPDATE tickets SET status=$1, priority=$2, assigned_to=$3, due_at=$4, updated_at=$5, version=$6
        WHERE id=$7 AND version=$8`
	cmd, err := r.db.Exec(ctx, query,
		ticket.Status,
		ticket.Priority,
		ticket.AssignedTo,
		ticket.DueAt,
		ticket.UpdatedAt,
		ticket.Version,
		ticket.ID,
		expected,
	)
	if err != nil {
		return mapPgError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrVersionMismatch
	}
	return nil
}

func (r *ticketRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return mapPgError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error) {
	filter = filter.Normalize()
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("t.created_by=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("t.status=$%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		clauses = append(clauses, fmt.Sprintf("t.priority=$%d", len(args)))
	}
	if filter.BreachedOnly {
		args = append(args, filter.Now)
		clauses = append(clauses, fmt.Sprintf("t.status<>'closed' AND t.due_at < $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+strings.ToLower(search)+"%")
		clauses = append(clauses, fmt.Sprintf("(LOWER(t.title) LIKE $%d OR LOWER(t.description) LIKE $%d)", len(args), len(args)))
	}
	where := " WHERE " + strings.Join(clauses, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM tickets t`+where, args...).Scan(&total); err != nil {
		return nil, 0, mapPgError(err)
	}

	args = append(args, filter.Limit, filter.Offset)
	query := ticketColumns + where + fmt.Sprintf(" ORDER BY t.created_at DESC, t.id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, mapPgError(err)
	}
	defer rows.Close()

	tickets := make([]domain.Ticket, 0, filter.Limit)
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, 0, err
		}
		tickets = append(tickets, *ticket)
	}
	return tickets, total, rows.Err()
}
