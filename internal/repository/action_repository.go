package repository

import (
	"context"

	"github.com/deskops/helpdesk-service/internal/domain"
)

type actionRepository struct {
	db dbtx
}

func (r *actionRepository) Create(ctx context.Context, action *domain.Action) error {
	const query = `
        INSERT INTO ticket_actions (ticket_id, actor_id, kind, detail, created_at)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id`
	err := r.db.QueryRow(ctx, query,
		action.TicketID,
		action.ActorID,
		action.Kind,
		action.Detail,
		action.CreatedAt,
	).Scan(&action.ID)
	return mapPgError(err)
}

func (r *actionRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.Action, error) {
	const query = `
        SELECT a.id, a.ticket_id, a.actor_id, COALESCE(u.name, ''), a.kind, a.detail, a.created_at
        FROM ticket_actions a LEFT JOIN users u ON u.id = a.actor_id
        WHERE a.ticket_id=$1 ORDER BY a.created_at ASC, a.id ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	result := []domain.Action{}
	for rows.Next() {
		var action domain.Action
		if err := rows.Scan(
			&action.ID,
			&action.TicketID,
			&action.ActorID,
			&action.ActorName,
			&action.Kind,
			&action.Detail,
			&action.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, action)
	}
	return result, rows.Err()
}

func (r *actionRepository) DeleteByTicket(ctx context.Context, ticketID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM ticket_actions WHERE ticket_id=$1`, ticketID)
	return mapPgError(err)
}
