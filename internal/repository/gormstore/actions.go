package gormstore

import (
	"context"

	"gorm.io/gorm"

	"github.com/deskops/helpdesk-service/internal/domain"
)

type actionRepository struct {
	db *gorm.DB
}

func (r *actionRepository) Create(ctx context.Context, action *domain.Action) error {
	model := ActionModel{
		TicketID:  action.TicketID,
		ActorID:   action.ActorID,
		Kind:      string(action.Kind),
		Detail:    action.Detail,
		CreatedAt: utc(action.CreatedAt),
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return mapError(err)
	}
	action.ID = model.ID
	return nil
}

func (r *actionRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.Action, error) {
	var rows []actionRow
	err := r.db.WithContext(ctx).
		Table("ticket_actions AS a").
		Select("a.*, u.name AS actor_name").
		Joins("LEFT JOIN users u ON u.id = a.actor_id").
		Where("a.ticket_id = ?", ticketID).
		Order("a.created_at ASC").
		Order("a.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, mapError(err)
	}
	actions := make([]domain.Action, 0, len(rows))
	for _, row := range rows {
		actions = append(actions, row.toDomain())
	}
	return actions, nil
}

func (r *actionRepository) DeleteByTicket(ctx context.Context, ticketID int64) error {
	return mapError(r.db.WithContext(ctx).Where("ticket_id = ?", ticketID).Delete(&ActionModel{}).Error)
}
