package gormstore

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/deskops/helpdesk-service/internal/domain"
	"github.com/deskops/helpdesk-service/internal/repository"
)

type ticketRepository struct {
	db *gorm.DB
}

func (r *ticketRepository) joined(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("tickets AS t").
		Select("t.*, c.name AS creator_name, a.name AS assignee_name").
		Joins("JOIN users c ON c.id = t.created_by").
		Joins("LEFT JOIN users a ON a.id = t.assigned_to")
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	model := toTicketModel(ticket)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return mapError(err)
	}
	ticket.ID = model.ID
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	var rows []ticketRow
	if err := r.joined(ctx).Where("t.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return nil, mapError(err)
	}
	if len(rows) == 0 {
		return nil, repository.ErrNotFound
	}
	ticket := rows[0].toDomain()
	return &ticket, nil
}

// GetForUpdate needs no lock clause: transactions on the single connection
// are already serialized.
func (r *ticketRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Ticket, error) {
	return r.GetByID(ctx, id)
}

func (r *ticketRepository) UpdateIfVersion(ctx context.Context, ticket *domain.Ticket, expected int) error {
	result := r.db.WithContext(ctx).
		Model(&TicketModel{}).
		Where("id = ? AND version = ?", ticket.ID, expected).
		Updates(map[string]any{
			"status":      string(ticket.Status),
			"priority":    string(ticket.Priority),
			"assigned_to": ticket.AssignedTo,
			"due_at":      utc(ticket.DueAt),
			"updated_at":  utc(ticket.UpdatedAt),
			"version":     ticket.Version,
		})
	if result.Error != nil {
		return mapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrVersionMismatch
	}
	return nil
}

func (r *ticketRepository) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Delete(&TicketModel{}, id)
	if result.Error != nil {
		return mapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *ticketRepository) List(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, int, error) {
	filter = filter.Normalize()
	scope := filterScope(filter)

	var total int64
	if err := r.db.WithContext(ctx).Table("tickets AS t").Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, mapError(err)
	}

	var rows []ticketRow
	err := r.joined(ctx).
		Scopes(scope).
		Order("t.created_at DESC").
		Order("t.id DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, mapError(err)
	}

	tickets := make([]domain.Ticket, 0, len(rows))
	for _, row := range rows {
		tickets = append(tickets, row.toDomain())
	}
	return tickets, int(total), nil
}

func filterScope(filter repository.TicketFilter) func(*gorm.DB) *gorm.DB {
	return func(query *gorm.DB) *gorm.DB {
		if filter.CreatedBy != nil {
			query = query.Where("t.created_by = ?", *filter.CreatedBy)
		}
		if filter.Status != nil {
			query = query.Where("t.status = ?", string(*filter.Status))
		}
		if filter.Priority != nil {
			query = query.Where("t.priority = ?", string(*filter.Priority))
		}
		if filter.BreachedOnly {
			query = query.Where("t.status <> ? AND t.due_at < ?", string(domain.TicketStatusClosed), utc(filter.Now))
		}
		if search := strings.TrimSpace(filter.Search); search != "" {
			pattern := "%" + strings.ToLower(search) + "%"
			query = query.Where("(LOWER(t.title) LIKE ? OR LOWER(t.description) LIKE ?)", pattern, pattern)
		}
		return query
	}
}
