package gormstore

import (
	"context"

	"gorm.io/gorm"

	"github.com/deskops/helpdesk-service/internal/domain"
	"github.com/deskops/helpdesk-service/internal/repository"
)

type commentRepository struct {
	db *gorm.DB
}

func (r *commentRepository) joined(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("comments AS cm").
		Select("cm.*, u.name AS author_name").
		Joins("JOIN users u ON u.id = cm.author_id")
}

func (r *commentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	model := CommentModel{
		TicketID:  comment.TicketID,
		AuthorID:  comment.AuthorID,
		Content:   comment.Content,
		CreatedAt: utc(comment.CreatedAt),
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return mapError(err)
	}
	comment.ID = model.ID
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id int64) (*domain.Comment, error) {
	var rows []commentRow
	if err := r.joined(ctx).Where("cm.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return nil, mapError(err)
	}
	if len(rows) == 0 {
		return nil, repository.ErrNotFound
	}
	comment := rows[0].toDomain()
	return &comment, nil
}

func (r *commentRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.Comment, error) {
	var rows []commentRow
	err := r.joined(ctx).
		Where("cm.ticket_id = ?", ticketID).
		Order("cm.created_at ASC").
		Order("cm.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, mapError(err)
	}
	comments := make([]domain.Comment, 0, len(rows))
	for _, row := range rows {
		comments = append(comments, row.toDomain())
	}
	return comments, nil
}

func (r *commentRepository) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Delete(&CommentModel{}, id)
	if result.Error != nil {
		return mapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *commentRepository) DeleteByTicket(ctx context.Context, ticketID int64) error {
	return mapError(r.db.WithContext(ctx).Where("ticket_id = ?", ticketID).Delete(&CommentModel{}).Error)
}
