package gormstore

import (
	"time"

	"github.com/deskops/helpdesk-service/internal/domain"
)

// Timestamps are written explicitly by the services, so gorm's automatic
// time tracking is disabled on every model.

type UserModel struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	Name         string    `gorm:"not null"`
	Username     string    `gorm:"uniqueIndex;not null"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	Role         string    `gorm:"index;not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime:false"`
}

func (UserModel) TableName() string { return "users" }

type TicketModel struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	Title       string    `gorm:"not null"`
	Description string    `gorm:"not null"`
	Status      string    `gorm:"index;not null"`
	Priority    string    `gorm:"not null"`
	CreatedBy   int64     `gorm:"index;not null"`
	AssignedTo  *int64    `gorm:"index"`
	CreatedAt   time.Time `gorm:"index;autoCreateTime:false"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime:false"`
	DueAt       time.Time `gorm:"index"`
	Version     int       `gorm:"not null;default:1"`
}

func (TicketModel) TableName() string { return "tickets" }

// ticketRow is a ticket joined with creator and assignee names.
type ticketRow struct {
	TicketModel
	CreatorName  string
	AssigneeName *string
}

type CommentModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	TicketID  int64     `gorm:"index;not null"`
	AuthorID  int64     `gorm:"not null"`
	Content   string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
}

func (CommentModel) TableName() string { return "comments" }

type commentRow struct {
	CommentModel
	AuthorName string
}

type ActionModel struct {
	ID        int64 `gorm:"primaryKey;autoIncrement"`
	TicketID  int64 `gorm:"index;not null"`
	ActorID   *int64
	Kind      string    `gorm:"not null"`
	Detail    string    `gorm:"not null;default:''"`
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
}

func (ActionModel) TableName() string { return "ticket_actions" }

type actionRow struct {
	ActionModel
	ActorName *string
}

func utc(t time.Time) time.Time {
	return t.UTC()
}

func toUserModel(u *domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Name:         u.Name,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CreatedAt:    utc(u.CreatedAt),
		UpdatedAt:    utc(u.UpdatedAt),
	}
}

func (m UserModel) toDomain() domain.User {
	return domain.User{
		ID:           m.ID,
		Name:         m.Name,
		Username:     m.Username,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         domain.Role(m.Role),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func toTicketModel(t *domain.Ticket) TicketModel {
	return TicketModel{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		CreatedBy:   t.CreatedBy,
		AssignedTo:  t.AssignedTo,
		CreatedAt:   utc(t.CreatedAt),
		UpdatedAt:   utc(t.UpdatedAt),
		DueAt:       utc(t.DueAt),
		Version:     t.Version,
	}
}

func (r ticketRow) toDomain() domain.Ticket {
	return domain.Ticket{
		ID:           r.ID,
		Title:        r.Title,
		Description:  r.Description,
		Status:       domain.TicketStatus(r.Status),
		Priority:     domain.TicketPriority(r.Priority),
		CreatedBy:    r.CreatedBy,
		CreatorName:  r.CreatorName,
		AssignedTo:   r.AssignedTo,
		AssigneeName: r.AssigneeName,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		DueAt:        r.DueAt,
		Version:      r.Version,
	}
}

func (r commentRow) toDomain() domain.Comment {
	return domain.Comment{
		ID:         r.ID,
		TicketID:   r.TicketID,
		AuthorID:   r.AuthorID,
		AuthorName: r.AuthorName,
		Content:    r.Content,
		CreatedAt:  r.CreatedAt,
	}
}

func (r actionRow) toDomain() domain.Action {
	action := domain.Action{
		ID:        r.ID,
		TicketID:  r.TicketID,
		ActorID:   r.ActorID,
		Kind:      domain.ActionKind(r.Kind),
		Detail:    r.Detail,
		CreatedAt: r.CreatedAt,
	}
	if r.ActorName != nil {
		action.ActorName = *r.ActorName
	}
	return action
}
