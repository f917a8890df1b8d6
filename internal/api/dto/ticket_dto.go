package dto

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/deskops/helpdesk-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title" validate:"required,max=200"`
	Description string                `json:"description" validate:"required,max=5000"`
	Priority    domain.TicketPriority `json:"priority" validate:"omitempty,oneof=low medium high"`
}

// NullableID distinguishes an absent field from an explicit null.
type NullableID struct {
	Set bool
	ID  *int64
}

func (n *NullableID) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.ID = nil
		return nil
	}
	var id int64
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	n.ID = &id
	return nil
}

// UpdateTicketRequest carries one optimistic update. assigned_to: null
// unassigns; omitting it leaves the assignee alone.
type UpdateTicketRequest struct {
	Status          *domain.TicketStatus   `json:"status" validate:"omitempty,oneof=open in_progress closed"`
	Priority        *domain.TicketPriority `json:"priority" validate:"omitempty,oneof=low medium high"`
	AssignedTo      NullableID             `json:"assigned_to"`
	ExpectedVersion int                    `json:"expected_version" validate:"required,min=1"`
}

// TicketResponse is the ticket read shape.
type TicketResponse struct {
	ID           int64                 `json:"id"`
	Title        string                `json:"title"`
	Description  string                `json:"description"`
	Status       domain.TicketStatus   `json:"status"`
	Priority     domain.TicketPriority `json:"priority"`
	CreatorID    int64                 `json:"creator_id"`
	CreatorName  string                `json:"creator_name"`
	AssigneeID   *int64                `json:"assignee_id,omitempty"`
	AssigneeName *string               `json:"assignee_name,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
	DueAt        time.Time             `json:"due_at"`
	SLAStatus    domain.SLAStatus      `json:"sla_status"`
	Version      int                   `json:"version"`
}

// TicketFilterResponse echoes the filter that produced a listing.
type TicketFilterResponse struct {
	Role     domain.Role            `json:"role"`
	Status   *domain.TicketStatus   `json:"status,omitempty"`
	Priority *domain.TicketPriority `json:"priority,omitempty"`
	Breached bool                   `json:"breached"`
	Search   string                 `json:"search,omitempty"`
	Limit    int                    `json:"limit"`
	Offset   int                    `json:"offset"`
}

// TicketListResponse is one page of tickets.
type TicketListResponse struct {
	Items  []TicketResponse     `json:"items"`
	Total  int                  `json:"total"`
	Filter TicketFilterResponse `json:"filter"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Content string `json:"content" validate:"required,max=5000"`
}

// CommentResponse represents a thread message.
type CommentResponse struct {
	ID         int64     `json:"id"`
	TicketID   int64     `json:"ticket_id"`
	AuthorID   int64     `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// ActionResponse is one timeline entry.
type ActionResponse struct {
	ID        int64             `json:"id"`
	TicketID  int64             `json:"ticket_id"`
	ActorID   *int64            `json:"actor_id,omitempty"`
	Actor     string            `json:"actor"`
	Kind      domain.ActionKind `json:"kind"`
	Detail    string            `json:"detail"`
	CreatedAt time.Time         `json:"created_at"`
}
