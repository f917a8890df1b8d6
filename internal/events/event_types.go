package events

import (
	"time"

	"github.com/deskops/helpdesk-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated     EventType = "ticket_created"
	EventTicketUpdated     EventType = "ticket_updated"
	EventTicketDeleted     EventType = "ticket_deleted"
	EventCommentAdded      EventType = "comment_added"
	EventCommentDeleted    EventType = "comment_deleted"
	EventTicketSLABreached EventType = "ticket_sla_breached"
)

// Actor encapsulates actor metadata for an event. A nil UserID is the system.
type Actor struct {
	UserID *int64      `json:"user_id,omitempty"`
	Name   string      `json:"name"`
	Role   domain.Role `json:"role,omitempty"`
}

// ActorFromPrincipal builds the event actor for a caller.
func ActorFromPrincipal(p domain.Principal) Actor {
	id := p.UserID
	return Actor{UserID: &id, Name: p.Name, Role: p.Role}
}

// SystemActor is used by background jobs.
func SystemActor() Actor {
	return Actor{Name: domain.SystemActor}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  int64       `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title    string                `json:"title"`
	Priority domain.TicketPriority `json:"priority"`
	DueAt    time.Time             `json:"due_at"`
}

// FieldChange records one field of a committed update.
type FieldChange struct {
	Field domain.TicketField `json:"field"`
	From  string             `json:"from"`
	To    string             `json:"to"`
}

// TicketUpdatedPayload lists every field changed by one committed update.
type TicketUpdatedPayload struct {
	Version    int           `json:"version"`
	Changes    []FieldChange `json:"changes"`
	AssignedTo *int64        `json:"assigned_to,omitempty"`
}

// TicketDeletedPayload payload.
type TicketDeletedPayload struct {
	Title string `json:"title"`
}

// CommentPayload describes an added or deleted comment.
type CommentPayload struct {
	CommentID   int64  `json:"comment_id"`
	AuthorID    int64  `json:"author_id"`
	BodyPreview string `json:"body_preview"`
}

// SLABreachedPayload payload.
type SLABreachedPayload struct {
	Priority   domain.TicketPriority `json:"priority"`
	DueAt      time.Time             `json:"due_at"`
	AssignedTo *int64                `json:"assigned_to,omitempty"`
}
