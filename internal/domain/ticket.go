package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusClosed     TicketStatus = "closed"
)

// allowedTransitions is the whole status machine. closed has no exits.
var allowedTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusOpen:       {TicketStatusInProgress, TicketStatusClosed},
	TicketStatusInProgress: {TicketStatusClosed},
}

// IsValid reports whether s is a known status.
func (s TicketStatus) IsValid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusClosed:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving from s to next is legal.
// Self-transitions are not.
func (s TicketStatus) CanTransitionTo(next TicketStatus) bool {
	for _, candidate := range allowedTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

func (p TicketPriority) IsValid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID           int64
	Title        string
	Description  string
	Status       TicketStatus
	Priority     TicketPriority
	CreatedBy    int64
	CreatorName  string
	AssignedTo   *int64
	AssigneeName *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DueAt        time.Time
	Version      int
}

// IsClosed reports whether the ticket reached its terminal state.
func (t *Ticket) IsClosed() bool {
	return t.Status == TicketStatusClosed
}

// IsCreator reports whether userID filed the ticket.
func (t *Ticket) IsCreator(userID int64) bool {
	return t.CreatedBy == userID
}

// SLAStatus is the derived deadline classification of a ticket.
type SLAStatus string

const (
	SLAOnTrack  SLAStatus = "on_track"
	SLADueSoon  SLAStatus = "due_soon"
	SLABreached SLAStatus = "breached"
	SLAClosed   SLAStatus = "closed"
)

// TicketField names the mutable ticket fields subject to authorization.
type TicketField string

const (
	FieldStatus     TicketField = "status"
	FieldPriority   TicketField = "priority"
	FieldAssignedTo TicketField = "assigned_to"
	FieldCreatorID  TicketField = "creator_id"
)
