package domain

import "time"

// ActionKind captures what a timeline entry records.
type ActionKind string

const (
	ActionCreated         ActionKind = "created"
	ActionStatusChanged   ActionKind = "status_changed"
	ActionPriorityChanged ActionKind = "priority_changed"
	ActionAssigned        ActionKind = "assigned"
	ActionCommentAdded    ActionKind = "comment_added"
	ActionCommentDeleted  ActionKind = "comment_deleted"
)

// SystemActor is the display name of entries without a human actor.
const SystemActor = "system"

// Action is an immutable audit trail entry.
type Action struct {
	ID        int64
	TicketID  int64
	ActorID   *int64
	ActorName string
	Kind      ActionKind
	Detail    string
	CreatedAt time.Time
}

// Actor returns the display name, falling back to SystemActor.
func (a *Action) Actor() string {
	if a.ActorID == nil || a.ActorName == "" {
		return SystemActor
	}
	return a.ActorName
}
