package auth

import (
	"github.com/deskops/helpdesk-service/internal/domain"
	apperrors "github.com/deskops/helpdesk-service/pkg/util/errorutil"
)

// Grant is a cell of the field permission matrix.
type Grant int

const (
	Deny Grant = iota
	Allow
	// CreatorOnly allows the change only to the ticket's creator.
	CreatorOnly
)

// fieldMatrix is indexed by role then field. Missing entries deny.
var fieldMatrix = map[domain.Role]map[domain.TicketField]Grant{
	domain.RoleUser: {
		domain.FieldStatus:     Deny,
		domain.FieldPriority:   CreatorOnly,
		domain.FieldAssignedTo: Deny,
		domain.FieldCreatorID:  Deny,
	},
	domain.RoleAgent: {
		domain.FieldStatus:     Allow,
		domain.FieldPriority:   Allow,
		domain.FieldAssignedTo: Allow,
		domain.FieldCreatorID:  Deny,
	},
	domain.RoleAdmin: {
		domain.FieldStatus:     Allow,
		domain.FieldPriority:   Allow,
		domain.FieldAssignedTo: Allow,
		domain.FieldCreatorID:  Deny,
	},
}

// creatorOverride lists fields a ticket creator may change regardless of role.
var creatorOverride = map[domain.TicketField]bool{
	domain.FieldPriority: true,
}

// Denial reasons reported alongside a FORBIDDEN error.
const (
	ReasonClosed  = "ticket_closed"
	ReasonRole    = "role"
	ReasonCreator = "not_creator"
)

// CanChange reports whether the principal may change field on t, and why not.
func CanChange(p domain.Principal, t *domain.Ticket, field domain.TicketField) (bool, string) {
	if t.IsClosed() {
		return false, ReasonClosed
	}
	if t.IsCreator(p.UserID) && creatorOverride[field] {
		return true, ""
	}
	switch fieldMatrix[p.Role][field] {
	case Allow:
		return true, ""
	case CreatorOnly:
		if t.IsCreator(p.UserID) {
			return true, ""
		}
		return false, ReasonCreator
	default:
		return false, ReasonRole
	}
}

// Authorize checks every field and fails on the first one denied. Nothing is
// partially allowed.
func Authorize(p domain.Principal, t *domain.Ticket, fields []domain.TicketField) error {
	for _, field := range fields {
		if ok, reason := CanChange(p, t, field); !ok {
			return apperrors.NewForbiddenField(string(field), reason)
		}
	}
	return nil
}
