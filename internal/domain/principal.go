package domain

// Principal is the authenticated caller passed into every ticket operation.
type Principal struct {
	UserID int64
	Name   string
	Role   Role
}

// IsAdmin reports whether the caller holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// CanView reports whether the caller may read t. Staff see every ticket.
func (p Principal) CanView(t *Ticket) bool {
	return p.Role.IsStaff() || t.IsCreator(p.UserID)
}
