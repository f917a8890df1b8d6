package repository

import (
	"context"
	"errors"
	"time"

	"github.com/deskops/helpdesk-service/internal/domain"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrVersionMismatch is returned by UpdateIfVersion when the stored
	// version differs from the expected one.
	ErrVersionMismatch = errors.New("version mismatch")
	// ErrDuplicate is returned on unique constraint violations.
	ErrDuplicate = errors.New("duplicate record")
)

// Pagination bounds applied by TicketFilter.Normalize.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// TicketFilter captures list parameters. Role scoping is expressed through
// CreatedBy by the caller.
type TicketFilter struct {
	CreatedBy    *int64
	Status       *domain.TicketStatus
	Priority     *domain.TicketPriority
	Search       string
	BreachedOnly bool
	// Now is the reference time for BreachedOnly.
	Now    time.Time
	Limit  int
	Offset int
}

// Normalize clamps pagination into bounds.
func (f TicketFilter) Normalize() TicketFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.Now.IsZero() {
		f.Now = time.Now()
	}
	return f
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	// GetForUpdate reads a ticket and locks its row until the surrounding
	// transaction ends, where the backend supports row locks.
	GetForUpdate(ctx context.Context, id int64) (*domain.Ticket, error)
	// UpdateIfVersion writes the mutable fields of ticket only if the stored
	// version equals expected.
	UpdateIfVersion(ctx context.Context, ticket *domain.Ticket, expected int) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error)
}

// CommentRepository stores ticket thread messages.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error
	GetByID(ctx context.Context, id int64) (*domain.Comment, error)
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.Comment, error)
	Delete(ctx context.Context, id int64) error
	DeleteByTicket(ctx context.Context, ticketID int64) error
}

// ActionRepository stores timeline entries.
type ActionRepository interface {
	Create(ctx context.Context, action *domain.Action) error
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.Action, error)
	DeleteByTicket(ctx context.Context, ticketID int64) error
}

// UserRepository defines persistence access for directory users.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// GetByLogin matches either username or email.
	GetByLogin(ctx context.Context, login string) (*domain.User, error)
	// ListByRole returns all users, or only those holding role when set.
	ListByRole(ctx context.Context, role *domain.Role) ([]domain.User, error)
}

// Repositories bundles the repositories bound to one connection or transaction.
type Repositories struct {
	Tickets  TicketRepository
	Comments CommentRepository
	Actions  ActionRepository
	Users    UserRepository
}

// TxFunc runs inside a transaction against transaction-bound repositories.
type TxFunc func(ctx context.Context, repos Repositories) error

// Store is a ticket store backend.
type Store interface {
	Repositories() Repositories
	// WithinTx commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn TxFunc) error
	Ping(ctx context.Context) error
	Close() error
}
