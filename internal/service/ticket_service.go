package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/deskops/helpdesk-service/internal/domain"
	"github.com/deskops/helpdesk-service/internal/events"
	"github.com/deskops/helpdesk-service/internal/observability"
	"github.com/deskops/helpdesk-service/internal/repository"
	"github.com/deskops/helpdesk-service/internal/sla"
	apperrors "github.com/deskops/helpdesk-service/pkg/util/errorutil"
)

// Field limits.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 5000
	MaxCommentLength     = 5000
)

// Clock returns the current time.
type Clock func() time.Time

// TicketService coordinates ticket workflows.
type TicketService struct {
	store      repository.Store
	sla        *sla.Engine
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        Clock
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store      repository.Store
	SLA        *sla.Engine
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	// Clock defaults to time.Now.
	Clock Clock
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		store:      deps.Store,
		sla:        deps.SLA,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     loggerOrNop(deps.Logger),
		now:        clockOrNow(deps.Clock),
	}
}

// TicketView is a ticket with its SLA status at read time.
type TicketView struct {
	Ticket    domain.Ticket
	SLAStatus domain.SLAStatus
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	// Priority defaults to medium.
	Priority domain.TicketPriority
}

// ListTicketsInput describes list filters. Visibility is applied from the
// principal, never from the input.
type ListTicketsInput struct {
	Search       string
	Status       *domain.TicketStatus
	Priority     *domain.TicketPriority
	BreachedOnly bool
	Limit        int
	Offset       int
}

// TicketPage is one page of a listing plus the filter that produced it.
// Role is the caller's role, which decided the visibility scope.
type TicketPage struct {
	Items  []TicketView
	Total  int
	Filter ListTicketsInput
	Role   domain.Role
}

// CreateTicket files a new ticket for the principal.
func (s *TicketService) CreateTicket(ctx context.Context, principal domain.Principal, input TicketCreateInput) (*TicketView, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	switch {
	case title == "":
		return nil, apperrors.NewFieldValidationError("title", "title is required")
	case utf8.RuneCountInString(title) > MaxTitleLength:
		return nil, apperrors.NewFieldValidationError("title", fmt.Sprintf("title must be at most %d characters", MaxTitleLength))
	case description == "":
		return nil, apperrors.NewFieldValidationError("description", "description is required")
	case utf8.RuneCountInString(description) > MaxDescriptionLength:
		return nil, apperrors.NewFieldValidationError("description", fmt.Sprintf("description must be at most %d characters", MaxDescriptionLength))
	case !priority.IsValid():
		return nil, apperrors.NewFieldValidationError("priority", fmt.Sprintf("unknown priority %q", priority))
	}

	now := s.now().UTC()
	ticket := &domain.Ticket{
		Title:       title,
		Description: description,
		Status:      domain.TicketStatusOpen,
		Priority:    priority,
		CreatedBy:   principal.UserID,
		CreatorName: principal.Name,
		CreatedAt:   now,
		UpdatedAt:   now,
		DueAt:       s.sla.DueAt(priority, now),
		Version:     1,
	}

	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Tickets.Create(ctx, ticket); err != nil {
			return storeError(err, "ticket")
		}
		return appendAction(ctx, repos, ticket.ID, principal, domain.ActionCreated,
			fmt.Sprintf("ticket created with %s priority", priority), now)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ticket created",
		zap.Int64("ticket_id", ticket.ID),
		zap.Int64("actor_id", principal.UserID),
		zap.String("priority", string(priority)))
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    events.ActorFromPrincipal(principal),
		Payload: events.TicketCreatedPayload{
			Title:    ticket.Title,
			Priority: ticket.Priority,
			DueAt:    ticket.DueAt,
		},
	})
	return s.view(ticket), nil
}

// GetTicket reads one ticket. Plain users may only read their own.
func (s *TicketService) GetTicket(ctx context.Context, principal domain.Principal, id int64) (*TicketView, error) {
	ticket, err := s.visibleTicket(ctx, s.store.Repositories(), principal, id)
	if err != nil {
		return nil, err
	}
	return s.view(ticket), nil
}

// ListTickets returns one page of tickets visible to the principal.
func (s *TicketService) ListTickets(ctx context.Context, principal domain.Principal, input ListTicketsInput) (*TicketPage, error) {
	if input.Status != nil && !input.Status.IsValid() {
		return nil, apperrors.NewFieldValidationError("status", fmt.Sprintf("unknown status %q", *input.Status))
	}
	if input.Priority != nil && !input.Priority.IsValid() {
		return nil, apperrors.NewFieldValidationError("priority", fmt.Sprintf("unknown priority %q", *input.Priority))
	}

	filter := repository.TicketFilter{
		Status:       input.Status,
		Priority:     input.Priority,
		Search:       strings.TrimSpace(input.Search),
		BreachedOnly: input.BreachedOnly,
		Now:          s.now().UTC(),
		Limit:        input.Limit,
		Offset:       input.Offset,
	}.Normalize()
	if !principal.Role.IsStaff() {
		own := principal.UserID
		filter.CreatedBy = &own
	}

	tickets, total, err := s.store.Repositories().Tickets.List(ctx, filter)
	if err != nil {
		return nil, storeError(err, "ticket")
	}

	items := make([]TicketView, 0, len(tickets))
	for i := range tickets {
		items = append(items, *s.viewAt(&tickets[i], filter.Now))
	}

	input.Search = filter.Search
	input.Limit = filter.Limit
	input.Offset = filter.Offset
	return &TicketPage{Items: items, Total: total, Filter: input, Role: principal.Role}, nil
}

// DeleteTicket removes a ticket with its comments and timeline. Admins may
// delete any ticket; a creator may delete their own until it is closed.
func (s *TicketService) DeleteTicket(ctx context.Context, principal domain.Principal, id int64) error {
	var deleted *domain.Ticket
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		ticket, err := repos.Tickets.GetForUpdate(ctx, id)
		if err != nil {
			return storeError(err, "ticket")
		}
		if !principal.IsAdmin() {
			if !ticket.IsCreator(principal.UserID) {
				return apperrors.NewForbidden("only the creator or an admin may delete a ticket")
			}
			if ticket.IsClosed() {
				return apperrors.NewForbidden("closed tickets cannot be deleted")
			}
		}
		if err := repos.Comments.DeleteByTicket(ctx, id); err != nil {
			return storeError(err, "comment")
		}
		if err := repos.Actions.DeleteByTicket(ctx, id); err != nil {
			return storeError(err, "action")
		}
		if err := repos.Tickets.Delete(ctx, id); err != nil {
			return storeError(err, "ticket")
		}
		deleted = ticket
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("ticket deleted", zap.Int64("ticket_id", id), zap.Int64("actor_id", principal.UserID))
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketDeleted,
		TicketID: id,
		Actor:    events.ActorFromPrincipal(principal),
		Payload:  events.TicketDeletedPayload{Title: deleted.Title},
	})
	return nil
}

// SLAStatus classifies ticket at the service clock.
func (s *TicketService) SLAStatus(ticket *domain.Ticket) domain.SLAStatus {
	return s.sla.StatusOf(ticket, s.now())
}

func (s *TicketService) visibleTicket(ctx context.Context, repos repository.Repositories, principal domain.Principal, id int64) (*domain.Ticket, error) {
	ticket, err := repos.Tickets.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "ticket")
	}
	if !principal.CanView(ticket) {
		return nil, apperrors.NewForbidden("ticket belongs to another user")
	}
	return ticket, nil
}

func (s *TicketService) view(ticket *domain.Ticket) *TicketView {
	return s.viewAt(ticket, s.now())
}

func (s *TicketService) viewAt(ticket *domain.Ticket, now time.Time) *TicketView {
	return &TicketView{Ticket: *ticket, SLAStatus: s.sla.StatusOf(ticket, now)}
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	publishEvent(ctx, s.dispatcher, s.logger, s.now, event)
}

func publishEvent(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, now Clock, event events.Event) {
	if dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = now().UTC()
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.Int64("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

func appendAction(ctx context.Context, repos repository.Repositories, ticketID int64, actor domain.Principal, kind domain.ActionKind, detail string, at time.Time) error {
	actorID := actor.UserID
	action := &domain.Action{
		TicketID:  ticketID,
		ActorID:   &actorID,
		ActorName: actor.Name,
		Kind:      kind,
		Detail:    detail,
		CreatedAt: at,
	}
	if err := repos.Actions.Create(ctx, action); err != nil {
		return storeError(err, "action")
	}
	return nil
}

// storeError translates repository sentinels into API errors.
func storeError(err error, resource string) error {
	var domainErr *apperrors.DomainError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(resource, nil)
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.NewConflict(resource+" already exists", nil)
	}
	return apperrors.NewInternalError(err)
}

func loggerOrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func clockOrNow(clock Clock) Clock {
	if clock == nil {
		return time.Now
	}
	return clock
}

func preview(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "…"
}
