package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/deskops/helpdesk-service/internal/auth"
	"github.com/deskops/helpdesk-service/internal/domain"
	"github.com/deskops/helpdesk-service/internal/events"
	"github.com/deskops/helpdesk-service/internal/observability"
	"github.com/deskops/helpdesk-service/internal/repository"
	apperrors "github.com/deskops/helpdesk-service/pkg/util/errorutil"
)

// AssigneeUpdate is present when a request touches assigned_to. A nil
// UserID unassigns the ticket.
type AssigneeUpdate struct {
	UserID *int64
}

// UpdateTicketInput is one optimistic update. ExpectedVersion is the
// version the caller last read.
type UpdateTicketInput struct {
	TicketID        int64
	Status          *domain.TicketStatus
	Priority        *domain.TicketPriority
	Assignee        *AssigneeUpdate
	ExpectedVersion int
}

func (in UpdateTicketInput) fields() []domain.TicketField {
	fields := make([]domain.TicketField, 0, 3)
	if in.Status != nil {
		fields = append(fields, domain.FieldStatus)
	}
	if in.Priority != nil {
		fields = append(fields, domain.FieldPriority)
	}
	if in.Assignee != nil {
		fields = append(fields, domain.FieldAssignedTo)
	}
	return fields
}

func (in UpdateTicketInput) validate() error {
	if len(in.fields()) == 0 {
		return apperrors.NewValidationError("at least one of status, priority or assigned_to is required", nil)
	}
	if in.Status != nil && !in.Status.IsValid() {
		return apperrors.NewFieldValidationError("status", fmt.Sprintf("unknown status %q", *in.Status))
	}
	if in.Priority != nil && !in.Priority.IsValid() {
		return apperrors.NewFieldValidationError("priority", fmt.Sprintf("unknown priority %q", *in.Priority))
	}
	if in.ExpectedVersion < 1 {
		return apperrors.NewFieldValidationError("expected_version", "expected_version must be at least 1")
	}
	return nil
}

// UpdateTicket applies a status, priority or assignment change. The checks
// run in a fixed order inside one transaction: existence, authorization of
// every field, status transition, version. On success the version grows by
// exactly one and each changed field gets its own timeline entry.
func (s *TicketService) UpdateTicket(ctx context.Context, principal domain.Principal, input UpdateTicketInput) (*TicketView, error) {
	if err := input.validate(); err != nil {
		s.metrics.RecordTicketUpdate(observability.UpdateInvalid)
		return nil, err
	}

	var (
		committed *domain.Ticket
		changes   []events.FieldChange
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		current, err := repos.Tickets.GetForUpdate(ctx, input.TicketID)
		if err != nil {
			return storeError(err, "ticket")
		}
		if err := auth.Authorize(principal, current, input.fields()); err != nil {
			return err
		}
		if input.Status != nil && !current.Status.CanTransitionTo(*input.Status) {
			return apperrors.NewInvalidTransition(string(current.Status), string(*input.Status))
		}
		if input.ExpectedVersion != current.Version {
			return apperrors.NewVersionConflict(input.ExpectedVersion, current.Version)
		}

		next, actions, fieldChanges, err := s.apply(ctx, repos, principal, current, input)
		if err != nil {
			return err
		}
		if err := repos.Tickets.UpdateIfVersion(ctx, next, current.Version); err != nil {
			if errors.Is(err, repository.ErrVersionMismatch) {
				return apperrors.NewVersionConflict(input.ExpectedVersion, current.Version+1)
			}
			return storeError(err, "ticket")
		}
		for i := range actions {
			if err := repos.Actions.Create(ctx, &actions[i]); err != nil {
				return storeError(err, "action")
			}
		}
		committed = next
		changes = fieldChanges
		return nil
	})
	if err != nil {
		s.metrics.RecordTicketUpdate(updateOutcome(err))
		return nil, err
	}

	s.metrics.RecordTicketUpdate(observability.UpdateCommitted)
	s.logger.Info("ticket updated",
		zap.Int64("ticket_id", committed.ID),
		zap.Int64("actor_id", principal.UserID),
		zap.Int("version", committed.Version),
		zap.Int("changes", len(changes)))
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketUpdated,
		TicketID: committed.ID,
		Actor:    events.ActorFromPrincipal(principal),
		Payload: events.TicketUpdatedPayload{
			Version:    committed.Version,
			Changes:    changes,
			AssignedTo: committed.AssignedTo,
		},
	})
	return s.view(committed), nil
}

// apply builds the next ticket state and one action per changed field.
// Requested values equal to the current ones are ignored; a request that
// changes nothing is rejected.
func (s *TicketService) apply(ctx context.Context, repos repository.Repositories, principal domain.Principal, current *domain.Ticket, input UpdateTicketInput) (*domain.Ticket, []domain.Action, []events.FieldChange, error) {
	now := s.now().UTC()
	next := *current
	actorID := principal.UserID
	var (
		actions []domain.Action
		changes []events.FieldChange
	)
	record := func(kind domain.ActionKind, field domain.TicketField, from, to string) {
		changes = append(changes, events.FieldChange{Field: field, From: from, To: to})
		actions = append(actions, domain.Action{
			TicketID:  current.ID,
			ActorID:   &actorID,
			ActorName: principal.Name,
			Kind:      kind,
			Detail:    fmt.Sprintf("%s: %s -> %s", field, from, to),
			CreatedAt: now,
		})
	}

	if input.Status != nil {
		next.Status = *input.Status
		record(domain.ActionStatusChanged, domain.FieldStatus, string(current.Status), string(next.Status))
	}

	if input.Priority != nil && *input.Priority != current.Priority {
		next.Priority = *input.Priority
		next.DueAt = s.sla.DueAt(next.Priority, current.CreatedAt)
		record(domain.ActionPriorityChanged, domain.FieldPriority, string(current.Priority), string(next.Priority))
	}

	if input.Assignee != nil && !sameAssignee(current.AssignedTo, input.Assignee.UserID) {
		from := assigneeLabel(current.AssignedTo, current.AssigneeName)
		if input.Assignee.UserID == nil {
			next.AssignedTo = nil
			next.AssigneeName = nil
		} else {
			assignee, err := repos.Users.GetByID(ctx, *input.Assignee.UserID)
			if errors.Is(err, repository.ErrNotFound) {
				return nil, nil, nil, apperrors.NewFieldValidationError("assigned_to", "assignee does not exist")
			}
			if err != nil {
				return nil, nil, nil, storeError(err, "user")
			}
			if !assignee.Role.IsStaff() {
				return nil, nil, nil, apperrors.NewFieldValidationError("assigned_to", "assignee must be an agent or admin")
			}
			id, name := assignee.ID, assignee.Name
			next.AssignedTo = &id
			next.AssigneeName = &name
		}
		record(domain.ActionAssigned, domain.FieldAssignedTo, from, assigneeLabel(next.AssignedTo, next.AssigneeName))
	}

	if len(actions) == 0 {
		return nil, nil, nil, apperrors.NewValidationError("update changes nothing", nil)
	}

	next.Version = current.Version + 1
	next.UpdatedAt = now
	return &next, actions, changes, nil
}

func sameAssignee(current, requested *int64) bool {
	if current == nil || requested == nil {
		return current == nil && requested == nil
	}
	return *current == *requested
}

func assigneeLabel(id *int64, name *string) string {
	switch {
	case id == nil:
		return "unassigned"
	case name != nil && *name != "":
		return *name
	default:
		return "#" + strconv.FormatInt(*id, 10)
	}
}

func updateOutcome(err error) string {
	de := apperrors.ToDomainError(err)
	switch de.Code {
	case apperrors.CodeVersionConflict:
		return observability.UpdateVersionConflict
	case apperrors.CodeForbidden:
		return observability.UpdateForbidden
	case apperrors.CodeInvalidTransition:
		return observability.UpdateInvalidTransition
	case apperrors.CodeNotFound:
		return observability.UpdateNotFound
	case apperrors.CodeValidation:
		return observability.UpdateInvalid
	}
	return observability.UpdateFailed
}
