package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/deskops/helpdesk-service/internal/auth"
	"github.com/deskops/helpdesk-service/internal/domain"
	"github.com/deskops/helpdesk-service/internal/events"
	"github.com/deskops/helpdesk-service/internal/observability"
	"github.com/deskops/helpdesk-service/internal/repository"
	apperrors "github.com/deskops/helpdesk-service/pkg/util/errorutil"
)

const commentPreviewLength = 80

// LedgerService manages ticket comments and the append-only timeline.
// Neither comments nor timeline entries change the ticket version.
type LedgerService struct {
	store      repository.Store
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        Clock
}

// NewLedgerService shares the ticket service collaborators.
func NewLedgerService(deps TicketDependencies) *LedgerService {
	return &LedgerService{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     loggerOrNop(deps.Logger),
		now:        clockOrNow(deps.Clock),
	}
}

// AddComment appends a comment to an open or in-progress ticket.
func (s *LedgerService) AddComment(ctx context.Context, principal domain.Principal, ticketID int64, content string) (*domain.Comment, error) {
	content = strings.TrimSpace(content)

	var comment *domain.Comment
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		// Locked so a concurrent close cannot land between the check and the insert.
		ticket, err := repos.Tickets.GetForUpdate(ctx, ticketID)
		if err != nil {
			return storeError(err, "ticket")
		}
		if !principal.CanView(ticket) {
			return apperrors.NewForbidden("ticket belongs to another user")
		}
		if ticket.IsClosed() {
			return apperrors.NewForbiddenField("comment", auth.ReasonClosed)
		}
		switch {
		case content == "":
			return apperrors.NewFieldValidationError("content", "comment cannot be empty")
		case utf8.RuneCountInString(content) > MaxCommentLength:
			return apperrors.NewFieldValidationError("content", fmt.Sprintf("comment must be at most %d characters", MaxCommentLength))
		}

		now := s.now().UTC()
		comment = &domain.Comment{
			TicketID:   ticketID,
			AuthorID:   principal.UserID,
			AuthorName: principal.Name,
			Content:    content,
			CreatedAt:  now,
		}
		if err := repos.Comments.Create(ctx, comment); err != nil {
			return storeError(err, "comment")
		}
		return appendAction(ctx, repos, ticketID, principal, domain.ActionCommentAdded,
			fmt.Sprintf("comment #%d added", comment.ID), now)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordComment("added")
	s.logger.Info("comment added",
		zap.Int64("ticket_id", ticketID),
		zap.Int64("comment_id", comment.ID),
		zap.Int64("actor_id", principal.UserID))
	publishEvent(ctx, s.dispatcher, s.logger, s.now, events.Event{
		Type:     events.EventCommentAdded,
		TicketID: ticketID,
		Actor:    events.ActorFromPrincipal(principal),
		Payload: events.CommentPayload{
			CommentID:   comment.ID,
			AuthorID:    comment.AuthorID,
			BodyPreview: preview(comment.Content, commentPreviewLength),
		},
	})
	return comment, nil
}

// DeleteComment removes a comment. Only admins may delete, closed tickets
// included; the removal itself is recorded on the timeline.
func (s *LedgerService) DeleteComment(ctx context.Context, principal domain.Principal, commentID int64) error {
	if !principal.IsAdmin() {
		return apperrors.NewForbidden("only admins may delete comments")
	}

	var deleted *domain.Comment
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		comment, err := repos.Comments.GetByID(ctx, commentID)
		if err != nil {
			return storeError(err, "comment")
		}
		if err := repos.Comments.Delete(ctx, commentID); err != nil {
			return storeError(err, "comment")
		}
		detail := fmt.Sprintf("comment #%d by %s deleted", comment.ID, comment.AuthorName)
		if err := appendAction(ctx, repos, comment.TicketID, principal, domain.ActionCommentDeleted, detail, s.now().UTC()); err != nil {
			return err
		}
		deleted = comment
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.RecordComment("deleted")
	s.logger.Info("comment deleted",
		zap.Int64("ticket_id", deleted.TicketID),
		zap.Int64("comment_id", commentID),
		zap.Int64("actor_id", principal.UserID))
	publishEvent(ctx, s.dispatcher, s.logger, s.now, events.Event{
		Type:     events.EventCommentDeleted,
		TicketID: deleted.TicketID,
		Actor:    events.ActorFromPrincipal(principal),
		Payload: events.CommentPayload{
			CommentID:   deleted.ID,
			AuthorID:    deleted.AuthorID,
			BodyPreview: preview(deleted.Content, commentPreviewLength),
		},
	})
	return nil
}

// ListComments returns the thread of a ticket, oldest first.
func (s *LedgerService) ListComments(ctx context.Context, principal domain.Principal, ticketID int64) ([]domain.Comment, error) {
	repos := s.store.Repositories()
	if err := s.checkVisible(ctx, repos, principal, ticketID); err != nil {
		return nil, err
	}
	comments, err := repos.Comments.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, storeError(err, "comment")
	}
	return comments, nil
}

// ListActions returns the timeline of a ticket, oldest first.
func (s *LedgerService) ListActions(ctx context.Context, principal domain.Principal, ticketID int64) ([]domain.Action, error) {
	repos := s.store.Repositories()
	if err := s.checkVisible(ctx, repos, principal, ticketID); err != nil {
		return nil, err
	}
	actions, err := repos.Actions.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, storeError(err, "action")
	}
	return actions, nil
}

func (s *LedgerService) checkVisible(ctx context.Context, repos repository.Repositories, principal domain.Principal, ticketID int64) error {
	ticket, err := repos.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		return storeError(err, "ticket")
	}
	if !principal.CanView(ticket) {
		return apperrors.NewForbidden("ticket belongs to another user")
	}
	return nil
}
