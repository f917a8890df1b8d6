package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskops/helpdesk-service/internal/auth"
	"github.com/deskops/helpdesk-service/internal/domain"
	"github.com/deskops/helpdesk-service/internal/events"
	"github.com/deskops/helpdesk-service/internal/repository"
	"github.com/deskops/helpdesk-service/internal/repository/repositorytest"
	apperrors "github.com/deskops/helpdesk-service/pkg/util/errorutil"
)

func TestAddComment(t *testing.T) {
	h := newHarness(t)
	ticket := h.createTicket(t, h.user, domain.TicketPriorityMedium)

	h.clock.Set(repositorytest.Base.Add(time.Minute))
	comment, err := h.ledger.AddComment(h.ctx, h.user, ticket.ID, "  still burning  ")
	require.NoError(t, err)
	assert.NotZero(t, comment.ID)
	assert.Equal(t, "still burning", comment.Content)
	assert.Equal(t, "Uma User", comment.AuthorName)

	_, err = h.ledger.AddComment(h.ctx, h.agent, ticket.ID, "on my way")
	require.NoError(t, err)

	comments, err := h.ledger.ListComments(h.ctx, h.user, ticket.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "still burning", comments[0].Content)
	assert.Equal(t, "on my way", comments[1].Content)

	assert.Equal(t, 1, h.reload(t, ticket.ID).Version)

	actions, err := h.ledger.ListActions(h.ctx, h.agent, ticket.ID)
	require.NoError(t, err)
	require.Len(t, actions, 3)
	assert.Equal(t, domain.ActionCommentAdded, actions[1].Kind)
	assert.Equal(t, domain.ActionCommentAdded, actions[2].Kind)

	added := h.events.ofType(events.EventCommentAdded)
	require.Len(t, added, 2)
	payload := added[0].Payload.(events.CommentPayload)
	assert.Equal(t, comment.ID, payload.CommentID)
}

func TestAddComment_Rejections(t *testing.T) {
	h := newHarness(t)
	ticket := h.createTicket(t, h.user, domain.TicketPriorityMedium)
	closed := h.createTicket(t, h.user, domain.TicketPriorityLow)
	_, err := h.tickets.UpdateTicket(h.ctx, h.agent, UpdateTicketInput{
		TicketID: closed.ID, Status: statusPtr(domain.TicketStatusClosed), ExpectedVersion: 1,
	})
	require.NoError(t, err)

	tests := []struct {
		name      string
		principal domain.Principal
		ticketID  int64
		content   string
		code      string
	}{
		{"missing ticket", h.admin, 999, "hello", apperrors.CodeNotFound},
		{"not visible", h.other, ticket.ID, "hello", apperrors.CodeForbidden},
		{"closed ticket", h.admin, closed.ID, "hello", apperrors.CodeForbidden},
		{"blank content", h.user, ticket.ID, "   ", apperrors.CodeValidation},
		{"too long", h.user, ticket.ID, strings.Repeat("x", MaxCommentLength+1), apperrors.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.ledger.AddComment(h.ctx, tt.principal, tt.ticketID, tt.content)
			assert.True(t, apperrors.HasCode(err, tt.code), "got %v", err)
		})
	}

	comments, err := h.ledger.ListComments(h.ctx, h.admin, ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, comments)

	_, err = h.ledger.AddComment(h.ctx, h.admin, closed.ID, "late")
	de := domainErr(t, err)
	assert.Equal(t, auth.ReasonClosed, de.Details["reason"])
}

func TestDeleteComment_AdminOnClosedTicket(t *testing.T) {
	h := newHarness(t)
	ticket := h.createTicket(t, h.user, domain.TicketPriorityHigh)
	comment, err := h.ledger.AddComment(h.ctx, h.user, ticket.ID, "rude words")
	require.NoError(t, err)

	_, err = h.tickets.UpdateTicket(h.ctx, h.agent, UpdateTicketInput{
		TicketID: ticket.ID, Status: statusPtr(domain.TicketStatusClosed), ExpectedVersion: 1,
	})
	require.NoError(t, err)

	err = h.ledger.DeleteComment(h.ctx, h.agent, comment.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	err = h.ledger.DeleteComment(h.ctx, h.user, comment.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	require.NoError(t, h.ledger.DeleteComment(h.ctx, h.admin, comment.ID))

	comments, err := h.ledger.ListComments(h.ctx, h.admin, ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, comments)

	stored := h.reload(t, ticket.ID)
	assert.Equal(t, 2, stored.Version)
	assert.Equal(t, domain.TicketStatusClosed, stored.Status)

	actions := h.actions(t, ticket.ID)
	last := actions[len(actions)-1]
	assert.Equal(t, domain.ActionCommentDeleted, last.Kind)
	require.NotNil(t, last.ActorID)
	assert.Equal(t, h.seed.Admin.ID, *last.ActorID)
	assert.Len(t, h.events.ofType(events.EventCommentDeleted), 1)
}

func TestDeleteComment_ChecksRoleBeforeExistence(t *testing.T) {
	h := newHarness(t)

	err := h.ledger.DeleteComment(h.ctx, h.agent, 999)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	err = h.ledger.DeleteComment(h.ctx, h.admin, 999)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestListLedger_Visibility(t *testing.T) {
	h := newHarness(t)
	ticket := h.createTicket(t, h.user, domain.TicketPriorityMedium)

	_, err := h.ledger.ListComments(h.ctx, h.other, ticket.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = h.ledger.ListActions(h.ctx, h.other, ticket.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = h.ledger.ListActions(h.ctx, h.admin, 999)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

type lockingTickets struct {
	repository.TicketRepository
	mu     *sync.Mutex
	locked *[]int64
}

func (l lockingTickets) GetForUpdate(ctx context.Context, id int64) (*domain.Ticket, error) {
	l.mu.Lock()
	*l.locked = append(*l.locked, id)
	l.mu.Unlock()
	return l.TicketRepository.GetForUpdate(ctx, id)
}

// lockRecordingStore records which tickets were row-locked inside transactions.
type lockRecordingStore struct {
	repository.Store
	mu     sync.Mutex
	locked []int64
}

func (s *lockRecordingStore) WithinTx(ctx context.Context, fn repository.TxFunc) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		repos.Tickets = lockingTickets{TicketRepository: repos.Tickets, mu: &s.mu, locked: &s.locked}
		return fn(ctx, repos)
	})
}

func TestAddComment_LocksTicketRow(t *testing.T) {
	h := newHarness(t)
	ticket := h.createTicket(t, h.user, domain.TicketPriorityMedium)

	store := &lockRecordingStore{Store: h.store}
	ledger := NewLedgerService(TicketDependencies{Store: store, Clock: h.clock.Now})

	_, err := ledger.AddComment(h.ctx, h.user, ticket.ID, "checking in")
	require.NoError(t, err)
	assert.Equal(t, []int64{ticket.ID}, store.locked)
}
