package service

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskops/helpdesk-service/internal/auth"
	"github.com/deskops/helpdesk-service/internal/domain"
	"github.com/deskops/helpdesk-service/internal/events"
	"github.com/deskops/helpdesk-service/internal/repository/repositorytest"
	apperrors "github.com/deskops/helpdesk-service/pkg/util/errorutil"
)

func scrape(t *testing.T, h *harness) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func domainErr(t *testing.T, err error) *apperrors.DomainError {
	t.Helper()
	require.Error(t, err)
	de := apperrors.ToDomainError(err)
	require.NotNil(t, de)
	return de
}

func TestUpdateTicket_CommitIncrementsVersion(t *testing.T) {
	h := newHarness(t)
	ticket := h.createTicket(t, h.user, domain.TicketPriorityMedium)

	h.clock.Set(repositorytest.Base.Add(10 * time.Minute))
	view, err := h.tickets.UpdateTicket(h.ctx, h.agent, UpdateTicketInput{
		TicketID:        ticket.ID,
		Status:          statusPtr(domain.TicketStatusInProgress),
		ExpectedVersion: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, view.Ticket.Version)
	assert.Equal(t, domain.TicketStatusInProgress, view.Ticket.Status)
	assert.Equal(t, repositorytest.Base.Add(10*time.Minute), view.Ticket.UpdatedAt)
	assert.Equal(t, ticket.DueAt, view.Ticket.DueAt)

	stored := h.reload(t, ticket.ID)
	assert.Equal(t, 2, stored.Version)
	assert.Equal(t, domain.TicketStatusInProgress, stored.Status)

	actions := h.actions(t, ticket.ID)
	require.Len(t, actions, 2)
	assert.Equal(t, domain.ActionCreated, actions[0].Kind)
	assert.Equal(t, domain.ActionStatusChanged, actions[1].Kind)
	assert.Equal(t, "status: open -> in_progress", actions[1].Detail)
	assert.Equal(t, "Ada Agent", actions[1].Actor())

	updated := h.events.ofType(events.EventTicketUpdated)
	require.Len(t, updated, 1)
	payload, ok := updated[0].Payload.(events.TicketUpdatedPayload)
	require.True(t, ok)
	assert.Equal(t, 2, payload.Version)
	assert.Equal(t, []events.FieldChange{{Field: domain.FieldStatus, From: "open", To: "in_progress"}}, payload.Changes)
	assert.NotEmpty(t, updated[0].ID)
}

func TestUpdateTicket_OneActionPerChangedField(t *testing.T) {
	h := newHarness(t)
	ticket := h.createTicket(t, h.user, domain.TicketPriorityLow)

	view, err := h.tickets.UpdateTicket(h.ctx, h.admin, UpdateTicketInput{
		TicketID:        ticket.ID,
		Status:          statusPtr(domain.TicketStatusInProgress),
		Priority:        priorityPtr(domain.TicketPriorityHigh),
		Assignee:        &AssigneeUpdate{UserID: idPtr(h.seed.Agent.ID)},
		ExpectedVersion: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, view.Ticket.Version)
	require.NotNil(t, view.Ticket.AssignedTo)
	assert.Equal(t, h.seed.Agent.ID, *view.Ticket.AssignedTo)
	require.NotNil(t, view.Ticket.AssigneeName)
	assert.Equal(t, "Ada Agent", *view.Ticket.AssigneeName)

	actions := h.actions(t, ticket.ID)
	require.Len(t, actions, 4)
	assert.Equal(t, domain.ActionStatusChanged, actions[1].Kind)
	assert.Equal(t, domain.ActionPriorityChanged, actions[2].Kind)
	assert.Equal(t, domain.ActionAssigned, actions[3].Kind)
	assert.Equal(t, "assigned_to: unassigned -> Ada Agent", actions[3].Detail)
}

func TestUpdateTicket_StaleVersion(t *testing.T) {
	h := newHarness(t)
	ticket := h.createTicket(t, h.user, domain.TicketPriorityMedium)

	_, err := h.tickets.UpdateTicket(h.ctx, h.agent, UpdateTicketInput{
		TicketID: ticket.ID, Status: statusPtr(domain.TicketStatusInProgress), ExpectedVersion: 1,
	})
	require.NoError(t, err)
	before := h.reload(t, ticket.ID)
	h.clock.Set(repositorytest.Base.Add(time.Hour))

	_, err = h.tickets.UpdateTicket(h.ctx, h.admin, UpdateTicketInput{
		TicketID: ticket.ID, Priority: priorityPtr(domain.TicketPriorityHigh), ExpectedVersion: 1,
	})
	de := domainErr(t, err)
	assert.Equal(t, apperrors.CodeVersionConflict, de.Code)
	assert.Equal(t, 409, de.HTTPStatus)
	assert.Equal(t, 1, de.Details["expected_version"])
	assert.Equal(t, 2, de.Details["current_version"])

	assert.Equal(t, *before, *h.reload(t, ticket.ID))
	assert.Len(t, h.actions(t, ticket.ID), 2)
	assert.Contains(t, scrape(t, h), `helpdesk_ticket_updates_total{result="version_conflict"} 1`)
	assert.Contains(t, scrape(t, h), `helpdesk_ticket_updates_total{result="committed"} 1`)
}

func TestUpdateTicket_InvalidTransitions(t *testing.T) {
	tests := []struct {
		name string
		from []domain.TicketStatus
		to   domain.TicketStatus
	}{
		{"self transition", nil, domain.TicketStatusOpen},
		{"back to open", []domain.TicketStatus{domain.TicketStatusInProgress}, domain.TicketStatusOpen},
		{"in progress again", []domain.TicketStatus{domain.TicketStatusInProgress}, domain.TicketStatusInProgress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ticket := h.createTicket(t, h.user, domain.TicketPriorityMedium)
			version := 1
			for _, step := range tt.from {
				view, err := h.tickets.UpdateTicket(h.ctx, h.agent, UpdateTicketInput{
					TicketID: ticket.ID, Status: statusPtr(step), ExpectedVersion: version,
				})
				require.NoError(t, err)
				version = view.Ticket.Version
			}
			before := len(h.actions(t, ticket.ID))

			_, err := h.tickets.UpdateTicket(h.ctx, h.agent, UpdateTicketInput{
				TicketID: ticket.ID, Status: statusPtr(tt.to), ExpectedVersion: version,
			})
			de := domainErr(t, err)
			assert.Equal(t, apperrors.CodeInvalidTransition, de.Code)
			assert.Equal(t, string(tt.to), de.Details["to"])
			assert.Equal(t, version, h.reload(t, ticket.ID).Version)
			assert.Len(t, h.actions(t, ticket.ID), before)
		})
	}
}

func TestUpdateTicket_TransitionCheckedBeforeVersion(t *testing.T) {
	h := newHarness(t)
	ticket := h.createTicket(t, h.user, domain.TicketPriorityMedium)

	_, err := h.tickets.UpdateTicket(h.ctx, h.agent, UpdateTicketInput{
		TicketID: ticket.ID, Status: statusPtr(domain.TicketStatusOpen), ExpectedVersion: 7,
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))
}

func TestUpdateTicket_AuthorizationMatrix(t *testing.T) {
	h := newHarness(t)
	ticket := h.createTicket(t, h.user, domain.TicketPriorityMedium)

	t.Run("user cannot change status", func(t *testing.T) {
		_, err := h.tickets.UpdateTicket(h.ctx, h.user, UpdateTicketInput{
			TicketID: ticket.ID, Status: statusPtr(domain.TicketStatusClosed), ExpectedVersion: 1,
		})
		de := domainErr(t, err)
		assert.Equal(t, apperrors.CodeForbidden, de.Code)
		assert.Equal(t, "status", de.Details["field"])
	})

	t.Run("user cannot assign", func(t *testing.T) {
		_, err := h.tickets.UpdateTicket(h.ctx, h.user, UpdateTicketInput{
			TicketID: ticket.ID, Assignee: &AssigneeUpdate{UserID: idPtr(h.seed.Agent.ID)}, ExpectedVersion: 1,
		})
		assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
	})

	t.Run("other user cannot change priority", func(t *testing.T) {
		_, err := h.tickets.UpdateTicket(h.ctx, h.other, UpdateTicketInput{
			TicketID: ticket.ID, Priority: priorityPtr(domain.TicketPriorityHigh), ExpectedVersion: 1,
		})
		de := domainErr(t, err)
		assert.Equal(t, apperrors.CodeForbidden, de.Code)
		assert.Equal(t, auth.ReasonCreator, de.Details["reason"])
	})

	t.Run("mixed request is all or nothing", func(t *testing.T) {
		_, err := h.tickets.UpdateTicket(h.ctx, h.user, UpdateTicketInput{
			TicketID:        ticket.ID,
			Priority:        priorityPtr(domain.TicketPriorityHigh),
			Status:          statusPtr(domain.TicketStatusInProgress),
			ExpectedVersion: 1,
		})
		assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
		stored := h.reload(t, ticket.ID)
		assert.Equal(t, domain.TicketPriorityMedium, stored.Priority)
		assert.Equal(t, 1, stored.Version)
	})

	t.Run("creator may change priority", func(t *testing.T) {
		view, err := h.tickets.UpdateTicket(h.ctx, h.user, UpdateTicketInput{
			TicketID: ticket.ID, Priority: priorityPtr(domain.TicketPriorityHigh), ExpectedVersion: 1,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.TicketPriorityHigh, view.Ticket.Priority)
		assert.Equal(t, 2, view.Ticket.Version)
	})
}

func TestUpdateTicket_ClosedIsImmutable(t *testing.T) {
	h := newHarness(t)
	ticket := h.createTicket(t, h.user, domain.TicketPriorityMedium)
	_, err := h.tickets.UpdateTicket(h.ctx, h.agent, UpdateTicketInput{
		TicketID: ticket.ID, Status: statusPtr(domain.TicketStatusClosed), ExpectedVersion: 1,
	})
	require.NoError(t, err)

	for name, input := range map[string]UpdateTicketInput{
		"priority": {TicketID: ticket.ID, Priority: priorityPtr(domain.TicketPriorityLow), ExpectedVersion: 2},
		"status":   {TicketID: ticket.ID, Status: statusPtr(domain.TicketStatusOpen), ExpectedVersion: 2},
		"assignee": {TicketID: ticket.ID, Assignee: &AssigneeUpdate{UserID: idPtr(h.seed.Agent.ID)}, ExpectedVersion: 2},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := h.tickets.UpdateTicket(h.ctx, h.admin, input)
			de := domainErr(t, err)
			assert.Equal(t, apperrors.CodeForbidden, de.Code)
			assert.Equal(t, auth.ReasonClosed, de.Details["reason"])
		})
	}
	assert.Equal(t, 2, h.reload(t, ticket.ID).Version)
}

func TestUpdateTicket_MissingTicket(t *testing.T) {
	h := newHarness(t)
	_, err := h.tickets.UpdateTicket(h.ctx, h.admin, UpdateTicketInput{
		TicketID: 999, Status: statusPtr(domain.TicketStatusClosed), ExpectedVersion: 1,
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestUpdateTicket_InputValidation(t *testing.T) {
	h := newHarness(t)
	ticket := h.createTicket(t, h.user, domain.TicketPriorityMedium)

	tests := []struct {
		name  string
		input UpdateTicketInput
		field string
	}{
		{"no fields", UpdateTicketInput{TicketID: ticket.ID, ExpectedVersion: 1}, ""},
		{"unknown status", UpdateTicketInput{TicketID: ticket.ID, Status: statusPtr("done"), ExpectedVersion: 1}, "status"},
		{"unknown priority", UpdateTicketInput{TicketID: ticket.ID, Priority: priorityPtr("urgent"), ExpectedVersion: 1}, "priority"},
		{"missing version", UpdateTicketInput{TicketID: ticket.ID, Priority: priorityPtr(domain.TicketPriorityHigh)}, "expected_version"},
		{"same priority", UpdateTicketInput{TicketID: ticket.ID, Priority: priorityPtr(domain.TicketPriorityMedium), ExpectedVersion: 1}, ""},
		{"unknown assignee", UpdateTicketInput{TicketID: ticket.ID, Assignee: &AssigneeUpdate{UserID: idPtr(999)}, ExpectedVersion: 1}, "assigned_to"},
		{"plain user as assignee", UpdateTicketInput{TicketID: ticket.ID, Assignee: &AssigneeUpdate{UserID: idPtr(h.seed.Other.ID)}, ExpectedVersion: 1}, "assigned_to"},
		{"already unassigned", UpdateTicketInput{TicketID: ticket.ID, Assignee: &AssigneeUpdate{}, ExpectedVersion: 1}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.tickets.UpdateTicket(h.ctx, h.admin, tt.input)
			de := domainErr(t, err)
			assert.Equal(t, apperrors.CodeValidation, de.Code)
			if tt.field != "" {
				assert.Equal(t, tt.field, de.Details["field"])
			}
		})
	}
	assert.Equal(t, 1, h.reload(t, ticket.ID).Version)
	assert.Len(t, h.actions(t, ticket.ID), 1)
}

func TestUpdateTicket_Unassign(t *testing.T) {
	h := newHarness(t)
	ticket := h.createTicket(t, h.user, domain.TicketPriorityMedium)

	_, err := h.tickets.UpdateTicket(h.ctx, h.admin, UpdateTicketInput{
		TicketID: ticket.ID, Assignee: &AssigneeUpdate{UserID: idPtr(h.seed.Agent.ID)}, ExpectedVersion: 1,
	})
	require.NoError(t, err)

	view, err := h.tickets.UpdateTicket(h.ctx, h.agent, UpdateTicketInput{
		TicketID: ticket.ID, Assignee: &AssigneeUpdate{}, ExpectedVersion: 2,
	})
	require.NoError(t, err)
	assert.Nil(t, view.Ticket.AssignedTo)
	assert.Nil(t, h.reload(t, ticket.ID).AssignedTo)

	actions := h.actions(t, ticket.ID)
	assert.Equal(t, "assigned_to: Ada Agent -> unassigned", actions[len(actions)-1].Detail)
}

func TestUpdateTicket_PriorityChangeRecomputesDeadline(t *testing.T) {
	h := newHarness(t)
	created := repositorytest.Base
	ticket := h.createTicket(t, h.user, domain.TicketPriorityMedium)
	assert.Equal(t, created.Add(24*time.Hour), ticket.DueAt)

	h.clock.Set(created.Add(time.Hour))
	view, err := h.tickets.UpdateTicket(h.ctx, h.agent, UpdateTicketInput{
		TicketID: ticket.ID, Priority: priorityPtr(domain.TicketPriorityHigh), ExpectedVersion: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, created.Add(4*time.Hour), view.Ticket.DueAt)
	assert.Equal(t, domain.SLAOnTrack, view.SLAStatus)

	h.clock.Set(created.Add(3*time.Hour + 59*time.Minute))
	got, err := h.tickets.GetTicket(h.ctx, h.user, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SLADueSoon, got.SLAStatus)

	h.clock.Set(created.Add(4*time.Hour + time.Minute))
	got, err = h.tickets.GetTicket(h.ctx, h.user, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SLABreached, got.SLAStatus)

	h.clock.Set(created.Add(5 * time.Hour))
	view, err = h.tickets.UpdateTicket(h.ctx, h.agent, UpdateTicketInput{
		TicketID: ticket.ID, Status: statusPtr(domain.TicketStatusClosed), ExpectedVersion: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SLAClosed, view.SLAStatus)
	assert.Equal(t, created.Add(4*time.Hour), view.Ticket.DueAt)
}

func TestUpdateTicket_ConcurrentWritersOneWins(t *testing.T) {
	h := newHarness(t)
	ticket := h.createTicket(t, h.user, domain.TicketPriorityMedium)

	_, err := h.tickets.UpdateTicket(h.ctx, h.agent, UpdateTicketInput{
		TicketID: ticket.ID, Priority: priorityPtr(domain.TicketPriorityLow), ExpectedVersion: 1,
	})
	require.NoError(t, err)
	_, err = h.tickets.UpdateTicket(h.ctx, h.agent, UpdateTicketInput{
		TicketID: ticket.ID, Status: statusPtr(domain.TicketStatusInProgress), ExpectedVersion: 2,
	})
	require.NoError(t, err)

	inputs := []UpdateTicketInput{
		{TicketID: ticket.ID, Priority: priorityPtr(domain.TicketPriorityHigh), ExpectedVersion: 3},
		{TicketID: ticket.ID, Assignee: &AssigneeUpdate{UserID: idPtr(h.seed.Agent.ID)}, ExpectedVersion: 3},
	}
	errs := make([]error, len(inputs))
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := range inputs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = h.tickets.UpdateTicket(h.ctx, h.admin, inputs[i])
		}(i)
	}
	close(start)
	wg.Wait()

	var committed, conflicted int
	for _, err := range errs {
		switch {
		case err == nil:
			committed++
		case apperrors.HasCode(err, apperrors.CodeVersionConflict):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, committed)
	assert.Equal(t, 1, conflicted)
	assert.Equal(t, 4, h.reload(t, ticket.ID).Version)
	assert.Len(t, h.actions(t, ticket.ID), 4)
}
