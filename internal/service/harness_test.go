package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/deskops/helpdesk-service/internal/domain"
	"github.com/deskops/helpdesk-service/internal/events"
	"github.com/deskops/helpdesk-service/internal/observability"
	"github.com/deskops/helpdesk-service/internal/repository"
	"github.com/deskops/helpdesk-service/internal/repository/gormstore"
	"github.com/deskops/helpdesk-service/internal/repository/repositorytest"
	"github.com/deskops/helpdesk-service/internal/sla"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) handle(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recorder) ofType(eventType events.EventType) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	ctx     context.Context
	store   repository.Store
	clock   *fakeClock
	events  *recorder
	metrics *observability.Metrics
	tickets *TicketService
	ledger  *LedgerService
	seed    repositorytest.Seed

	user, other, agent, admin domain.Principal
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := gormstore.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	engine, err := sla.NewEngine(sla.DefaultPolicy())
	require.NoError(t, err)

	clock := &fakeClock{now: repositorytest.Base}
	rec := &recorder{}
	dispatcher := events.NewInMemoryDispatcher()
	for _, eventType := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketUpdated,
		events.EventTicketDeleted,
		events.EventCommentAdded,
		events.EventCommentDeleted,
	} {
		dispatcher.Subscribe(eventType, rec.handle)
	}

	metrics := observability.NewMetrics()
	deps := TicketDependencies{
		Store:      store,
		SLA:        engine,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Clock:      clock.Now,
	}

	ctx := context.Background()
	seed := repositorytest.SeedUsers(t, ctx, store.Repositories().Users)
	return &harness{
		ctx:     ctx,
		store:   store,
		clock:   clock,
		events:  rec,
		metrics: metrics,
		tickets: NewTicketService(deps),
		ledger:  NewLedgerService(deps),
		seed:    seed,
		user:    seed.User.Principal(),
		other:   seed.Other.Principal(),
		agent:   seed.Agent.Principal(),
		admin:   seed.Admin.Principal(),
	}
}

func (h *harness) createTicket(t *testing.T, by domain.Principal, priority domain.TicketPriority) *domain.Ticket {
	t.Helper()
	view, err := h.tickets.CreateTicket(h.ctx, by, TicketCreateInput{
		Title:       "Printer on fire",
		Description: "The printer on floor 3 is on fire",
		Priority:    priority,
	})
	require.NoError(t, err)
	return &view.Ticket
}

func (h *harness) reload(t *testing.T, id int64) *domain.Ticket {
	t.Helper()
	ticket, err := h.store.Repositories().Tickets.GetByID(h.ctx, id)
	require.NoError(t, err)
	return ticket
}

func (h *harness) actions(t *testing.T, id int64) []domain.Action {
	t.Helper()
	actions, err := h.store.Repositories().Actions.ListByTicket(h.ctx, id)
	require.NoError(t, err)
	return actions
}

func statusPtr(s domain.TicketStatus) *domain.TicketStatus       { return &s }
func priorityPtr(p domain.TicketPriority) *domain.TicketPriority { return &p }
func idPtr(id int64) *int64                                      { return &id }
