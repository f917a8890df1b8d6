// Package repositorytest holds the behavior every repository.Store backend
// must share.
package repositorytest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskops/helpdesk-service/internal/domain"
	"github.com/deskops/helpdesk-service/internal/repository"
)

// Base is the reference time used by seeded rows.
var Base = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// Seed holds the directory created by SeedUsers.
type Seed struct {
	User  *domain.User
	Other *domain.User
	Agent *domain.User
	Admin *domain.User
}

// SeedUsers inserts one user per role plus a second plain user.
func SeedUsers(t *testing.T, ctx context.Context, users repository.UserRepository) Seed {
	t.Helper()
	mk := func(name, username string, role domain.Role) *domain.User {
		u := &domain.User{
			Name:         name,
			Username:     username,
			Email:        username + "@example.com",
			PasswordHash: "x",
			Role:         role,
			CreatedAt:    Base,
			UpdatedAt:    Base,
		}
		require.NoError(t, users.Create(ctx, u))
		require.NotZero(t, u.ID)
		return u
	}
	return Seed{
		User:  mk("Uma User", "uma", domain.RoleUser),
		Other: mk("Olly Other", "olly", domain.RoleUser),
		Agent: mk("Ada Agent", "ada", domain.RoleAgent),
		Admin: mk("Abe Admin", "abe", domain.RoleAdmin),
	}
}

// NewTicket builds an unsaved open ticket created at Base+offset.
func NewTicket(creator *domain.User, title string, priority domain.TicketPriority, offset time.Duration) *domain.Ticket {
	created := Base.Add(offset)
	return &domain.Ticket{
		Title:       title,
		Description: "details for " + title,
		Status:      domain.TicketStatusOpen,
		Priority:    priority,
		CreatedBy:   creator.ID,
		CreatedAt:   created,
		UpdatedAt:   created,
		DueAt:       created.Add(4 * time.Hour),
		Version:     1,
	}
}

// RunStoreContract exercises store. newStore must return an empty store.
func RunStoreContract(t *testing.T, newStore func(t *testing.T) repository.Store) {
	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("ticket create and read", func(t *testing.T) { testTicketCreate(t, newStore(t)) })
	t.Run("compare and swap", func(t *testing.T) { testCompareAndSwap(t, newStore(t)) })
	t.Run("list", func(t *testing.T) { testList(t, newStore(t)) })
	t.Run("comments and actions", func(t *testing.T) { testLedger(t, newStore(t)) })
	t.Run("transactions", func(t *testing.T) { testTransactions(t, newStore(t)) })
	t.Run("delete ticket", func(t *testing.T) { testDelete(t, newStore(t)) })
}

func testUsers(t *testing.T, store repository.Store) {
	ctx := context.Background()
	repos := store.Repositories()
	seed := SeedUsers(t, ctx, repos.Users)

	dup := &domain.User{Name: "Dup", Username: "uma", Email: "dup@example.com", PasswordHash: "x", Role: domain.RoleUser, CreatedAt: Base, UpdatedAt: Base}
	assert.ErrorIs(t, repos.Users.Create(ctx, dup), repository.ErrDuplicate)

	byLogin, err := repos.Users.GetByLogin(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, seed.Agent.ID, byLogin.ID)

	byLogin, err = repos.Users.GetByLogin(ctx, "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, seed.Agent.ID, byLogin.ID)

	_, err = repos.Users.GetByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repos.Users.GetByID(ctx, 999999)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	role := domain.RoleUser
	plain, err := repos.Users.ListByRole(ctx, &role)
	require.NoError(t, err)
	require.Len(t, plain, 2)
	assert.Equal(t, "Olly Other", plain[0].Name)

	everyone, err := repos.Users.ListByRole(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, everyone, 4)

	seed.User.Name = "Uma Renamed"
	seed.User.UpdatedAt = Base.Add(time.Hour)
	require.NoError(t, repos.Users.Update(ctx, seed.User))
	reloaded, err := repos.Users.GetByEmail(ctx, "uma@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Uma Renamed", reloaded.Name)

	seed.User.Username = "ada"
	assert.ErrorIs(t, repos.Users.Update(ctx, seed.User), repository.ErrDuplicate)

	ghost := &domain.User{ID: 999999, Name: "ghost", Username: "ghost", Email: "ghost@example.com", Role: domain.RoleUser}
	assert.ErrorIs(t, repos.Users.Update(ctx, ghost), repository.ErrNotFound)
}

func testTicketCreate(t *testing.T, store repository.Store) {
	ctx := context.Background()
	repos := store.Repositories()
	seed := SeedUsers(t, ctx, repos.Users)

	ticket := NewTicket(seed.User, "Printer on fire", domain.TicketPriorityHigh, 0)
	ticket.AssignedTo = &seed.Agent.ID
	require.NoError(t, repos.Tickets.Create(ctx, ticket))
	require.NotZero(t, ticket.ID)

	got, err := repos.Tickets.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "Printer on fire", got.Title)
	assert.Equal(t, domain.TicketStatusOpen, got.Status)
	assert.Equal(t, domain.TicketPriorityHigh, got.Priority)
	assert.Equal(t, seed.User.ID, got.CreatedBy)
	assert.Equal(t, "Uma User", got.CreatorName)
	require.NotNil(t, got.AssignedTo)
	assert.Equal(t, seed.Agent.ID, *got.AssignedTo)
	require.NotNil(t, got.AssigneeName)
	assert.Equal(t, "Ada Agent", *got.AssigneeName)
	assert.True(t, got.DueAt.Equal(Base.Add(4*time.Hour)), "due_at %s", got.DueAt)
	assert.Equal(t, 1, got.Version)

	_, err = repos.Tickets.GetByID(ctx, ticket.ID+1000)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func testCompareAndSwap(t *testing.T, store repository.Store) {
	ctx := context.Background()
	repos := store.Repositories()
	seed := SeedUsers(t, ctx, repos.Users)

	ticket := NewTicket(seed.User, "VPN drops", domain.TicketPriorityMedium, 0)
	require.NoError(t, repos.Tickets.Create(ctx, ticket))

	update := *ticket
	update.Status = domain.TicketStatusInProgress
	update.Version = 2
	update.UpdatedAt = Base.Add(time.Minute)
	require.NoError(t, repos.Tickets.UpdateIfVersion(ctx, &update, 1))

	stale := update
	stale.Status = domain.TicketStatusClosed
	stale.Version = 2
	assert.ErrorIs(t, repos.Tickets.UpdateIfVersion(ctx, &stale, 1), repository.ErrVersionMismatch)

	got, err := repos.Tickets.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, domain.TicketStatusInProgress, got.Status)
	assert.Nil(t, got.AssignedTo)

	missing := update
	missing.ID = ticket.ID + 1000
	assert.ErrorIs(t, repos.Tickets.UpdateIfVersion(ctx, &missing, 2), repository.ErrVersionMismatch)
}

func testList(t *testing.T, store repository.Store) {
	ctx := context.Background()
	repos := store.Repositories()
	seed := SeedUsers(t, ctx, repos.Users)

	create := func(creator *domain.User, title string, priority domain.TicketPriority, offset time.Duration, status domain.TicketStatus) *domain.Ticket {
		ticket := NewTicket(creator, title, priority, offset)
		ticket.Status = status
		require.NoError(t, repos.Tickets.Create(ctx, ticket))
		return ticket
	}

	first := create(seed.User, "Email bounce", domain.TicketPriorityLow, 0, domain.TicketStatusOpen)
	tieA := create(seed.Other, "Laptop fan noisy", domain.TicketPriorityHigh, time.Hour, domain.TicketStatusInProgress)
	tieB := create(seed.User, "Keyboard missing keys", domain.TicketPriorityHigh, time.Hour, domain.TicketStatusOpen)
	last := create(seed.Other, "Old EMAIL archive", domain.TicketPriorityMedium, 2*time.Hour, domain.TicketStatusClosed)

	all, total, err := repos.Tickets.List(ctx, repository.TicketFilter{})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, all, 4)
	assert.Equal(t, []int64{last.ID, tieB.ID, tieA.ID, first.ID}, ids(all))

	page, total, err := repos.Tickets.List(ctx, repository.TicketFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Equal(t, []int64{tieB.ID, tieA.ID}, ids(page))

	own, total, err := repos.Tickets.List(ctx, repository.TicketFilter{CreatedBy: &seed.User.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, []int64{tieB.ID, first.ID}, ids(own))

	status := domain.TicketStatusInProgress
	byStatus, _, err := repos.Tickets.List(ctx, repository.TicketFilter{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, []int64{tieA.ID}, ids(byStatus))

	priority := domain.TicketPriorityHigh
	byPriority, _, err := repos.Tickets.List(ctx, repository.TicketFilter{Priority: &priority})
	require.NoError(t, err)
	assert.Equal(t, []int64{tieB.ID, tieA.ID}, ids(byPriority))

	search, total, err := repos.Tickets.List(ctx, repository.TicketFilter{Search: "  email "})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, []int64{last.ID, first.ID}, ids(search))

	// first is due at Base+4h, the ties at Base+5h; last is closed.
	breached, total, err := repos.Tickets.List(ctx, repository.TicketFilter{BreachedOnly: true, Now: Base.Add(4*time.Hour + time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, []int64{first.ID}, ids(breached))

	atDeadline, _, err := repos.Tickets.List(ctx, repository.TicketFilter{BreachedOnly: true, Now: Base.Add(4 * time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, atDeadline)

	clamped, _, err := repos.Tickets.List(ctx, repository.TicketFilter{Limit: 10000})
	require.NoError(t, err)
	assert.Len(t, clamped, 4)
}

func testLedger(t *testing.T, store repository.Store) {
	ctx := context.Background()
	repos := store.Repositories()
	seed := SeedUsers(t, ctx, repos.Users)

	ticket := NewTicket(seed.User, "Wifi slow", domain.TicketPriorityLow, 0)
	require.NoError(t, repos.Tickets.Create(ctx, ticket))

	c1 := &domain.Comment{TicketID: ticket.ID, AuthorID: seed.User.ID, Content: "still slow", CreatedAt: Base.Add(time.Minute)}
	c2 := &domain.Comment{TicketID: ticket.ID, AuthorID: seed.Agent.ID, Content: "looking", CreatedAt: Base.Add(time.Minute)}
	require.NoError(t, repos.Comments.Create(ctx, c1))
	require.NoError(t, repos.Comments.Create(ctx, c2))

	comments, err := repos.Comments.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, c1.ID, comments[0].ID)
	assert.Equal(t, "Ada Agent", comments[1].AuthorName)

	got, err := repos.Comments.GetByID(ctx, c2.ID)
	require.NoError(t, err)
	assert.Equal(t, "looking", got.Content)

	require.NoError(t, repos.Comments.Delete(ctx, c1.ID))
	assert.ErrorIs(t, repos.Comments.Delete(ctx, c1.ID), repository.ErrNotFound)
	_, err = repos.Comments.GetByID(ctx, c1.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	system := &domain.Action{TicketID: ticket.ID, Kind: domain.ActionCreated, Detail: "ticket created", CreatedAt: Base}
	human := &domain.Action{TicketID: ticket.ID, ActorID: &seed.Agent.ID, Kind: domain.ActionStatusChanged, Detail: "open -> in_progress", CreatedAt: Base.Add(time.Minute)}
	require.NoError(t, repos.Actions.Create(ctx, system))
	require.NoError(t, repos.Actions.Create(ctx, human))

	actions, err := repos.Actions.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, domain.SystemActor, actions[0].Actor())
	assert.Equal(t, "Ada Agent", actions[1].Actor())
	assert.Equal(t, domain.ActionStatusChanged, actions[1].Kind)

	require.NoError(t, repos.Comments.DeleteByTicket(ctx, ticket.ID))
	require.NoError(t, repos.Actions.DeleteByTicket(ctx, ticket.ID))
	comments, err = repos.Comments.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, comments)
	actions, err = repos.Actions.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func testTransactions(t *testing.T, store repository.Store) {
	ctx := context.Background()
	seed := SeedUsers(t, ctx, store.Repositories().Users)

	boom := errors.New("boom")
	var createdID int64
	err := store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		ticket := NewTicket(seed.User, "rolled back", domain.TicketPriorityLow, 0)
		if err := repos.Tickets.Create(ctx, ticket); err != nil {
			return err
		}
		createdID = ticket.ID
		return boom
	})
	require.ErrorIs(t, err, boom)
	_, err = store.Repositories().Tickets.GetByID(ctx, createdID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	err = store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		ticket := NewTicket(seed.User, "committed", domain.TicketPriorityLow, 0)
		if err := repos.Tickets.Create(ctx, ticket); err != nil {
			return err
		}
		createdID = ticket.ID
		locked, err := repos.Tickets.GetForUpdate(ctx, ticket.ID)
		if err != nil {
			return err
		}
		locked.Version = 2
		return repos.Tickets.UpdateIfVersion(ctx, locked, 1)
	})
	require.NoError(t, err)
	got, err := store.Repositories().Tickets.GetByID(ctx, createdID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)

	assert.NoError(t, store.Ping(ctx))
}

func testDelete(t *testing.T, store repository.Store) {
	ctx := context.Background()
	repos := store.Repositories()
	seed := SeedUsers(t, ctx, repos.Users)

	ticket := NewTicket(seed.User, "delete me", domain.TicketPriorityLow, 0)
	require.NoError(t, repos.Tickets.Create(ctx, ticket))
	require.NoError(t, repos.Tickets.Delete(ctx, ticket.ID))
	assert.ErrorIs(t, repos.Tickets.Delete(ctx, ticket.ID), repository.ErrNotFound)
}

func ids(tickets []domain.Ticket) []int64 {
	out := make([]int64, 0, len(tickets))
	for _, ticket := range tickets {
		out = append(out, ticket.ID)
	}
	return out
}
