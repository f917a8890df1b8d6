package gormstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskops/helpdesk-service/internal/domain"
	"github.com/deskops/helpdesk-service/internal/repository"
	"github.com/deskops/helpdesk-service/internal/repository/repositorytest"
)

func newTestStore(t *testing.T) repository.Store {
	t.Helper()
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreContract(t *testing.T) {
	repositorytest.RunStoreContract(t, newTestStore)
}

func TestOpen_FileDatabase(t *testing.T) {
	dsn := t.TempDir() + "/helpdesk.db"

	store, err := Open(dsn)
	require.NoError(t, err)
	require.NoError(t, store.Ping(context.Background()))
	require.NoError(t, store.Close())

	reopened, err := Open(dsn)
	require.NoError(t, err)
	require.NoError(t, reopened.Close())
}

func TestJoinedRowsCarryModelColumns(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	repos := store.Repositories()
	seed := repositorytest.SeedUsers(t, ctx, repos.Users)

	created := repositorytest.NewTicket(seed.User, "round trip", domain.TicketPriorityHigh, 0)
	require.NoError(t, repos.Tickets.Create(ctx, created))

	read, err := repos.Tickets.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, read.ID)
	assert.Equal(t, "round trip", read.Title)
	assert.Equal(t, domain.TicketStatusOpen, read.Status)
	assert.Equal(t, domain.TicketPriorityHigh, read.Priority)
	assert.Equal(t, 1, read.Version)
	assert.Equal(t, seed.User.ID, read.CreatedBy)
	assert.Equal(t, "Uma User", read.CreatorName)
	assert.True(t, created.DueAt.Equal(read.DueAt))

	actorID := seed.Agent.ID
	require.NoError(t, repos.Actions.Create(ctx, &domain.Action{
		TicketID: created.ID, ActorID: &actorID, Kind: domain.ActionCreated, Detail: "filed", CreatedAt: repositorytest.Base,
	}))
	actions, err := repos.Actions.ListByTicket(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.NotZero(t, actions[0].ID)
	assert.Equal(t, domain.ActionCreated, actions[0].Kind)
	assert.Equal(t, "filed", actions[0].Detail)
	assert.Equal(t, "Ada Agent", actions[0].ActorName)

	require.NoError(t, repos.Comments.Create(ctx, &domain.Comment{
		TicketID: created.ID, AuthorID: seed.User.ID, Content: "hello", CreatedAt: repositorytest.Base,
	}))
	comments, err := repos.Comments.ListByTicket(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, created.ID, comments[0].TicketID)
	assert.Equal(t, "hello", comments[0].Content)
	assert.Equal(t, "Uma User", comments[0].AuthorName)
}
