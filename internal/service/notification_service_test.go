package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/deskops/helpdesk-service/internal/config"
	"github.com/deskops/helpdesk-service/internal/domain"
	"github.com/deskops/helpdesk-service/internal/events"
)

func TestNotificationService(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	dispatcher := events.NewInMemoryDispatcher()
	svc := NewNotificationService(dispatcher, zap.New(core), config.NotificationConfig{EmailFrom: "desk@example.com"})
	svc.RegisterHandlers()

	ctx := context.Background()
	assignee := int64(3)
	require.NoError(t, dispatcher.Publish(ctx, events.Event{
		Type:     events.EventTicketUpdated,
		TicketID: 9,
		Actor:    events.Actor{Name: "Ada", Role: domain.RoleAgent},
		Payload: events.TicketUpdatedPayload{
			Version:    2,
			Changes:    []events.FieldChange{{Field: domain.FieldAssignedTo, From: "unassigned", To: "Ada"}},
			AssignedTo: &assignee,
		},
	}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{
		Type:     events.EventTicketUpdated,
		TicketID: 9,
		Payload: events.TicketUpdatedPayload{
			Version: 3,
			Changes: []events.FieldChange{{Field: domain.FieldPriority, From: "low", To: "high"}},
		},
	}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{Type: events.EventTicketSLABreached, TicketID: 9}))

	assert.Equal(t, 2, logs.FilterMessage("TicketUpdated").Len())
	assert.Equal(t, 1, logs.FilterMessage("TicketSLABreached").Len())
	// The assignment and the breach send mail, the priority change does not.
	assert.Equal(t, 2, logs.FilterMessage("sendEmailNotificationStub").Len())
	assert.Zero(t, logs.FilterMessage("sendWebhookNotificationStub").Len())
}
