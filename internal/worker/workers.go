package worker

import (
	"context"
	"time"

	"github.com/deskops/helpdesk-service/internal/service"
)

// Workers are the background jobs started with the API process.
type Workers struct {
	Notifications *service.NotificationService
	SLAMonitor    *SLAMonitor
	// SLAInterval of zero leaves the monitor stopped.
	SLAInterval time.Duration
}

// Start registers notification handlers and launches the SLA monitor. The
// returned function stops everything Start launched.
func Start(ctx context.Context, w Workers) (stop func()) {
	if w.Notifications != nil {
		w.Notifications.RegisterHandlers()
	}
	if w.SLAMonitor == nil {
		return func() {}
	}
	w.SLAMonitor.Start(ctx, w.SLAInterval)
	return w.SLAMonitor.Stop
}
