package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/deskops/helpdesk-service/internal/events"
	"github.com/deskops/helpdesk-service/internal/observability"
	"github.com/deskops/helpdesk-service/internal/repository"
)

// SLAMonitor periodically reports tickets that passed their deadline while
// not closed. It only reads tickets; breach is derived, never stored.
type SLAMonitor struct {
	tickets    repository.TicketRepository
	marker     BreachMarker
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
	batch      int

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// SLAMonitorDeps bundles collaborators for the monitor.
type SLAMonitorDeps struct {
	Tickets    repository.TicketRepository
	Marker     BreachMarker
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Clock      func() time.Time
	// Batch is the page size used while scanning.
	Batch int
}

func NewSLAMonitor(deps SLAMonitorDeps) *SLAMonitor {
	m := &SLAMonitor{
		tickets:    deps.Tickets,
		marker:     deps.Marker,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        deps.Clock,
		batch:      deps.Batch,
		stopChan:   make(chan struct{}),
	}
	if m.marker == nil {
		m.marker = NewMemoryBreachMarker(0)
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.batch <= 0 || m.batch > repository.MaxPageSize {
		m.batch = repository.MaxPageSize
	}
	return m
}

// Start runs the monitor every interval until Stop or ctx is done.
func (m *SLAMonitor) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		m.logger.Info("sla monitor disabled")
		return
	}
	m.logger.Info("starting sla monitor", zap.Duration("interval", interval))

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(ctx, interval)
	}()
}

// Stop is safe to call more than once.
func (m *SLAMonitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
		m.wg.Wait()
		m.logger.Info("sla monitor stopped")
	})
}

func (m *SLAMonitor) run(ctx context.Context, interval time.Duration) {
	m.scan(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.scan(ctx)
		}
	}
}

func (m *SLAMonitor) scan(ctx context.Context) {
	started := time.Now()
	reported, err := m.RunOnce(ctx)
	if err != nil {
		m.logger.Error("sla scan failed", zap.Error(err), zap.Duration("duration", time.Since(started)))
		return
	}
	if reported > 0 {
		m.logger.Info("sla breaches reported", zap.Int("count", reported), zap.Duration("duration", time.Since(started)))
	}
}

// RunOnce scans every breached ticket once and reports those not reported
// before. It returns the number of newly reported breaches.
func (m *SLAMonitor) RunOnce(ctx context.Context) (int, error) {
	now := m.now().UTC()
	filter := repository.TicketFilter{BreachedOnly: true, Now: now, Limit: m.batch}

	reported := 0
	for {
		page, total, err := m.tickets.List(ctx, filter)
		if err != nil {
			return reported, err
		}
		for i := range page {
			ticket := &page[i]
			first, err := m.marker.Mark(ctx, ticket.ID, ticket.DueAt)
			if err != nil {
				return reported, err
			}
			if !first {
				continue
			}
			reported++
			m.metrics.RecordSLABreach(string(ticket.Priority))
			m.logger.Warn("ticket breached sla",
				zap.Int64("ticket_id", ticket.ID),
				zap.String("priority", string(ticket.Priority)),
				zap.Time("due_at", ticket.DueAt))
			m.publish(ctx, events.Event{
				ID:        uuid.NewString(),
				Type:      events.EventTicketSLABreached,
				TicketID:  ticket.ID,
				Actor:     events.SystemActor(),
				Timestamp: now,
				Payload: events.SLABreachedPayload{
					Priority:   ticket.Priority,
					DueAt:      ticket.DueAt,
					AssignedTo: ticket.AssignedTo,
				},
			})
		}
		filter.Offset += len(page)
		if len(page) == 0 || filter.Offset >= total {
			return reported, nil
		}
	}
}

func (m *SLAMonitor) publish(ctx context.Context, event events.Event) {
	if m.dispatcher == nil {
		return
	}
	if err := m.dispatcher.Publish(ctx, event); err != nil {
		m.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Int64("ticket_id", event.TicketID), zap.Error(err))
	}
}
