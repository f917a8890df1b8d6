package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deskops/helpdesk-service/internal/events"
	"github.com/deskops/helpdesk-service/internal/persistence"
	"github.com/deskops/helpdesk-service/internal/service"
	"github.com/deskops/helpdesk-service/internal/worker"
)

func newSLACommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sla",
		Short: "SLA deadline tools",
	}
	cmd.AddCommand(newSLAScanCommand())
	return cmd
}

func newSLAScanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Report breached tickets once",
		Long:  `Run a single SLA monitor pass. Breaches already reported are skipped when Redis is configured.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			redis := persistence.NewRedis(cmd.Context(), e.cfg.Redis, e.logger)
			defer redis.Close()

			var marker worker.BreachMarker = worker.NewMemoryBreachMarker(0)
			if redis.Enabled() {
				marker = worker.NewRedisBreachMarker(redis.Client, 0)
			}

			dispatcher := events.NewInMemoryDispatcher()
			service.NewNotificationService(dispatcher, e.logger, e.cfg.Notification).RegisterHandlers()

			monitor := worker.NewSLAMonitor(worker.SLAMonitorDeps{
				Tickets:    e.store.Repositories().Tickets,
				Marker:     marker,
				Dispatcher: dispatcher,
				Logger:     e.logger,
				Batch:      e.cfg.Worker.SLAMonitorBatch,
			})
			reported, err := monitor.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d new sla breaches reported\n", reported)
			return nil
		},
	}
}
