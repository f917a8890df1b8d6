package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/deskops/helpdesk-service/internal/api/http"
	"github.com/deskops/helpdesk-service/internal/api/http/handlers"
	"github.com/deskops/helpdesk-service/internal/auth"
	"github.com/deskops/helpdesk-service/internal/config"
	"github.com/deskops/helpdesk-service/internal/events"
	"github.com/deskops/helpdesk-service/internal/observability"
	"github.com/deskops/helpdesk-service/internal/persistence"
	"github.com/deskops/helpdesk-service/internal/service"
	"github.com/deskops/helpdesk-service/internal/sla"
	"github.com/deskops/helpdesk-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := persistence.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer closeStore()

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	slaEngine, err := sla.NewEngine(cfg.SLA.Policy())
	if err != nil {
		logger.Fatal("invalid sla policy", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	repos := store.Repositories()

	deps := service.TicketDependencies{
		Store:      store,
		SLA:        slaEngine,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	}
	ticketService := service.NewTicketService(deps)
	ledgerService := service.NewLedgerService(deps)
	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		Users:  repos.Users,
		Logger: logger,
	})
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), repos.Users)

	var marker worker.BreachMarker = worker.NewMemoryBreachMarker(0)
	if redis.Enabled() {
		marker = worker.NewRedisBreachMarker(redis.Client, 0)
	}
	stopWorkers := worker.Start(ctx, worker.Workers{
		Notifications: notificationService,
		SLAMonitor: worker.NewSLAMonitor(worker.SLAMonitorDeps{
			Tickets:    repos.Tickets,
			Marker:     marker,
			Dispatcher: dispatcher,
			Metrics:    metrics,
			Logger:     logger.Named("sla_monitor"),
			Batch:      cfg.Worker.SLAMonitorBatch,
		}),
		SLAInterval: cfg.Worker.SLAMonitorInterval,
	})
	defer stopWorkers()

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, store, redis),
		Users:          handlers.NewUsersHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Comments:       handlers.NewCommentsHandler(ledgerService),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
