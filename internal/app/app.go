package app

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/modu-commerce/order-core/internal/dal/postgres"
	"github.com/modu-commerce/order-core/internal/dal/rabbitmq"
	outboxrepo "github.com/modu-commerce/order-core/internal/dal/repositories/outbox/postgres"
	"github.com/modu-commerce/order-core/internal/dal/uow"
	"github.com/modu-commerce/order-core/internal/otel"
	"github.com/modu-commerce/order-core/internal/service/services/settlementsvc"
	httptransport "github.com/modu-commerce/order-core/internal/transport/http"
	outboxworker "github.com/modu-commerce/order-core/internal/worker/outbox"
)

// App represents the application.
type App struct {
	settlementSvc  *settlementsvc.SettlementService
	transport      *httptransport.HTTPTransport
	worker         *outboxworker.Worker
	postgresClient *postgres.Client
	rabbitClient   *rabbitmq.Client
	otelController *otel.OtelController
}

// MustNewApp creates a new application.
func MustNewApp() *App {
	otelController := otel.MustInitOtel()

	postgresClient := postgres.MustNewClient()
	rabbitClient := rabbitmq.MustNewClient()

	settlementSvc := settlementsvc.MustNewSettlementService(
		settlementsvc.WithUnitOfWorkFactory(func() settlementsvc.UnitOfWork {
			return uow.NewUnitOfWork(postgresClient)
		}),
	)

	worker := outboxworker.NewWorker(
		outboxrepo.NewPostgresOutboxRepository(postgresClient.Pool()),
		rabbitClient,
	)

	transport := httptransport.NewHTTPTransport(settlementSvc)
	transport.RegisterRoutes()

	return &App{
		settlementSvc:  settlementSvc,
		transport:      transport,
		worker:         worker,
		postgresClient: postgresClient,
		rabbitClient:   rabbitClient,
		otelController: otelController,
	}
}

// Run starts the application.
// Tracks interrupt signal to gracefully shut down the application.
func (a *App) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		slog.Info("Starting HTTP server")
		if err := a.transport.Run(); err != nil && err != http.ErrServerClosed {
			return err
		}

		return nil
	})

	group.Go(func() error {
		a.worker.Start(groupCtx)

		return nil
	})

	select {
	case <-stop:
		slog.Info("Shutdown signal received")
	case <-groupCtx.Done():
		slog.Info("Component failure, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := a.transport.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped gracefully")
	}

	a.worker.Stop()
	cancel()

	if err := group.Wait(); err != nil {
		slog.Error("Component error", "error", err)
	}

	if err := a.rabbitClient.Close(); err != nil {
		slog.Error("RabbitMQ connection close error", "error", err)
	} else {
		slog.Info("RabbitMQ connection closed gracefully")
	}

	a.postgresClient.Close()
	slog.Info("Database connection closed gracefully")

	if err := a.otelController.Shutdown(); err != nil {
		slog.Error("Tracer provider shutdown error", "error", err)
	}

	slog.Info("Application shutdown complete")
}
