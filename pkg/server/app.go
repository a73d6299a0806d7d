package server

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"PollPulse/internal/domain/models"
	"PollPulse/internal/domain/repository"
	"PollPulse/internal/usecase"
	pkgch "PollPulse/pkg/clickhouse"
	"PollPulse/pkg/config"
	xhttp "PollPulse/pkg/http"
	pkgkafka "PollPulse/pkg/kafka"
	applogger "PollPulse/pkg/logger"
)

// App encapsulates the application lifecycle: HTTP API, optional Kafka
// ingest, and graceful shutdown of infrastructure clients.
type App struct {
	cfg          *config.Config
	log          *applogger.Logger
	handler      xhttp.Handler
	pipeline     *usecase.NowcastPipeline
	defaults     usecase.NowcastParams
	consumer     *pkgkafka.Consumer
	pollsHandler *usecase.KafkaPollsHandler
	chClient     *pkgch.Client
	publisher    repository.ForecastPublisher
	httpServer   *xhttp.Server
}

// New creates an App with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	handler xhttp.Handler,
	pipeline *usecase.NowcastPipeline,
	defaults usecase.NowcastParams,
	consumer *pkgkafka.Consumer,
	pollsHandler *usecase.KafkaPollsHandler,
	chClient *pkgch.Client,
	publisher repository.ForecastPublisher,
) *App {
	return &App{
		cfg:          cfg,
		log:          log,
		handler:      handler,
		pipeline:     pipeline,
		defaults:     defaults,
		consumer:     consumer,
		pollsHandler: pollsHandler,
		chClient:     chClient,
		publisher:    publisher,
	}
}

// RunOnce executes a single nowcast with the configured defaults and writes
// the forecast to stdout as JSON.
func (a *App) RunOnce(ctx context.Context) (*models.Forecast, error) {
	forecast, err := a.pipeline.Run(ctx, a.defaults)
	if err != nil {
		return nil, err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(forecast); err != nil {
		return nil, fmt.Errorf("encode forecast: %w", err)
	}
	return forecast, nil
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(a.cfg.Metrics.Path),
	)

	if a.consumer != nil && a.pollsHandler != nil {
		a.consumer.RegisterHandler(a.pollsHandler)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started", applogger.String("topic", a.pollsHandler.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn("publisher close error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
