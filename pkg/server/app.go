package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"QuotePulse/internal/domain/repository"
	"QuotePulse/internal/middleware"
	"QuotePulse/internal/service/store"
	"QuotePulse/internal/usecase"
	pkgch "QuotePulse/pkg/clickhouse"
	"QuotePulse/pkg/config"
	xhttp "QuotePulse/pkg/http"
	applogger "QuotePulse/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	store      *store.Store
	pipeline   *middleware.UpdatePipeline
	refresher  *usecase.Refresher
	audit      repository.AuditSink
	chClient   *pkgch.Client
	httpServer *xhttp.Server
	handler    xhttp.Handler
}

// New creates a new App instance with all dependencies. Pipeline, refresher,
// audit and the ClickHouse client are optional.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	st *store.Store,
	pipeline *middleware.UpdatePipeline,
	refresher *usecase.Refresher,
	audit repository.AuditSink,
	chClient *pkgch.Client,
	handler xhttp.Handler,
) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		store:     st,
		pipeline:  pipeline,
		refresher: refresher,
		audit:     audit,
		chClient:  chClient,
		handler:   handler,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// restore persisted cache tiers
	if err := a.store.Init(ctx); err != nil {
		a.log.Warn("cache restore failed, starting cold", applogger.Error(err))
	}

	if a.audit != nil {
		if err := a.audit.Init(ctx); err != nil {
			a.log.Warn("audit sink init failed", applogger.Error(err))
		}
	}

	if a.pipeline != nil {
		a.pipeline.Start(ctx)
	}

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	if a.refresher != nil {
		a.refresher.Start(ctx)
		a.log.Info("watchlist refresher started",
			applogger.Strings("symbols", a.cfg.Refresher.Symbols),
			applogger.Duration("interval_ms", a.cfg.Refresher.Interval),
		)
	}

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	if a.refresher != nil {
		a.refresher.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.pipeline != nil {
		if err := a.pipeline.Close(); err != nil {
			a.log.Warn("pipeline close error", applogger.Error(err))
		}
	}

	// persist cache tiers so restarts resume warm
	if err := a.store.Flush(shutdownCtx); err != nil {
		a.log.Warn("cache flush error", applogger.Error(err))
	}

	if a.audit != nil {
		if err := a.audit.Close(); err != nil {
			a.log.Warn("audit close error", applogger.Error(err))
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
