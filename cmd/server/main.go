package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	aiimpl "github.com/foxseedlab/callinsight/external/ai"
	configloader "github.com/foxseedlab/callinsight/external/config"
	discordimpl "github.com/foxseedlab/callinsight/external/discord"
	eventsimpl "github.com/foxseedlab/callinsight/external/events"
	repositoryimpl "github.com/foxseedlab/callinsight/external/repository"
	webhookimpl "github.com/foxseedlab/callinsight/external/webhook"
	"github.com/foxseedlab/callinsight/internal/analysis"
	"github.com/foxseedlab/callinsight/internal/bulk"
	"github.com/foxseedlab/callinsight/internal/config"
	discordpkg "github.com/foxseedlab/callinsight/internal/discord"
	"github.com/foxseedlab/callinsight/internal/events"
	"github.com/foxseedlab/callinsight/internal/httpapi"
	"github.com/foxseedlab/callinsight/internal/language"
	"github.com/foxseedlab/callinsight/internal/logger"
	"github.com/foxseedlab/callinsight/internal/metrics"
	"github.com/foxseedlab/callinsight/internal/repository"
	"github.com/foxseedlab/callinsight/internal/scheduler"
	"github.com/samber/do/v2"
)

const batchDrainTimeout = 30 * time.Second

func main() {
	bootLog := logger.New(os.Getenv("ENV"), "info")
	bootLog.Info("startup: loading configuration")
	cfg, err := configloader.Load()
	if err != nil {
		bootLog.WithError(err).Error("config validation failed")
		os.Exit(1)
	}
	log := logger.New(cfg.Env, cfg.LogLevel)
	log.WithField("env", cfg.Env).Info("startup: configuration loaded")

	log.Info("startup: building dependency graph")
	injector := setupDI(cfg, log)

	if err := run(cfg, injector, log); err != nil {
		log.WithError(err).Error("server stopped with error")
		os.Exit(1)
	}
}

func setupDI(cfg *config.Config, log *logger.Logger) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, log)
	do.ProvideValue(injector, metrics.Default)
	do.ProvideValue(injector, language.Default())

	repositoryimpl.RegisterDI(injector)
	aiimpl.RegisterDI(injector)
	eventsimpl.RegisterDI(injector)
	webhookimpl.RegisterDI(injector)
	discordimpl.RegisterDI(injector)
	analysis.RegisterDI(injector)
	bulk.RegisterDI(injector)
	scheduler.RegisterDI(injector)
	httpapi.RegisterDI(injector)

	return injector
}

func run(cfg *config.Config, injector do.Injector, log *logger.Logger) error {
	server, err := do.Invoke[*httpapi.Server](injector)
	if err != nil {
		return err
	}
	reaper, err := do.Invoke[*scheduler.Reaper](injector)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	reaperDone := make(chan error, 1)
	go func() { reaperDone <- reaper.Start(ctx) }()

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("startup: http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			stop()
			<-reaperDone
			return err
		}
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown did not finish cleanly")
	}
	if err := <-reaperDone; err != nil {
		log.WithError(err).Warn("reaper stopped with error")
	}

	drainBatches(injector, log)
	closeResources(injector, log)
	return nil
}

// drainBatches gives running batches a bounded window to finish so their
// results and summaries reach the database.
func drainBatches(injector do.Injector, log *logger.Logger) {
	orchestrator, err := do.Invoke[*bulk.Orchestrator](injector)
	if err != nil {
		return
	}
	done := make(chan struct{})
	go func() {
		orchestrator.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(batchDrainTimeout):
		log.Warn("running batches did not finish before exit; the reaper will fail them once they go stale")
	}
}

func closeResources(injector do.Injector, log *logger.Logger) {
	if publisher, err := do.Invoke[events.Publisher](injector); err == nil {
		if err := publisher.Close(); err != nil {
			log.WithError(err).Warn("event publisher close failed")
		}
	}
	if dc, err := do.Invoke[discordpkg.Client](injector); err == nil {
		if err := dc.Close(); err != nil {
			log.WithError(err).Warn("discord close failed")
		}
	}
	if repo, err := do.Invoke[repository.Repository](injector); err == nil {
		if c, ok := repo.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
