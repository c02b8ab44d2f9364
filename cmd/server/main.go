// Package main is the entry point for the findata service.
//
// findata answers financial data lookups (prices, metrics, news, insider
// trades, line items, company facts) through a tiered resolution chain:
// an in-process memory cache, a SQLite repository and the Financial
// Datasets API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/findata/internal/config"
	"github.com/aristath/findata/internal/di"
	"github.com/aristath/findata/internal/server"
	"github.com/aristath/findata/pkg/logger"
)

const version = "1.0.0"

// main is the application entry point:
// 1. Loads configuration from environment variables (.env supported)
// 2. Initializes logging
// 3. Wires all dependencies via the DI container
// 4. Starts the scheduler and the HTTP server
// 5. Waits for a shutdown signal and shuts down gracefully
func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("version", version).Msg("Starting findata")
	for _, w := range cfg.Warnings {
		log.Warn().Msg(w)
	}

	container, jobs, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	serverCfg := server.Config{
		Log:      log,
		Port:     cfg.Port,
		DevMode:  cfg.LogPretty,
		Version:  version,
		Mode:     string(container.Resolver.Mode()),
		Data:     container.DataService,
		Cache:    container.MemoryCache,
		Resolver: container.Resolver,
		Policy:   container.Policy,
		Stats:    container.Stats,
		Jobs:     container.Scheduler,
	}
	// Interface fields stay nil in direct mode.
	if container.ClientDataDB != nil {
		serverCfg.Store = container.ClientDataRepo
		serverCfg.DB = container.ClientDataDB
	}
	srv := server.New(serverCfg)

	container.Scheduler.Start()

	// Warm once at startup instead of waiting for the first tick.
	if jobs.WarmCache != nil {
		go func() {
			if err := container.Scheduler.RunNow(jobs.WarmCache); err != nil {
				log.Warn().Err(err).Msg("Startup cache warm incomplete")
			}
		}()
	}

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// In-flight requests get up to 10 seconds to finish.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stops the scheduler, waiting for running jobs, then closes the database.
	if err := container.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close container")
	}

	log.Info().Msg("Server stopped")
}
