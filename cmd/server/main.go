package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"adperf/internal/delivery"
	"adperf/internal/domain"
	"adperf/internal/infrastructure"
	"adperf/internal/usecase"
	"adperf/pkg/config"
	"adperf/pkg/logger"
	"adperf/pkg/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level)
	log.Info("Starting server")

	m := metrics.New()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg.Store, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to open record store")
	}
	defer closeStore()

	gateway := usecase.NewGateway(store, cfg.Store.PageSize, cfg.Store.BatchSize, log, m)

	// Redis only prefilters; the store confirms every skip
	var keyIndex domain.KeyIndex
	if cfg.Redis.Enabled {
		index, err := infrastructure.NewRedisKeyIndex(ctx, cfg.Redis, log)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer index.Close()
		keyIndex = index
	}

	sink := infrastructure.NewSinkClient(
		cfg.Export.SinkURL,
		cfg.Export.SinkSecret,
		cfg.Export.Timeout,
		cfg.Export.RateLimitPerSecond,
		log,
		m,
	)

	ingestService := usecase.NewIngestService(usecase.NewDeduplicator(gateway, keyIndex, log), gateway, keyIndex, log, m)
	reportService := usecase.NewReportService(gateway, log, m)
	exportService := usecase.NewExportService(gateway, sink, log, m)

	handlers := delivery.NewHTTPHandlers(ingestService, reportService, exportService, cfg.Server.MaxUploadBytes, log)
	router := delivery.NewHTTPRouter(handlers, cfg.Server, nil, log, m).SetupRoutes()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Server.Port).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	log.Info("Server stopped")
}

func openStore(ctx context.Context, cfg config.StoreConfig, log *logger.Logger) (domain.RecordStore, func(), error) {
	switch cfg.Driver {
	case "postgres":
		store, err := infrastructure.NewPostgresStore(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		log.WithField("page_limit", cfg.MemoryPageLimit).Warn("Using in-memory record store; data is lost on restart")
		return infrastructure.NewMemoryStore(cfg.MemoryPageLimit, log), func() {}, nil
	}
}
