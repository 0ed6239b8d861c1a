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

	"silent-auction/internal/bootstrap"
	"silent-auction/internal/config"
	"silent-auction/internal/infrastructure/websocket"
	"silent-auction/internal/services"
	"silent-auction/pkg/logger"
	"silent-auction/pkg/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().Fatal("Failed to load config", "error", err)
	}

	log := logger.NewWithLevel(cfg.Log.Level)
	defer logger.Sync(log)
	log.Info("Starting bidding service", "config", cfg.GetConfigString())

	if cfg.InProcessStorage() {
		log.Fatal("In-memory storage is served by auction-service, which mounts the bidding API itself",
			"driver", cfg.Storage.Driver)
	}

	ctx := context.Background()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Options{
		ServiceName:    "bidding-service",
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		ExportInterval: cfg.Tracing.MetricInterval,
	})
	if err != nil {
		log.Fatal("Failed to initialize telemetry", "error", err)
	}

	storage, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open storage", "error", err)
	}
	defer storage.Close()

	feeds := websocket.NewConnectionManager(log)

	dispatcher := services.NewDispatcher(storage.Notifications, bootstrap.DispatcherOptions(cfg), log)
	dispatcher.SetSink(feeds)
	dispatcher.Start(ctx)

	bidService := services.NewBidService(
		storage.Items,
		storage.Bids,
		storage.StateCache,
		storage.Events,
		dispatcher,
		log,
	)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Bidding.Host, cfg.Bidding.Port),
		Handler:           bootstrap.NewBiddingRouter(cfg, bidService, websocket.NewHandler(feeds, log), log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Bidding service listening", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed to start", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down bidding service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	feeds.CloseAll()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	dispatcher.Stop()
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		log.Error("Failed to flush telemetry", "error", err)
	}

	log.Info("Bidding service stopped")
}
