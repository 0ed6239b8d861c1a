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

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"silent-auction/internal/api/handlers"
	"silent-auction/internal/bootstrap"
	"silent-auction/internal/config"
	"silent-auction/internal/domain"
	"silent-auction/internal/infrastructure/leader"
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
	log.Info("Starting auction service", "config", cfg.GetConfigString())

	ctx := context.Background()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Options{
		ServiceName:    "auction-service",
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

	auctionManager := services.NewAuctionManager(
		storage.Items,
		storage.StateCache,
		storage.Events,
		dispatcher,
		log,
	)

	// Without Redis there is no shared lease; a single instance is assumed.
	var leaderElection domain.LeaderElection
	if storage.Redis != nil {
		leaderElection = leader.NewRedisLeaderElection(storage.Redis, cfg.Leader.TTL, log)
	}

	scheduler := services.NewCronAuctionScheduler(
		cfg.Scheduler.Spec,
		storage.Jobs,
		auctionManager,
		leaderElection,
		cfg.Instance.ID,
		log,
	)
	auctionManager.SetScheduler(scheduler)

	if err := scheduler.Start(ctx); err != nil {
		log.Fatal("Failed to start scheduler", "error", err)
	}

	notificationService := services.NewNotificationService(storage.Notifications, log)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestID())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: `{"time":"${time_rfc3339}","id":"${id}","remote_ip":"${remote_ip}","method":"${method}","uri":"${uri}","status":${status},"error":"${error}","latency_human":"${latency_human}","bytes_out":${bytes_out}}` + "\n",
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPatch,
			http.MethodPost, http.MethodDelete, http.MethodOptions,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			echo.HeaderXRequestedWith,
			handlers.UserIDHeader,
		},
		MaxAge: 86400,
	}))

	api := e.Group("/api/v1")
	handlers.NewAuctionHandler(auctionManager, log).Register(api)
	handlers.NewNotificationHandler(notificationService, log).Register(api)
	e.GET("/ws/notifications", echo.WrapHandler(websocket.NewHandler(feeds, log)))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"service":   "auction-service",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"storage":   cfg.Storage.Driver,
		})
	})

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		log.Info("Auction service listening", "address", serverAddr)
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed to start", "error", err)
		}
	}()

	// An in-memory store cannot be shared with a separate bidding-service.
	var biddingServer *http.Server
	if cfg.InProcessStorage() {
		bidService := services.NewBidService(
			storage.Items,
			storage.Bids,
			storage.StateCache,
			storage.Events,
			dispatcher,
			log,
		)
		biddingServer = &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Bidding.Host, cfg.Bidding.Port),
			Handler:           bootstrap.NewBiddingRouter(cfg, bidService, websocket.NewHandler(feeds, log), log),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Info("Bidding API listening in process", "address", biddingServer.Addr)
			if err := biddingServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal("Bidding server failed to start", "error", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down auction service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	feeds.CloseAll()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	if biddingServer != nil {
		if err := biddingServer.Shutdown(shutdownCtx); err != nil {
			log.Error("Bidding server forced to shutdown", "error", err)
		}
	}
	if err := scheduler.Stop(); err != nil {
		log.Error("Failed to stop scheduler", "error", err)
	}
	dispatcher.Stop()
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		log.Error("Failed to flush telemetry", "error", err)
	}

	log.Info("Auction service stopped")
}
