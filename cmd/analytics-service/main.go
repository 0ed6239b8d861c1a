package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	redisClient "github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel"

	"silent-auction/internal/config"
	"silent-auction/internal/infrastructure/redis"
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

	if !cfg.Redis.Enabled {
		log.Fatal("Analytics service needs redis.enabled=true")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Options{
		ServiceName:    "analytics-service",
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		ExportInterval: cfg.Tracing.MetricInterval,
	})
	if err != nil {
		log.Fatal("Failed to initialize telemetry", "error", err)
	}

	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Fatal("Failed to connect to Redis", "error", err)
	}

	recorder := services.NewEventRecorder(otel.GetMeterProvider(), log)
	subscriber := redis.NewRedisEventSubscriber(rdb, log)

	log.Info("Starting analytics service")
	if err := subscriber.Subscribe(ctx, recorder.Record); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Analytics service failed", "error", err)
		os.Exit(1)
	}

	flushCtx, cancelFlush := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelFlush()
	if err := shutdownTelemetry(flushCtx); err != nil {
		log.Error("Failed to flush telemetry", "error", err)
	}
	log.Info("Analytics service stopped")
}
