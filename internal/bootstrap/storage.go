// Package bootstrap assembles the storage and cache layers selected in the
// configuration. Both service binaries share it.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	redisClient "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"

	"silent-auction/internal/config"
	"silent-auction/internal/domain"
	"silent-auction/internal/infrastructure/memory"
	"silent-auction/internal/infrastructure/mysql"
	"silent-auction/internal/infrastructure/redis"
	"silent-auction/internal/services"
	"silent-auction/pkg/logger"
)

type Storage struct {
	Items         domain.ItemRepository
	Bids          domain.BidRepository
	Notifications domain.NotificationRepository
	Jobs          domain.SchedulerRepository
	StateCache    domain.ItemStateCache
	Events        domain.EventPublisher

	// Redis is nil when redis.enabled is false.
	Redis *redisClient.Client

	closers []func() error
	log     logger.Logger
}

func Open(ctx context.Context, cfg *config.Config, log logger.Logger) (*Storage, error) {
	s := &Storage{
		StateCache: services.NopStateCache{},
		Events:     services.NopEventPublisher{},
		log:        log,
	}

	if err := s.openStore(ctx, cfg); err != nil {
		s.Close()
		return nil, err
	}
	if cfg.Redis.Enabled {
		if err := s.openRedis(ctx, cfg); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *Storage) openStore(ctx context.Context, cfg *config.Config) error {
	switch cfg.Storage.Driver {
	case "memory":
		store := memory.NewStore()
		s.Items, s.Bids, s.Notifications, s.Jobs = store, store, store, store
		s.log.Info("Using in-memory store")
		return nil
	case "mysql":
	default:
		return fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		return fmt.Errorf("open mysql: %w", err)
	}
	s.closers = append(s.closers, db.Close)

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("ping mysql: %w", err)
	}
	s.log.Info("Connected to MySQL")

	if cfg.MySQL.AutoMigrate {
		if err := mysql.Migrate(ctx, db); err != nil {
			return err
		}
	}

	s.Items = mysql.NewMySQLItemRepository(db)
	s.Bids = mysql.NewMySQLBidRepository(db)
	s.Notifications = mysql.NewMySQLNotificationRepository(db)
	s.Jobs = mysql.NewMySQLSchedulerRepository(db)
	return nil
}

func (s *Storage) openRedis(ctx context.Context, cfg *config.Config) error {
	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	s.closers = append(s.closers, rdb.Close)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	s.log.Info("Connected to Redis", "address", cfg.Redis.Address)

	s.Redis = rdb
	s.StateCache = redis.NewRedisStateCache(rdb)
	s.Events = redis.NewEventPublisher(rdb)
	return nil
}

// Close releases connections in reverse order of opening.
func (s *Storage) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.log.Error("Failed to close connection", "error", err)
		}
	}
	s.closers = nil
}

// DispatcherOptions translates the dispatcher section of the config.
func DispatcherOptions(cfg *config.Config) services.DispatcherOptions {
	return services.DispatcherOptions{
		Workers:         cfg.Dispatcher.Workers,
		QueueSize:       cfg.Dispatcher.QueueSize,
		MaxAttempts:     cfg.Dispatcher.MaxAttempts,
		InitialInterval: cfg.Dispatcher.InitialInterval,
		MaxInterval:     cfg.Dispatcher.MaxInterval,
	}
}
