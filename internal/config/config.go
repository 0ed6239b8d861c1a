package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Bidding    ServerConfig     `mapstructure:"bidding"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Redis      RedisConfig      `mapstructure:"redis"`
	MySQL      MySQLConfig      `mapstructure:"mysql"`
	Leader     LeaderConfig     `mapstructure:"leader"`
	Instance   InstanceConfig   `mapstructure:"instance"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

// StorageConfig selects the backing store. "memory" keeps everything in
// process and is meant for local runs; the auction service then serves the
// bidding API itself.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type LeaderConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type InstanceConfig struct {
	ID string `mapstructure:"id"`
}

type SchedulerConfig struct {
	Spec string `mapstructure:"spec"`
}

type DispatcherConfig struct {
	Workers         int           `mapstructure:"workers"`
	QueueSize       int           `mapstructure:"queue_size"`
	MaxAttempts     uint          `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
}

type RateLimitConfig struct {
	BidsPerSecond float64 `mapstructure:"bids_per_second"`
	Burst         int     `mapstructure:"burst"`
}

// TracingConfig points traces and metrics at one OTLP/HTTP collector.
type TracingConfig struct {
	Endpoint       string        `mapstructure:"endpoint"`
	Insecure       bool          `mapstructure:"insecure"`
	MetricInterval time.Duration `mapstructure:"metric_interval"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("bidding.port", 8081)
	v.SetDefault("bidding.host", "0.0.0.0")
	v.SetDefault("storage.driver", "mysql")
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("mysql.dsn", "auction_user:auction_pass@tcp(localhost:3306)/auction_db?parseTime=true")
	v.SetDefault("mysql.max_open_conns", 25)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("mysql.auto_migrate", true)
	v.SetDefault("leader.ttl", 30*time.Second)
	v.SetDefault("instance.id", "auction-service-1")
	v.SetDefault("scheduler.spec", "@every 30s")
	v.SetDefault("dispatcher.workers", 4)
	v.SetDefault("dispatcher.queue_size", 1024)
	v.SetDefault("dispatcher.max_attempts", 5)
	v.SetDefault("dispatcher.initial_interval", 100*time.Millisecond)
	v.SetDefault("dispatcher.max_interval", 5*time.Second)
	v.SetDefault("ratelimit.bids_per_second", 5.0)
	v.SetDefault("ratelimit.burst", 10)
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.metric_interval", 30*time.Second)
	v.SetDefault("log.level", "info")
}

func bindEnv(v *viper.Viper) {
	v.AutomaticEnv()

	// Environment variable mappings
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.host", "SERVER_HOST")
	v.BindEnv("bidding.port", "BIDDING_PORT")
	v.BindEnv("bidding.host", "BIDDING_HOST")
	v.BindEnv("storage.driver", "STORAGE_DRIVER")
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")
	v.BindEnv("mysql.dsn", "MYSQL_DSN")
	v.BindEnv("mysql.max_open_conns", "MYSQL_MAX_OPEN_CONNS")
	v.BindEnv("mysql.max_idle_conns", "MYSQL_MAX_IDLE_CONNS")
	v.BindEnv("mysql.conn_max_lifetime", "MYSQL_CONN_MAX_LIFETIME")
	v.BindEnv("mysql.auto_migrate", "MYSQL_AUTO_MIGRATE")
	v.BindEnv("leader.ttl", "LEADER_TTL")
	v.BindEnv("instance.id", "INSTANCE_ID")
	v.BindEnv("scheduler.spec", "SCHEDULER_SPEC")
	v.BindEnv("dispatcher.workers", "DISPATCHER_WORKERS")
	v.BindEnv("dispatcher.queue_size", "DISPATCHER_QUEUE_SIZE")
	v.BindEnv("dispatcher.max_attempts", "DISPATCHER_MAX_ATTEMPTS")
	v.BindEnv("ratelimit.bids_per_second", "RATELIMIT_BIDS_PER_SECOND")
	v.BindEnv("ratelimit.burst", "RATELIMIT_BURST")
	v.BindEnv("tracing.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("tracing.metric_interval", "METRIC_EXPORT_INTERVAL")
	v.BindEnv("log.level", "LOG_LEVEL")
}

func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Configuration file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/silent-auction/")

	bindEnv(v)

	// Read configuration file (optional - will use defaults/env vars if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	return unmarshal(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects settings the services cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "mysql", "memory":
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.Dispatcher.Workers <= 0 {
		return fmt.Errorf("config: dispatcher.workers must be positive, got %d", c.Dispatcher.Workers)
	}
	if c.Dispatcher.QueueSize < 0 {
		return fmt.Errorf("config: dispatcher.queue_size must not be negative, got %d", c.Dispatcher.QueueSize)
	}
	if c.Leader.TTL <= 0 {
		return fmt.Errorf("config: leader.ttl must be positive, got %s", c.Leader.TTL)
	}
	if c.RateLimit.BidsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return errors.New("config: ratelimit values must be positive")
	}
	return nil
}

// InProcessStorage reports whether state lives inside a single process, in
// which case one binary has to serve both the item and the bidding APIs.
func (c *Config) InProcessStorage() bool {
	return c.Storage.Driver == "memory"
}

// GetConfigString returns a formatted string representation of the config
func (c *Config) GetConfigString() string {
	return fmt.Sprintf(
		"Server: %s:%d, Bidding: %s:%d, Storage: %s, Redis: %s, Instance: %s",
		c.Server.Host,
		c.Server.Port,
		c.Bidding.Host,
		c.Bidding.Port,
		c.Storage.Driver,
		c.Redis.Address,
		c.Instance.ID,
	)
}
