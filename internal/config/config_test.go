package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	assert.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFileDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, "storage:\n  driver: memory\n"))
	assert.NoError(t, err)

	check.Equal(t, "memory", cfg.Storage.Driver)
	check.Equal(t, 8080, cfg.Server.Port)
	check.Equal(t, 8081, cfg.Bidding.Port)
	check.Equal(t, "@every 30s", cfg.Scheduler.Spec)
	check.Equal(t, 4, cfg.Dispatcher.Workers)
	check.Equal(t, uint(5), cfg.Dispatcher.MaxAttempts)
	check.Equal(t, 100*time.Millisecond, cfg.Dispatcher.InitialInterval)
	check.Equal(t, 30*time.Second, cfg.Leader.TTL)
	check.Equal(t, 30*time.Second, cfg.Tracing.MetricInterval)
	check.True(t, cfg.MySQL.AutoMigrate)
}

func TestLoadFromFileValues(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, `
storage:
  driver: mysql
mysql:
  dsn: "u:p@tcp(db:3306)/auction?parseTime=true"
  conn_max_lifetime: 2m
dispatcher:
  workers: 8
  max_interval: 1s
ratelimit:
  bids_per_second: 0.5
  burst: 2
`))
	assert.NoError(t, err)

	check.Equal(t, "u:p@tcp(db:3306)/auction?parseTime=true", cfg.MySQL.DSN)
	check.Equal(t, 2*time.Minute, cfg.MySQL.ConnMaxLifetime)
	check.Equal(t, 8, cfg.Dispatcher.Workers)
	check.Equal(t, time.Second, cfg.Dispatcher.MaxInterval)
	check.Equal(t, 0.5, cfg.RateLimit.BidsPerSecond)
	check.Equal(t, 2, cfg.RateLimit.Burst)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("BIDDING_PORT", "9999")
	t.Setenv("REDIS_ENABLED", "false")

	cfg, err := LoadFromFile(writeConfig(t, "storage:\n  driver: mysql\n"))
	assert.NoError(t, err)
	check.Equal(t, "memory", cfg.Storage.Driver)
	check.Equal(t, 9999, cfg.Bidding.Port)
	check.False(t, cfg.Redis.Enabled)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Storage:    StorageConfig{Driver: "memory"},
			Dispatcher: DispatcherConfig{Workers: 1},
			Leader:     LeaderConfig{TTL: time.Second},
			RateLimit:  RateLimitConfig{BidsPerSecond: 1, Burst: 1},
		}
	}

	cfg := valid()
	check.NoError(t, cfg.Validate())

	cfg = valid()
	cfg.Storage.Driver = "postgres"
	check.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Dispatcher.Workers = 0
	check.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Dispatcher.QueueSize = -1
	check.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Dispatcher.QueueSize = 0
	check.NoError(t, cfg.Validate())

	cfg = valid()
	cfg.Leader.TTL = 0
	check.Error(t, cfg.Validate())

	cfg = valid()
	cfg.RateLimit.Burst = 0
	check.Error(t, cfg.Validate())

	_, err := LoadFromFile(writeConfig(t, "storage:\n  driver: sqlite\n"))
	check.Error(t, err)
}

func TestZeroLeaderTTLFromEnvironmentIsRejected(t *testing.T) {
	t.Setenv("LEADER_TTL", "0s")

	_, err := LoadFromFile(writeConfig(t, "storage:\n  driver: memory\n"))
	check.Error(t, err)
}

func TestInProcessStorage(t *testing.T) {
	cfg := Config{Storage: StorageConfig{Driver: "memory"}}
	check.True(t, cfg.InProcessStorage())

	cfg.Storage.Driver = "mysql"
	check.False(t, cfg.InProcessStorage())
}
