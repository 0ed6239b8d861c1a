package leader

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"silent-auction/pkg/logger"
)

const leaderKey = "auction_scheduler_leader"

const releaseScript = `
    if redis.call("GET", KEYS[1]) == ARGV[1] then
        return redis.call("DEL", KEYS[1])
    else
        return 0
    end
`

const extendScript = `
    if redis.call("GET", KEYS[1]) == ARGV[1] then
        return redis.call("PEXPIRE", KEYS[1], ARGV[2])
    else
        return 0
    end
`

// RedisLeaderElection holds a SETNX lease so only one auction service
// instance runs the closing trigger. The lease is refreshed at a third of
// its TTL while held.
type RedisLeaderElection struct {
	client *redis.Client
	ttl    time.Duration
	log    logger.Logger

	mu        sync.Mutex
	heartbeat map[string]*heartbeat
}

type heartbeat struct {
	cancel context.CancelFunc
}

func NewRedisLeaderElection(client *redis.Client, ttl time.Duration, log logger.Logger) *RedisLeaderElection {
	return &RedisLeaderElection{
		client:    client,
		ttl:       ttl,
		log:       log,
		heartbeat: make(map[string]*heartbeat),
	}
}

func (r *RedisLeaderElection) BecomeLeader(ctx context.Context, instanceID string) (bool, error) {
	acquired, err := r.client.SetNX(ctx, leaderKey, instanceID, r.ttl).Result()
	if err != nil {
		return false, err
	}

	if acquired {
		r.startHeartbeat(instanceID)
		r.log.Info("Acquired scheduler leadership", "instance_id", instanceID)
	}
	return acquired, nil
}

func (r *RedisLeaderElection) IsLeader(ctx context.Context, instanceID string) (bool, error) {
	currentLeader, err := r.client.Get(ctx, leaderKey).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	return currentLeader == instanceID, nil
}

func (r *RedisLeaderElection) ReleaseLeadership(ctx context.Context, instanceID string) error {
	r.stopHeartbeat(instanceID)
	return r.client.Eval(ctx, releaseScript, []string{leaderKey}, instanceID).Err()
}

func (r *RedisLeaderElection) startHeartbeat(instanceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, running := r.heartbeat[instanceID]; running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	hb := &heartbeat{cancel: cancel}
	r.heartbeat[instanceID] = hb
	go r.maintainLeadership(ctx, instanceID, hb)
}

func (r *RedisLeaderElection) stopHeartbeat(instanceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if hb, ok := r.heartbeat[instanceID]; ok {
		hb.cancel()
		delete(r.heartbeat, instanceID)
	}
}

func (r *RedisLeaderElection) maintainLeadership(ctx context.Context, instanceID string, hb *heartbeat) {
	defer func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		hb.cancel()
		if r.heartbeat[instanceID] == hb {
			delete(r.heartbeat, instanceID)
		}
	}()

	ticker := time.NewTicker(r.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		extendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		result, err := r.client.Eval(extendCtx, extendScript, []string{leaderKey},
			instanceID, r.ttl.Milliseconds()).Int64()
		cancel()

		if err != nil || result == 0 {
			r.log.Warn("Lost scheduler leadership", "instance_id", instanceID, "error", err)
			return
		}
	}
}
