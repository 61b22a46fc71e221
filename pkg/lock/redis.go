package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jakechorley/study-scheduler/internal/config"
	"github.com/jakechorley/study-scheduler/pkg/metrics"
)

const (
	keyPrefix          = "study-scheduler:lock:"
	redisRetryInterval = 50 * time.Millisecond
	releaseTimeout     = 5 * time.Second
)

// Only delete the key if we still own it
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Redis is a Locker shared between processes. Locks expire after ttl so a
// crashed holder cannot block a volunteer forever.
type Redis struct {
	client  *redis.Client
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewRedisClient connects to Redis and checks the connection
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return client, nil
}

// NewRedis creates a distributed locker
func NewRedis(client *redis.Client, ttl time.Duration, logger *zap.Logger, m *metrics.Metrics) *Redis {
	return &Redis{client: client, ttl: ttl, metrics: m, logger: logger}
}

// Lock polls until the key is acquired or ctx is done
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	start := time.Now()
	redisKey := keyPrefix + key
	token := uuid.NewString()

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-time.After(redisRetryInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	r.metrics.LockWait(time.Since(start).Seconds())

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, r.client, []string{redisKey}, token).Err(); err != nil {
				r.logger.Warn("Failed to release lock", zap.String("key", key), zap.Error(err))
			}
		})
	}, nil
}
