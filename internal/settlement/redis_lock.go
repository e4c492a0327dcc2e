package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the lock only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLockerConfig configures RedisLocker
type RedisLockerConfig struct {
	Prefix        string
	TTL           time.Duration
	RetryInterval time.Duration
}

// RedisLocker serializes settlements across processes with SET NX locks.
// The TTL bounds how long a crashed holder can block a project.
type RedisLocker struct {
	client redis.UniversalClient
	config RedisLockerConfig
	logger *zap.Logger
}

// NewRedisLocker creates a locker over client
func NewRedisLocker(client redis.UniversalClient, config RedisLockerConfig, logger *zap.Logger) *RedisLocker {
	if config.Prefix == "" {
		config.Prefix = "aquanexus:settle:"
	}
	if config.TTL <= 0 {
		config.TTL = 10 * time.Second
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = 25 * time.Millisecond
	}
	return &RedisLocker{client: client, config: config, logger: logger}
}

func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := r.config.Prefix + key
	token := uuid.NewString()

	for {
		ok, err := r.client.SetNX(ctx, lockKey, token, r.config.TTL).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("failed to acquire lock %s: %w", lockKey, err)
		}
		if ok {
			break
		}

		timer := time.NewTimer(r.config.RetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, r.client, []string{lockKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
				r.logger.Warn("Failed to release settlement lock", zap.String("key", lockKey), zap.Error(err))
			}
		})
	}, nil
}

var _ Locker = (*RedisLocker)(nil)
