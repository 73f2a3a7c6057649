package locks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sms-support-server/pkg/logger"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultLockTTL   = 10 * time.Second
	lockRetryBackoff = 25 * time.Millisecond
)

var errLockLost = errors.New("lock expired before release")

// releaseScript deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker shared by every server process pointed at the same redis.
// A lock expires after TTL if its holder dies without releasing it.
type RedisLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisLocker creates a RedisLocker; a non-positive ttl uses the default
func NewRedisLocker(client *redis.Client, prefix string, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{client: client, prefix: prefix, ttl: ttl}
}

// Lock polls SETNX until the key is acquired or ctx is done
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	if l.client == nil {
		return nil, errors.New("redis client is nil")
	}

	redisKey := l.prefix + key
	token := uuid.New().String()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryBackoff):
		}
	}

	return func() {
		// Release with a fresh context so a cancelled request still frees the key
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := l.release(releaseCtx, redisKey, token); err != nil {
			logger.Warn("Failed to release phone lock",
				zap.String("key", key),
				zap.Duration("expires_in", l.ttl),
				zap.Error(err),
			)
		}
	}, nil
}

// release deletes redisKey if it still holds token. A lock that already
// expired and was taken by someone else is reported as an error.
func (l *RedisLocker) release(ctx context.Context, redisKey, token string) error {
	deleted, err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Int64()
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", redisKey, err)
	}
	if deleted == 0 {
		return errLockLost
	}
	return nil
}
