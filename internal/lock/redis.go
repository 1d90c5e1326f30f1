package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisClient is the subset of *redis.Client the locker needs.
type RedisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	redis.Scripter
}

// RedisLocker is a Locker shared by every process talking to the same Redis.
//
// The key expires after ttl even if the holder dies, so ttl must exceed the
// longest critical section. In postgres mode the row lock still guards the data
// if a ttl does run out.
type RedisLocker struct {
	client     RedisClient
	prefix     string
	ttl        time.Duration
	retryEvery time.Duration
}

func NewRedisLocker(client RedisClient, prefix string, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client:     client,
		prefix:     prefix,
		ttl:        ttl,
		retryEvery: 20 * time.Millisecond,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := l.prefix + key
	token := uuid.NewString()

	backoff := l.retryEvery
	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("redis lock %s: %w", redisKey, err)
		}
		if ok {
			return l.releaser(redisKey, token), nil
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.Join(ErrNotAcquired, ctx.Err())
		case <-timer.C:
		}
		if backoff < 10*l.retryEvery {
			backoff *= 2
		}
	}
}

func (l *RedisLocker) releaser(redisKey, token string) func() {
	return func() {
		// The caller's ctx may already be cancelled; release on its own deadline.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err()
	}
}
