// Package lease provides the Redis-backed run lease for the reminder sweep.
package lease

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "rockville:"

// releaseScript deletes the key only while it still holds our value.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// RedisLease takes a lease with SET NX. Release gives it back early; the TTL
// only matters when the holder dies.
type RedisLease struct {
	rc    redis.Cmdable
	owner string

	mu     sync.Mutex
	tokens map[string]string
}

func NewRedisLease(rc redis.Cmdable) *RedisLease {
	host, _ := os.Hostname()
	return &RedisLease{
		rc:     rc,
		owner:  fmt.Sprintf("%s:%d", host, os.Getpid()),
		tokens: map[string]string{},
	}
}

// Dial connects and pings, so a bad address fails at startup.
func Dial(ctx context.Context, addr string) (*redis.Client, error) {
	rc := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rc.Ping(pctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("redis connect error: %w", err)
	}
	return rc, nil
}

func (l *RedisLease) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	val := l.owner + ":" + uuid.NewString()
	ok, err := l.rc.SetNX(ctx, keyPrefix+key, val, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", key, err)
	}
	if ok {
		l.mu.Lock()
		l.tokens[key] = val
		l.mu.Unlock()
	}
	return ok, nil
}

// Release drops a lease this instance holds. A lease that expired and was
// taken by someone else is left alone.
func (l *RedisLease) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	val, ok := l.tokens[key]
	delete(l.tokens, key)
	l.mu.Unlock()
	if !ok {
		return nil
	}
	if err := l.rc.Eval(ctx, releaseScript, []string{keyPrefix + key}, val).Err(); err != nil {
		return fmt.Errorf("release lease %s: %w", key, err)
	}
	return nil
}
