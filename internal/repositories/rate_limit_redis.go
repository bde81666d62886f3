package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/calebmoore/vaultguard/internal/models"
	"github.com/redis/go-redis/v9"
)

// Lua script for the atomic conditional increment. Refusing the increment
// and creating the key with its expiry must happen in one round trip, for
// the same reason the Postgres upsert is a single statement.
const incrementWindowScript = `
local current = redis.call('GET', KEYS[1])
if current and tonumber(current) >= tonumber(ARGV[1]) then
	return -1
end
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIREAT', KEYS[1], tonumber(ARGV[2]))
end
return count
`

// RedisRateLimitStore keeps rate-limit windows as Redis counters with the
// window end encoded as key expiry. Drop-in alternative to the Postgres
// repository for deployments that already run Redis.
type RedisRateLimitStore struct {
	client    redis.UniversalClient
	keyPrefix string
	script    *redis.Script
}

// NewRedisRateLimitStore creates a new RedisRateLimitStore
func NewRedisRateLimitStore(client redis.UniversalClient) *RedisRateLimitStore {
	return &RedisRateLimitStore{
		client:    client,
		keyPrefix: "ratelimit",
		script:    redis.NewScript(incrementWindowScript),
	}
}

// IncrementWindow atomically creates or increments the counter for the
// identity tuple, admitting only while count < max
func (s *RedisRateLimitStore) IncrementWindow(ctx context.Context, key models.WindowKey, windowEnd time.Time, max int) (int, bool, error) {
	redisKey := s.buildKey(key)

	count, err := s.script.Run(ctx, s.client,
		[]string{redisKey},
		max,
		windowEnd.UnixMilli(),
	).Int64()
	if err != nil {
		return 0, false, fmt.Errorf("failed to increment rate limit window: %w", err)
	}

	if count < 0 {
		return max, false, nil
	}

	return int(count), true, nil
}

// DeleteExpiredWindows is a no-op for Redis: key expiry already reclaims
// closed windows
func (s *RedisRateLimitStore) DeleteExpiredWindows(ctx context.Context) (int64, error) {
	return 0, nil
}

func (s *RedisRateLimitStore) buildKey(key models.WindowKey) string {
	tenant := "global"
	if key.CompanyID != nil {
		tenant = key.CompanyID.String()
	}
	return fmt.Sprintf("%s:%s:%s:%s:%s:%d",
		s.keyPrefix, tenant, key.IdentifierType, key.Identifier, key.Action, key.WindowStart.Unix())
}
