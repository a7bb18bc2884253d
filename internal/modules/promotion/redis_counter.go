// README: Promotion usage counter backed by Redis; shared by every engine instance.
package promotion

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"velo/internal/types"
)

const usageKeyPrefix = "pricing:promotion:%s:usage"

// consumeScript increments the usage counter only while it is below the limit.
//
// KEYS[1]: usage counter key
// ARGV[1]: usage count known to the config store, used when the key is absent
// ARGV[2]: usage limit, 0 when unlimited
var consumeScript = redis.NewScript(`
local current = tonumber(redis.call('get', KEYS[1]))
if not current then
    current = tonumber(ARGV[1])
end
local limit = tonumber(ARGV[2])
if limit > 0 and current >= limit then
    redis.call('set', KEYS[1], current)
    return 0
end
redis.call('set', KEYS[1], current + 1)
return 1
`)

type RedisCounter struct {
	redis *redis.Client
}

func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{redis: client}
}

func (c *RedisCounter) TryConsume(ctx context.Context, p Promotion) (bool, error) {
	var limit int64
	if p.UsageLimit != nil {
		limit = *p.UsageLimit
	}
	res, err := consumeScript.Run(ctx, c.redis, []string{usageKey(p.ID)}, p.UsageCount, limit).Int64()
	if err != nil {
		return false, fmt.Errorf("consume promotion %s: %w", p.ID, err)
	}
	return res == 1, nil
}

// Usage returns the counter value stored for id; ok is false when the
// promotion has never been consumed through Redis.
func (c *RedisCounter) Usage(ctx context.Context, id types.ID) (n int64, ok bool, err error) {
	n, err = c.redis.Get(ctx, usageKey(id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

func usageKey(id types.ID) string {
	return fmt.Sprintf(usageKeyPrefix, id)
}
