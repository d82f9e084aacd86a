package bucket

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"mountpass/internal/ratelimit/models"
)

// slidingWindowScript trims the window, admits the request when there is
// room and returns {allowed, count, oldest_ms}. Members are unique so that
// concurrent requests in the same millisecond are all counted.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, member)
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', key, window)
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local oldestScore = now
if oldest[2] then
  oldestScore = tonumber(oldest[2])
end
return {allowed, count, oldestScore}
`)

// RedisStore implements the sliding window on a Redis sorted set so that
// every instance shares one budget per key.
type RedisStore struct {
	client redis.Scripter
	now    func() time.Time
}

// NewRedis creates a Redis-backed bucket store.
func NewRedis(client redis.Scripter) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	now := s.now()
	res, err := slidingWindowScript.Run(ctx, s.client, []string{key},
		now.UnixMilli(),
		window.Milliseconds(),
		limit,
		strconv.FormatInt(now.UnixNano(), 10)+"-"+uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("sliding window %s: %w", key, err)
	}
	if len(res) != 3 {
		return nil, fmt.Errorf("sliding window %s: unexpected reply %v", key, res)
	}

	count := int(res[1])
	resetAt := time.UnixMilli(res[2]).Add(window)
	result := &models.RateLimitResult{
		Allowed:   res[0] == 1,
		Limit:     limit,
		Remaining: max(limit-count, 0),
		ResetAt:   resetAt,
	}
	if !result.Allowed {
		result.RetryAfter = models.RetryAfterSeconds(now, resetAt)
	}
	return result, nil
}
