package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Default timeouts for Redis operations.
const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 2 * time.Second
	DefaultWriteTimeout = 2 * time.Second
)

// allowScript checks and increments in one step so concurrent callers
// cannot overshoot the ceiling. The expiry is set on the first hit,
// which makes the window fixed rather than sliding.
var allowScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= tonumber(ARGV[1]) then
  return 0
end
current = redis.call('INCR', KEYS[1])
if current == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 1
`)

// Redis is a fixed-window limiter whose counters live in Redis, so
// several server replicas share one budget. Keys expire on their own;
// no sweep is needed.
type Redis struct {
	client redis.UniversalClient
	rule   Rule
	prefix string
}

// NewRedisClient parses a redis:// URL and applies bounded timeouts.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	if opts.DialTimeout == 0 {
		opts.DialTimeout = DefaultDialTimeout
	}

	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}

	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}

	opts.MaxRetries = -1

	return redis.NewClient(opts), nil
}

// NewRedis creates a limiter for rule. name namespaces its keys so
// independent limiters can share a client.
func NewRedis(client redis.UniversalClient, name string, rule Rule) *Redis {
	return &Redis{
		client: client,
		rule:   rule,
		prefix: "status-mcp:ratelimit:" + name + ":",
	}
}

// Allow implements Limiter.
func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	res, err := allowScript.Run(ctx, r.client, []string{r.prefix + key}, r.rule.Max, r.rule.Window.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit check: %w", err)
	}

	return res == 1, nil
}
