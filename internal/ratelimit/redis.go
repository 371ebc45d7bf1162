package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// reserveScript counts the attempt and starts the window on the first one.
// An attempt over the limit is taken back at once. Returns {count, pttl,
// allowed}.
var reserveScript = redis.NewScript(`
local current = redis.call('INCR', KEYS[1])
if current == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local allowed = 1
if current > tonumber(ARGV[2]) then
	current = redis.call('DECR', KEYS[1])
	allowed = 0
end
return {current, redis.call('PTTL', KEYS[1]), allowed}
`)

// refundScript takes back one attempt unless the window has already ended.
var refundScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current > 0 then
	redis.call('DECR', KEYS[1])
end
return current
`)

// Redis is a fixed window counter shared by every API instance.
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "rl"
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(rule Rule, key string) string {
	return r.prefix + ":" + rule.Name + ":" + key
}

func (r *Redis) Peek(ctx context.Context, rule Rule, key string) (Status, error) {
	k := r.key(rule, key)
	pipe := r.client.Pipeline()
	get := pipe.Get(ctx, k)
	ttl := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Status{}, fmt.Errorf("peek rate limit: %w", err)
	}

	count, err := get.Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Status{}, fmt.Errorf("peek rate limit: %w", err)
	}
	return windowStatus(rule, count, ttl.Val()), nil
}

func (r *Redis) Reserve(ctx context.Context, rule Rule, key string) (Status, error) {
	values, err := reserveScript.Run(ctx, r.client, []string{r.key(rule, key)},
		rule.Window.Milliseconds(), rule.Limit).Int64Slice()
	if err != nil {
		return Status{}, fmt.Errorf("reserve rate limit: %w", err)
	}
	if len(values) != 3 {
		return Status{}, fmt.Errorf("reserve rate limit: unexpected script result %v", values)
	}
	st := windowStatus(rule, int(values[0]), time.Duration(values[1])*time.Millisecond)
	st.Allowed = values[2] == 1
	return st, nil
}

func (r *Redis) Refund(ctx context.Context, rule Rule, key string) error {
	if err := refundScript.Run(ctx, r.client, []string{r.key(rule, key)}).Err(); err != nil {
		return fmt.Errorf("refund rate limit: %w", err)
	}
	return nil
}

func windowStatus(rule Rule, count int, ttl time.Duration) Status {
	remaining := rule.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	if ttl < 0 {
		ttl = 0
	}
	return Status{Limit: rule.Limit, Remaining: remaining, Reset: ttl}
}
