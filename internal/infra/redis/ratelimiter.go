package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/girderhq/api/pkg/logger"
)

// allowScript checks and consumes one request token atomically. Compiled once
// at package initialization.
var allowScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local window_ms = tonumber(ARGV[3])
	local limit = tonumber(ARGV[4])
	local request_id = ARGV[5]

	-- Remove expired entries
	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

	-- Count current requests
	local count = redis.call('ZCARD', key)

	if count < limit then
		redis.call('ZADD', key, now, request_id)
		redis.call('PEXPIRE', key, window_ms)
		return {1, limit - count - 1, now + window_ms}
	else
		local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
		local retry_at = oldest[2] and (tonumber(oldest[2]) + window_ms) or (now + window_ms)
		return {0, 0, retry_at}
	end
`)

// RateLimiter implements distributed rate limiting using Redis. It uses the
// sliding window log algorithm with sorted sets so the limit holds across
// replicas, unlike per-process token buckets.
type RateLimiter struct {
	client    *Client
	keyPrefix string
	limit     int
	window    time.Duration
	logger    *logger.Logger
}

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	// Allowed indicates if the request is permitted.
	Allowed bool

	// Remaining is the number of requests left in the current window.
	Remaining int

	// ResetAt is when the rate limit window resets.
	ResetAt time.Time

	// RetryAt is when the client should retry (only set when not allowed).
	RetryAt time.Time
}

// NewRateLimiter creates a new distributed rate limiter.
func NewRateLimiter(client *Client, prefix string, limit int, window time.Duration, log *logger.Logger) (*RateLimiter, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if prefix == "" {
		return nil, errors.New("key prefix is required")
	}
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}
	if window <= 0 {
		return nil, errors.New("window must be positive")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}

	return &RateLimiter{
		client:    client,
		keyPrefix: prefix,
		limit:     limit,
		window:    window,
		logger:    log,
	}, nil
}

// Limit returns the configured maximum number of requests per window.
func (rl *RateLimiter) Limit() int {
	return rl.limit
}

// buildKey creates the full rate limit key with prefix.
func (rl *RateLimiter) buildKey(key string) string {
	return fmt.Sprintf("%s:%s", rl.keyPrefix, key)
}

// Allow checks if a request is allowed and consumes one token atomically.
// Safe for concurrent use; the Lua script makes check-and-update atomic.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (*RateLimitResult, error) {
	if key == "" {
		return nil, errors.New("key is required")
	}

	now := time.Now()
	windowStart := now.Add(-rl.window)

	result, err := allowScript.Run(ctx, rl.client.client, []string{rl.buildKey(key)},
		now.UnixMilli(), windowStart.UnixMilli(), rl.window.Milliseconds(), rl.limit,
		uuid.New().String()).Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit check: %w", err)
	}

	allowed := result[0].(int64) == 1
	remaining := int(result[1].(int64))
	resetAt := time.UnixMilli(result[2].(int64))

	res := &RateLimitResult{
		Allowed:   allowed,
		Remaining: remaining,
		ResetAt:   resetAt,
	}

	if !allowed {
		res.RetryAt = resetAt
		rl.logger.Debug("rate limit exceeded", "key", key, "retry_at", resetAt)
	}

	return res, nil
}
