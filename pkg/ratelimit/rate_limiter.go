package ratelimit

import (
	"context"
	"fmt"
	"slices"
	"time"

	"eventbook/internal/shared/config"
	"eventbook/internal/shared/constants"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type RateLimitType string

const (
	RateLimitTypeDefault         RateLimitType = "default"
	RateLimitTypePublic          RateLimitType = "public"
	RateLimitTypeAuth            RateLimitType = "auth"
	RateLimitTypeBooking         RateLimitType = "booking"
	RateLimitTypeBookingCritical RateLimitType = "booking_critical"
	RateLimitTypeUser            RateLimitType = "user"
	RateLimitTypeHealth          RateLimitType = "health"
)

// Result represents rate limit check result
type Result struct {
	Allowed   bool  `json:"allowed"`
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	ResetTime int64 `json:"reset_time"`
}

// slidingWindow trims entries older than the window, then admits the request
// only while fewer than limit remain. Returns {allowed, count}.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
	redis.call('PEXPIRE', key, window)
	return {0, count}
end

redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return {1, count + 1}
`)

// RateLimiter is a Redis sliding-window limiter keyed by client and limit type.
type RateLimiter struct {
	client *redis.Client
	config config.RateLimitConfig
	now    func() time.Time
}

func NewRateLimiter(client *redis.Client, cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{client: client, config: cfg, now: time.Now}
}

// IsAllowed records one request from client against limitType.
func (r *RateLimiter) IsAllowed(ctx context.Context, client string, limitType RateLimitType) (*Result, error) {
	now := r.now()
	limit := r.getLimit(limitType)
	reset := now.Add(r.config.WindowDuration).Unix()

	if !r.config.Enabled || r.client == nil || r.isWhitelisted(client) {
		return &Result{Allowed: true, Limit: limit, Remaining: limit, ResetTime: reset}, nil
	}

	key := fmt.Sprintf("%s:ratelimit:%s:%s", constants.CACHE_PREFIX, limitType, client)
	values, err := slidingWindow.Run(ctx, r.client, []string{key},
		now.UnixMilli(),
		r.config.WindowDuration.Milliseconds(),
		limit,
		uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("redis eval failed: %w", err)
	}
	if len(values) != 2 {
		return nil, fmt.Errorf("unexpected redis response: %v", values)
	}

	count := int(values[1])
	return &Result{
		Allowed:   values[0] == 1,
		Limit:     limit,
		Remaining: max(limit-count, 0),
		ResetTime: reset,
	}, nil
}

func (r *RateLimiter) getLimit(limitType RateLimitType) int {
	switch limitType {
	case RateLimitTypePublic:
		return r.config.PublicRequests
	case RateLimitTypeAuth:
		return r.config.AuthRequests
	case RateLimitTypeBooking:
		return r.config.BookingRequests
	case RateLimitTypeBookingCritical:
		return r.config.BookingCriticalRequests
	case RateLimitTypeUser:
		return r.config.UserRequests
	case RateLimitTypeHealth:
		return r.config.HealthRequests
	default:
		return r.config.DefaultRequests
	}
}

func (r *RateLimiter) isWhitelisted(client string) bool {
	return slices.Contains(r.config.WhitelistedIPs, client)
}
