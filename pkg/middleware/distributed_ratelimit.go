package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/syra-platform/authcore/pkg/observability"
)

// DistributedRateLimiter implements rate limiting backed by Redis so that
// limits are shared across instances. A fixed window counter is enough for
// login throttling; the window granularity is the config's WindowDuration.
type DistributedRateLimiter struct {
	redis  *redis.Client
	config *RateLimitConfig
	prefix string
}

// NewDistributedRateLimiter creates a new Redis-backed rate limiter.
func NewDistributedRateLimiter(redisClient *redis.Client, config *RateLimitConfig, prefix string) *DistributedRateLimiter {
	if config == nil {
		config = PerIPLoginConfig()
	}
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &DistributedRateLimiter{
		redis:  redisClient,
		config: config,
		prefix: prefix,
	}
}

// Allow checks if a request is allowed. A Redis failure allows the request
// and returns the error; login availability beats strict throttling.
func (rl *DistributedRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)

	pipe := rl.redis.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, rl.config.WindowDuration)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, fmt.Errorf("redis error: %w", err)
	}

	return incr.Val() <= int64(rl.config.RequestsPerWindow+rl.config.BurstSize), nil
}

// Remaining returns the number of remaining requests in the window.
func (rl *DistributedRateLimiter) Remaining(ctx context.Context, key string) (int, error) {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)

	count, err := rl.redis.Get(ctx, redisKey).Int()
	if err == redis.Nil {
		return rl.config.RequestsPerWindow + rl.config.BurstSize, nil
	} else if err != nil {
		return 0, err
	}

	remaining := rl.config.RequestsPerWindow + rl.config.BurstSize - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// TTL returns the time until the rate limit window resets.
func (rl *DistributedRateLimiter) TTL(ctx context.Context, key string) (time.Duration, error) {
	return rl.redis.TTL(ctx, fmt.Sprintf("%s:%s", rl.prefix, key)).Result()
}

// Reset clears the rate limit for a key.
func (rl *DistributedRateLimiter) Reset(ctx context.Context, key string) error {
	return rl.redis.Del(ctx, fmt.Sprintf("%s:%s", rl.prefix, key)).Err()
}

// DistributedLoginLimiter is the Redis-backed login throttle for multi
// instance deployments. Same shape as LoginLimiter: IP check in middleware,
// account check from the handler.
type DistributedLoginLimiter struct {
	redis   *redis.Client
	ip      *DistributedRateLimiter
	account *DistributedRateLimiter
	log     *observability.Logger
}

// NewDistributedLoginLimiter creates a Redis-backed login limiter.
func NewDistributedLoginLimiter(redisClient *redis.Client, log *observability.Logger) *DistributedLoginLimiter {
	return &DistributedLoginLimiter{
		redis:   redisClient,
		ip:      NewDistributedRateLimiter(redisClient, PerIPLoginConfig(), "login:ip"),
		account: NewDistributedRateLimiter(redisClient, PerAccountLoginConfig(), "login:account"),
		log:     log,
	}
}

// AllowAccount reports whether another attempt against the account is within
// budget. Fails open on Redis errors.
func (l *DistributedLoginLimiter) AllowAccount(ctx context.Context, email string) bool {
	allowed, err := l.account.Allow(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		l.log.WithError(err).Warn("account rate limit unavailable, allowing attempt")
		return true
	}
	return allowed
}

// Handler wraps the login route with the shared per-IP limit.
func (l *DistributedLoginLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		key := ClientIP(r)

		allowed, err := l.ip.Allow(ctx, key)
		if err != nil {
			l.log.WithError(err).Warn("ip rate limit unavailable, allowing request")
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			l.rateLimitExceeded(ctx, w, key)
			return
		}

		if remaining, err := l.ip.Remaining(ctx, key); err == nil {
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", l.ip.config.RequestsPerWindow))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		}
		next.ServeHTTP(w, r)
	})
}

func (l *DistributedLoginLimiter) rateLimitExceeded(ctx context.Context, w http.ResponseWriter, key string) {
	retryAfter := l.ip.config.WindowDuration.Seconds()
	if ttl, err := l.ip.TTL(ctx, key); err == nil && ttl > 0 {
		retryAfter = ttl.Seconds()
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", fmt.Sprintf("%.0f", retryAfter))
	w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", l.ip.config.RequestsPerWindow))
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte(`{"error":"rate_limited","message":"Too many login attempts. Try again later.","retry_after":` + fmt.Sprintf("%.0f", retryAfter) + `}`))
}

// HealthCheck verifies Redis connectivity for rate limiting.
func (l *DistributedLoginLimiter) HealthCheck(ctx context.Context) error {
	return l.redis.Ping(ctx).Err()
}
