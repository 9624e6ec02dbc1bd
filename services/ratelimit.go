package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rusticroots/storefront-api/logger"
)

// RateDecision is the outcome of one rate limit check
type RateDecision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter counts hits per key in fixed windows
type RateLimiter interface {
	Allow(ctx context.Context, key string) (RateDecision, error)
}

var contactLimiterInstance RateLimiter

// GetContactLimiter returns the limiter guarding the contact form
func GetContactLimiter() RateLimiter {
	return contactLimiterInstance
}

// SetContactLimiter sets the limiter guarding the contact form
func SetContactLimiter(l RateLimiter) {
	contactLimiterInstance = l
}

type rateWindow struct {
	count   int
	resetAt time.Time
}

// MemoryRateLimiter keeps counters in process memory. Counters are not shared
// between instances and reset on restart.
type MemoryRateLimiter struct {
	mu      sync.Mutex
	windows map[string]*rateWindow
	limit   int
	window  time.Duration
	now     func() time.Time
}

// NewMemoryRateLimiter allows limit hits per key per window
func NewMemoryRateLimiter(limit int, window time.Duration) *MemoryRateLimiter {
	return &MemoryRateLimiter{
		windows: make(map[string]*rateWindow),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// Allow records a hit for key
func (m *MemoryRateLimiter) Allow(_ context.Context, key string) (RateDecision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w, ok := m.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &rateWindow{resetAt: now.Add(m.window)}
		m.windows[key] = w
	}

	if w.count >= m.limit {
		return RateDecision{Allowed: false, RetryAfter: w.resetAt.Sub(now)}, nil
	}
	w.count++
	return RateDecision{Allowed: true, Remaining: m.limit - w.count}, nil
}

// Sweep drops expired windows
func (m *MemoryRateLimiter) Sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for key, w := range m.windows {
		if !now.Before(w.resetAt) {
			delete(m.windows, key)
		}
	}
}

// RunJanitor sweeps every interval until ctx is done
func (m *MemoryRateLimiter) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// RedisRateLimiter shares counters across instances through Redis
type RedisRateLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

// NewRedisRateLimiter allows limit hits per key per window. Keys are stored
// as "<prefix>:<key>".
func NewRedisRateLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, prefix: strings.TrimSuffix(prefix, ":"), limit: limit, window: window}
}

func (r *RedisRateLimiter) redisKey(key string) string {
	return r.prefix + ":" + key
}

// Allow increments the counter for key, starting its window on the first hit
func (r *RedisRateLimiter) Allow(ctx context.Context, key string) (RateDecision, error) {
	redisKey := r.redisKey(key)

	count, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return RateDecision{}, fmt.Errorf("rate limit incr: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, redisKey, r.window).Err(); err != nil {
			return RateDecision{}, fmt.Errorf("rate limit expire: %w", err)
		}
	}

	ttl, err := r.client.TTL(ctx, redisKey).Result()
	if err != nil {
		return RateDecision{}, fmt.Errorf("rate limit ttl: %w", err)
	}
	if ttl < 0 {
		// key lost its expiry, e.g. a crash between INCR and EXPIRE
		ttl = r.window
		if err := r.client.Expire(ctx, redisKey, r.window).Err(); err != nil {
			logger.FromContext(ctx).Warn("rate limit expire failed",
				slog.String("key", redisKey), slog.Any("error", err))
		}
	}

	if int(count) > r.limit {
		return RateDecision{Allowed: false, RetryAfter: ttl}, nil
	}
	return RateDecision{Allowed: true, Remaining: r.limit - int(count)}, nil
}
