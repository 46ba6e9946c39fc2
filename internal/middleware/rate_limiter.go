package middleware

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig describes a per-key token bucket.
type RateLimitConfig struct {
	Requests int           // events allowed per Window
	Window   time.Duration
	Burst    int
	IdleTTL  time.Duration // keys unused this long are forgotten
}

// Limiter hands out one token bucket per caller key.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	lastGC  time.Time
	now     func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewIPRateLimiter constructs a limiter keyed by caller address. Zero fields take
// defaults of one request per second, burst one, and a five minute idle TTL.
func NewIPRateLimiter(cfg RateLimitConfig) *Limiter {
	if cfg.Requests <= 0 {
		cfg.Requests = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Second
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 5 * time.Minute
	}

	return &Limiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Every(cfg.Window / time.Duration(cfg.Requests)),
		burst:   cfg.Burst,
		ttl:     cfg.IdleTTL,
		now:     time.Now,
	}
}

// Allow reports whether key may proceed now.
func (l *Limiter) Allow(key string) bool {
	if key == "" {
		key = "unknown"
	}

	l.mu.Lock()
	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	if now.Sub(l.lastGC) > l.ttl {
		l.sweepLocked(now)
	}
	l.mu.Unlock()

	return b.limiter.AllowN(now, 1)
}

func (l *Limiter) sweepLocked(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.ttl {
			delete(l.buckets, key)
		}
	}
	l.lastGC = now
}

// Len reports how many keys are tracked.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
