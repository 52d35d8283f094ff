package ratelimit

import (
	"sync"
	"time"
)

// Config tunes the token bucket limiter.
type Config struct {
	Rate       float64       // refill rate, tokens per second
	Burst      int           // bucket capacity
	TTL        time.Duration // idle buckets older than this are dropped, 0 keeps them forever
	MaxBuckets int           // hard cap on tracked keys, 0 means unlimited
}

// TokenBucketLimiter keeps an independent token bucket per key. Keys are
// actor identities or client IPs, so a single busy courier drains only its
// own bucket.
type TokenBucketLimiter struct {
	cfg   Config
	clock Clock

	mu      sync.RWMutex
	buckets map[string]*bucket
	swept   time.Time
}

type bucket struct {
	mu      sync.Mutex
	level   float64
	refill  time.Time
	touched time.Time
}

// NewTokenBucketLimiter builds a limiter from cfg, clamping nonsense values
// to a minimal working configuration.
func NewTokenBucketLimiter(clock Clock, cfg Config) *TokenBucketLimiter {
	if clock == nil {
		clock = RealClock{}
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.MaxBuckets < 0 {
		cfg.MaxBuckets = 0
	}
	return &TokenBucketLimiter{
		cfg:     cfg,
		clock:   clock,
		buckets: make(map[string]*bucket),
	}
}

// NewTokenBucketPerWindow expresses the limit as "at most limit requests per
// window", with burst equal to the limit.
func NewTokenBucketPerWindow(clock Clock, limit int, window time.Duration, ttl time.Duration, maxBuckets int) *TokenBucketLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Second
	}
	return NewTokenBucketLimiter(clock, Config{
		Rate:       float64(limit) / window.Seconds(),
		Burst:      limit,
		TTL:        ttl,
		MaxBuckets: maxBuckets,
	})
}

// Allow reports whether the request keyed by key may proceed. When the key
// table is full, new keys are rejected until the sweeper frees room.
func (l *TokenBucketLimiter) Allow(key string) bool {
	now := l.clock.Now()
	l.sweep(now)

	b := l.lookup(key, now)
	if b == nil {
		return false
	}
	return b.take(now, l.cfg.Rate, float64(l.cfg.Burst))
}

func (l *TokenBucketLimiter) lookup(key string, now time.Time) *bucket {
	l.mu.RLock()
	b := l.buckets[key]
	l.mu.RUnlock()
	if b != nil {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Lost the race to another writer.
	if b = l.buckets[key]; b != nil {
		return b
	}
	if l.cfg.MaxBuckets > 0 && len(l.buckets) >= l.cfg.MaxBuckets {
		return nil
	}

	b = &bucket{
		level:   float64(l.cfg.Burst),
		refill:  now,
		touched: now,
	}
	l.buckets[key] = b
	return b
}

func (b *bucket) take(now time.Time, rate, burst float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if dt := now.Sub(b.refill); dt > 0 {
		b.level += dt.Seconds() * rate
		if b.level > burst {
			b.level = burst
		}
		b.refill = now
	}
	b.touched = now

	if b.level < 1 {
		return false
	}
	b.level--
	return true
}

// sweep drops buckets idle past TTL. Runs at most once per interval so the
// hot path never walks the whole table on every request.
func (l *TokenBucketLimiter) sweep(now time.Time) {
	if l.cfg.TTL <= 0 {
		return
	}

	interval := time.Minute
	if half := l.cfg.TTL / 2; half > interval {
		interval = half
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.swept.IsZero() && now.Sub(l.swept) < interval {
		return
	}
	l.swept = now

	for k, b := range l.buckets {
		b.mu.Lock()
		idleSince := b.touched
		b.mu.Unlock()

		if now.Sub(idleSince) > l.cfg.TTL {
			delete(l.buckets, k)
		}
	}
}
