package main

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter keeps one token bucket per client IP.
type IPRateLimiter struct {
	mu       sync.Mutex
	clock    Clocker
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	idle     time.Duration
	interval time.Duration
}

func NewIPRateLimiter(config *RateLimitConfig, clock Clocker) *IPRateLimiter {
	return &IPRateLimiter{
		clock:    clock,
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(config.RequestsPerSec),
		burst:    config.Burst,
		idle:     config.IdleTimeout,
		interval: config.CleanupInterval,
	}
}

// Allow consumes one token from the bucket of ip.
func (rl *IPRateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	v, found := rl.visitors[ip]
	if !found {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = rl.clock.Now()
	return v.limiter.Allow()
}

// Evict removes the buckets not used for longer than the idle timeout.
func (rl *IPRateLimiter) Evict() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.clock.Now()
	evicted := 0
	for ip, v := range rl.visitors {
		if now.Sub(v.lastSeen) > rl.idle {
			delete(rl.visitors, ip)
			evicted++
		}
	}
	return evicted
}

// Janitor evicts idle buckets periodically until ctx is done.
func (rl *IPRateLimiter) Janitor(ctx context.Context) error {
	ticker := time.NewTicker(rl.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rl.Evict()
		}
	}
}
