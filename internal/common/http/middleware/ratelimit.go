package middleware

import (
	"context"
	"sync"
	"time"

	"arena/internal/common/metrics"
	"arena/pkg/errors"
	"arena/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitConfig configures the global and per-client limits.
type RateLimitConfig struct {
	GlobalRPS   float64       `yaml:"globalRPS"`
	GlobalBurst int           `yaml:"globalBurst"`
	PerIPRPS    float64       `yaml:"perIPRPS"`
	PerIPBurst  int           `yaml:"perIPBurst"`
	IdleTTL     time.Duration `yaml:"idleTTL"`
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a global token bucket and one bucket per client IP.
type RateLimiter struct {
	global  *rate.Limiter
	ipRate  rate.Limit
	ipBurst int
	idleTTL time.Duration

	mu      sync.Mutex
	clients map[string]*ipLimiter
	now     func() time.Time
}

// NewRateLimiter creates a limiter. A zero rate disables that level.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		ipRate:  rate.Limit(cfg.PerIPRPS),
		ipBurst: cfg.PerIPBurst,
		idleTTL: cfg.IdleTTL,
		clients: make(map[string]*ipLimiter),
		now:     time.Now,
	}
	if cfg.GlobalRPS > 0 {
		burst := cfg.GlobalBurst
		if burst <= 0 {
			burst = int(cfg.GlobalRPS) * 2
			if burst < 1 {
				burst = 1
			}
		}
		rl.global = rate.NewLimiter(rate.Limit(cfg.GlobalRPS), burst)
	}
	if rl.ipBurst <= 0 {
		rl.ipBurst = 1
	}
	if rl.idleTTL <= 0 {
		rl.idleTTL = 10 * time.Minute
	}
	return rl
}

// Allow reports whether a request from ip may proceed.
func (rl *RateLimiter) Allow(ip string) bool {
	if rl.global != nil && !rl.global.Allow() {
		return false
	}
	if rl.ipRate <= 0 {
		return true
	}
	rl.mu.Lock()
	entry, ok := rl.clients[ip]
	if !ok {
		entry = &ipLimiter{limiter: rate.NewLimiter(rl.ipRate, rl.ipBurst)}
		rl.clients[ip] = entry
	}
	entry.lastSeen = rl.now()
	rl.mu.Unlock()
	return entry.limiter.Allow()
}

// Cleanup drops limiters of clients idle for longer than the TTL.
func (rl *RateLimiter) Cleanup() int {
	cutoff := rl.now().Add(-rl.idleTTL)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	removed := 0
	for ip, entry := range rl.clients {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.clients, ip)
			removed++
		}
	}
	return removed
}

// RunCleanup calls Cleanup on every tick until ctx is done.
func (rl *RateLimiter) RunCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Cleanup()
		}
	}
}

// Middleware rejects requests over the limit with 429.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			metrics.RateLimitHits.WithLabelValues(c.FullPath()).Inc()
			response.AbortWithCode(c, errors.TooManyRequests, "")
			return
		}
		c.Next()
	}
}
