package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxTenants caps the number of tracked limiters.
const maxTenants = 10000

// RateLimiter is per-tenant token bucket middleware. Tenants are read from
// the request context, so it must run after Tenant.
type RateLimiter struct {
	mu      sync.Mutex
	tenants map[string]*tenantLimiter
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

type tenantLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter granting each tenant perSecond requests
// per second with bursts of up to burst requests.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		tenants: make(map[string]*tenantLimiter),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		now:     time.Now,
	}
}

// Handler rejects requests over the tenant's budget with 429.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remaining, wait, ok := rl.allow(TenantFromContext(r.Context()))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.burst))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// allow takes a token from tenant's limiter. It reports the whole tokens
// left and, when refused, how long until the next token.
func (rl *RateLimiter) allow(tenant string) (remaining int, wait time.Duration, ok bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	t, exists := rl.tenants[tenant]
	if !exists {
		if len(rl.tenants) >= maxTenants {
			return 0, rl.interval(), false
		}
		t = &tenantLimiter{lim: rate.NewLimiter(rl.limit, rl.burst)}
		rl.tenants[tenant] = t
	}
	t.lastSeen = now

	res := t.lim.ReserveN(now, 1)
	if !res.OK() {
		return 0, rl.interval(), false
	}
	if d := res.DelayFrom(now); d > 0 {
		res.CancelAt(now)
		return 0, d, false
	}
	return int(t.lim.TokensAt(now)), 0, true
}

// interval is the time between two tokens.
func (rl *RateLimiter) interval() time.Duration {
	if rl.limit <= 0 {
		return time.Second
	}
	return time.Duration(float64(time.Second) / float64(rl.limit))
}

// StartCleanup drops limiters idle for longer than maxIdle every interval
// until ctx is done.
func (rl *RateLimiter) StartCleanup(ctx context.Context, interval, maxIdle time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.cleanup(maxIdle)
			}
		}
	}()
}

func (rl *RateLimiter) cleanup(maxIdle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-maxIdle)
	for tenant, t := range rl.tenants {
		if t.lastSeen.Before(cutoff) {
			delete(rl.tenants, tenant)
		}
	}
}

// Len returns the number of tracked tenants.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.tenants)
}
