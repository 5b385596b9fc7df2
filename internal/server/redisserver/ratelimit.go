package redisserver

import (
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// ipRateLimiter keeps one token-bucket limiter per client IP.
//
// The map grows with the set of distinct client IPs and is never pruned;
// acceptable for the expected deployment behind a known client set.
type ipRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newIPRateLimiter(perSecond int) *ipRateLimiter {
	return &ipRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(perSecond),
		burst:    perSecond,
	}
}

// Allow reports whether a command from the given remote address (host:port)
// is within the per-IP budget.
func (l *ipRateLimiter) Allow(addr string) bool {
	ip := addr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}

	l.mu.Lock()
	lim, ok := l.limiters[ip]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[ip] = lim
	}
	l.mu.Unlock()

	return lim.Allow()
}
