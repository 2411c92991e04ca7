package dispatch

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"zephyrbot/internal/chat"
	"zephyrbot/internal/clock"
)

// DefaultMinResponseInterval spaces event-triggered replies per platform.
const DefaultMinResponseInterval = 3 * time.Second

// RateLimiter enforces a minimum gap between replies on one platform with a
// burst-1 token bucket per platform. Every call passes the clock's time, so
// a fake clock drives it. A zero interval disables limiting. Scheduled
// broadcasts do not go through it.
type RateLimiter struct {
	interval time.Duration
	clock    clock.Clock

	mu       sync.Mutex
	limiters map[chat.Platform]*rate.Limiter
}

func NewRateLimiter(interval time.Duration, clk clock.Clock) *RateLimiter {
	if interval < 0 {
		interval = 0
	}
	return &RateLimiter{interval: interval, clock: clock.Or(clk), limiters: map[chat.Platform]*rate.Limiter{}}
}

// limiterLocked returns p's bucket, creating a full one on first use.
func (r *RateLimiter) limiterLocked(p chat.Platform) *rate.Limiter {
	l, ok := r.limiters[p]
	if !ok {
		l = rate.NewLimiter(rate.Every(r.interval), 1)
		r.limiters[p] = l
	}
	return l
}

// MaySendNow reports whether p may send without consuming the slot.
func (r *RateLimiter) MaySendNow(p chat.Platform) bool {
	if r.interval == 0 {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.limiterLocked(p).TokensAt(r.clock.Now()) >= 1
}

// RecordSent marks a send on p, even one that was not checked first.
func (r *RateLimiter) RecordSent(p chat.Platform) {
	if r.interval == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiterLocked(p).ReserveN(r.clock.Now(), 1)
}

// Reserve checks and records in one step, so two workers cannot both pass
// MaySendNow for the same slot.
func (r *RateLimiter) Reserve(p chat.Platform) bool {
	if r.interval == 0 {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.limiterLocked(p).AllowN(r.clock.Now(), 1)
}

// Remaining is the time left until p may send again.
func (r *RateLimiter) Remaining(p chat.Platform) time.Duration {
	if r.interval == 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	tokens := r.limiterLocked(p).TokensAt(r.clock.Now())
	if tokens >= 1 {
		return 0
	}
	return time.Duration((1 - tokens) * float64(r.interval))
}
