package llm

import (
	"errors"
	"sync"
	"time"
)

// ErrUnavailable is returned without contacting the server while the
// breaker for an operation is open.
var ErrUnavailable = errors.New("llm: backend marked unavailable")

// BreakerConfig controls the consecutive-failure breaker. A call that still
// fails after all retries counts as one failure.
type BreakerConfig struct {
	// Trip is the number of failed calls that opens the breaker. Zero uses
	// 5; negative disables the breaker.
	Trip int
	// BaseDelay is the first open period; it doubles per further failure
	// up to MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// ResetAfter forgets old failures.
	ResetAfter time.Duration
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.Trip == 0 {
		c.Trip = 5
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 5 * time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 2 * time.Minute
	}
	if c.ResetAfter <= 0 {
		c.ResetAfter = 5 * time.Minute
	}
	return c
}

type breakerState struct {
	fails       int
	openUntil   time.Time
	lastFailure time.Time
}

// breaker tracks one state per operation ("generate", "describe").
type breaker struct {
	cfg BreakerConfig
	now func() time.Time

	mu sync.Mutex
	m  map[string]*breakerState
}

func newBreaker(cfg BreakerConfig, now func() time.Time) *breaker {
	if now == nil {
		now = time.Now
	}
	return &breaker{cfg: cfg.withDefaults(), now: now, m: map[string]*breakerState{}}
}

func (b *breaker) stateLocked(op string, now time.Time) *breakerState {
	st := b.m[op]
	if st == nil {
		st = &breakerState{}
		b.m[op] = st
	}
	if !st.lastFailure.IsZero() && now.Sub(st.lastFailure) > b.cfg.ResetAfter {
		*st = breakerState{}
	}
	return st
}

// open reports whether op is short-circuited and until when.
func (b *breaker) open(op string) (bool, time.Time) {
	if b == nil || b.cfg.Trip < 0 {
		return false, time.Time{}
	}
	now := b.now()
	b.mu.Lock()
	defer b.mu.Unlock()
	st := b.stateLocked(op, now)
	if !st.openUntil.IsZero() && now.Before(st.openUntil) {
		return true, st.openUntil
	}
	return false, time.Time{}
}

// record notes the outcome of a call. It returns true when this failure
// opened the breaker.
func (b *breaker) record(op string, failed bool) bool {
	if b == nil || b.cfg.Trip < 0 {
		return false
	}
	now := b.now()
	b.mu.Lock()
	defer b.mu.Unlock()
	st := b.stateLocked(op, now)
	if !failed {
		*st = breakerState{}
		return false
	}
	st.fails++
	st.lastFailure = now
	if st.fails < b.cfg.Trip {
		return false
	}
	d := b.cfg.BaseDelay
	for i := 0; i < st.fails-b.cfg.Trip && d < b.cfg.MaxDelay; i++ {
		d *= 2
	}
	st.openUntil = now.Add(min(d, b.cfg.MaxDelay))
	return true
}
