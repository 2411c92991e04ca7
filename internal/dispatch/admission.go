package dispatch

import (
	"strings"
	"sync"
	"time"

	"zephyrbot/internal/chat"
	"zephyrbot/internal/clock"
)

// DefaultMaxMessageAge is how long an event stays answerable.
const DefaultMaxMessageAge = 300 * time.Second

// Reason explains why admission rejected an event.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonEmpty     Reason = "empty"
	ReasonSelf      Reason = "self"
	ReasonStale     Reason = "stale"
	ReasonDuplicate Reason = "duplicate"
)

func (r Reason) String() string {
	if r == ReasonNone {
		return "accepted"
	}
	return string(r)
}

// Filter admits new, foreign, fresh events. Checks run in a fixed order
// (empty, self, stale, duplicate) and the dedup key is only recorded for
// events that pass all of them.
type Filter struct {
	seen   *SeenSet
	maxAge time.Duration
	clock  clock.Clock

	mu   sync.RWMutex
	self map[chat.Platform]map[string]struct{}
}

func NewFilter(seen *SeenSet, maxAge time.Duration, clk clock.Clock) *Filter {
	if seen == nil {
		seen = NewSeenSet(0)
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxMessageAge
	}
	return &Filter{
		seen:   seen,
		maxAge: maxAge,
		clock:  clock.Or(clk),
		self:   map[chat.Platform]map[string]struct{}{},
	}
}

// SetBotNames replaces the display names the bot posts under on p.
func (f *Filter) SetBotNames(p chat.Platform, names ...string) {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" {
			set[n] = struct{}{}
		}
	}
	f.mu.Lock()
	f.self[p] = set
	f.mu.Unlock()
}

// IsSelf reports whether author is one of the bot's names on p.
func (f *Filter) IsSelf(p chat.Platform, author string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.self[p][strings.ToLower(strings.TrimSpace(author))]
	return ok
}

// IsStale reports whether ev is older than the max age at the current time.
// An event exactly max age old is still fresh.
func (f *Filter) IsStale(ev chat.Event) bool {
	return ev.Age(f.clock.Now()) > f.maxAge
}

func (f *Filter) Admit(ev chat.Event) (bool, Reason) {
	switch {
	case ev.Text == "":
		return false, ReasonEmpty
	case f.IsSelf(ev.Platform, ev.Author):
		return false, ReasonSelf
	case f.IsStale(ev):
		return false, ReasonStale
	}
	if !f.seen.Add(ev.DedupKey) {
		return false, ReasonDuplicate
	}
	return true, ReasonNone
}

// Warm marks keys as already seen, e.g. from a persisted seen log.
func (f *Filter) Warm(keys []string) int {
	n := 0
	for _, k := range keys {
		if k != "" && f.seen.Add(k) {
			n++
		}
	}
	return n
}

func (f *Filter) MaxAge() time.Duration { return f.maxAge }
