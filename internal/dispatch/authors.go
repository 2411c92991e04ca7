package dispatch

import (
	"strings"
	"sync"

	"zephyrbot/internal/chat"
)

type authorKey struct {
	p      chat.Platform
	author string
}

// KnownAuthors is the set of viewers already seen in this process. It only
// grows and is never persisted.
type KnownAuthors struct {
	mu  sync.Mutex
	set map[authorKey]struct{}
}

func NewKnownAuthors() *KnownAuthors {
	return &KnownAuthors{set: map[authorKey]struct{}{}}
}

// Add reports whether author was new on p.
func (k *KnownAuthors) Add(p chat.Platform, author string) bool {
	key := authorKey{p: p, author: strings.ToLower(strings.TrimSpace(author))}
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.set[key]; ok {
		return false
	}
	k.set[key] = struct{}{}
	return true
}

func (k *KnownAuthors) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.set)
}
