package dispatch

import "sync"

// DefaultSeenCapacity bounds SeenSet when no capacity is configured.
const DefaultSeenCapacity = 10000

// SeenSet remembers admitted dedup keys. When it grows past its capacity the
// oldest fifth of the keys is forgotten in one step.
type SeenSet struct {
	mu    sync.Mutex
	cap   int
	keys  map[string]struct{}
	order []string
}

func NewSeenSet(capacity int) *SeenSet {
	if capacity <= 0 {
		capacity = DefaultSeenCapacity
	}
	return &SeenSet{
		cap:   capacity,
		keys:  make(map[string]struct{}, capacity),
		order: make([]string, 0, capacity),
	}
}

// Add inserts key and reports whether it was new.
func (s *SeenSet) Add(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return false
	}
	s.keys[key] = struct{}{}
	s.order = append(s.order, key)
	if len(s.order) > s.cap {
		s.pruneLocked()
	}
	return true
}

func (s *SeenSet) Contains(key string) bool {
	s.mu.Lock()
	_, ok := s.keys[key]
	s.mu.Unlock()
	return ok
}

func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

func (s *SeenSet) pruneLocked() {
	n := s.cap / 5
	if n < 1 {
		n = 1
	}
	if n > len(s.order) {
		n = len(s.order)
	}
	for _, k := range s.order[:n] {
		delete(s.keys, k)
	}
	// Copy so the backing array does not keep growing at the front.
	rest := make([]string, len(s.order)-n, s.cap+1)
	copy(rest, s.order[n:])
	s.order = rest
}
