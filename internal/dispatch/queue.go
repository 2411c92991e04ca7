package dispatch

import (
	"context"
	"sync"
	"time"

	"zephyrbot/internal/chat"
)

// DefaultQueueCapacity is used when no capacity is configured.
const DefaultQueueCapacity = 200

// Queue is a bounded FIFO ring. Push never blocks: when full, the oldest
// event is overwritten.
type Queue struct {
	mu   sync.Mutex
	buf  []chat.Event
	head int
	n    int

	ready chan struct{}
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{
		buf:   make([]chat.Event, capacity),
		ready: make(chan struct{}, 1),
	}
}

// Push appends ev and reports whether an older event was evicted for it.
func (q *Queue) Push(ev chat.Event) (evicted bool) {
	q.mu.Lock()
	if q.n == len(q.buf) {
		q.buf[q.head] = ev
		q.head = (q.head + 1) % len(q.buf)
		evicted = true
	} else {
		q.buf[(q.head+q.n)%len(q.buf)] = ev
		q.n++
	}
	q.mu.Unlock()
	q.signal()
	return evicted
}

// TryPop removes the oldest event without waiting.
func (q *Queue) TryPop() (chat.Event, bool) {
	q.mu.Lock()
	if q.n == 0 {
		q.mu.Unlock()
		return chat.Event{}, false
	}
	ev := q.buf[q.head]
	q.buf[q.head] = chat.Event{}
	q.head = (q.head + 1) % len(q.buf)
	q.n--
	more := q.n > 0
	q.mu.Unlock()
	if more {
		q.signal()
	}
	return ev, true
}

// Pop waits up to wait for an event. It returns false on timeout or when ctx
// is done, so callers can check for shutdown between attempts.
func (q *Queue) Pop(ctx context.Context, wait time.Duration) (chat.Event, bool) {
	if ev, ok := q.TryPop(); ok {
		return ev, true
	}
	if wait <= 0 {
		return chat.Event{}, false
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return chat.Event{}, false
		case <-t.C:
			return q.TryPop()
		case <-q.ready:
			if ev, ok := q.TryPop(); ok {
				return ev, true
			}
		}
	}
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.n
}

func (q *Queue) Cap() int { return len(q.buf) }

// Items returns the queued events oldest first.
func (q *Queue) Items() []chat.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]chat.Event, q.n)
	for i := 0; i < q.n; i++ {
		out[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	return out
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
