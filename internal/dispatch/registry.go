package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"zephyrbot/internal/chat"
	logx "zephyrbot/pkg/logx"
)

// ErrNoSender is returned when nothing is registered for a platform.
var ErrNoSender = errors.New("dispatch: no sender registered")

// Sender posts text to one platform's chat.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// SenderFunc adapts a plain function to Sender.
type SenderFunc func(ctx context.Context, text string) error

func (f SenderFunc) Send(ctx context.Context, text string) error { return f(ctx, text) }

// Registry maps platforms to senders. Registration normally happens once at
// startup; lookups are concurrent.
type Registry struct {
	log     logx.Logger
	timeout time.Duration

	mu      sync.RWMutex
	senders map[chat.Platform]Sender
	order   []chat.Platform
}

func NewRegistry(log logx.Logger, sendTimeout time.Duration) *Registry {
	return &Registry{log: log, timeout: sendTimeout, senders: map[chat.Platform]Sender{}}
}

func (r *Registry) Register(p chat.Platform, s Sender) {
	if s == nil {
		r.Unregister(p)
		return
	}
	r.mu.Lock()
	if _, ok := r.senders[p]; !ok {
		r.order = append(r.order, p)
	}
	r.senders[p] = s
	r.mu.Unlock()
	r.log.Info("sender registered", logx.String("platform", p.String()))
}

func (r *Registry) Unregister(p chat.Platform) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.senders[p]; !ok {
		return
	}
	delete(r.senders, p)
	for i, q := range r.order {
		if q == p {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Platforms lists registered platforms in registration order.
func (r *Registry) Platforms() []chat.Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]chat.Platform(nil), r.order...)
}

func (r *Registry) Has(p chat.Platform) bool {
	r.mu.RLock()
	_, ok := r.senders[p]
	r.mu.RUnlock()
	return ok
}

// Send delivers text to p. Transport errors and panics are logged and
// reported as false.
func (r *Registry) Send(ctx context.Context, p chat.Platform, text string) bool {
	return r.SendErr(ctx, p, text) == nil
}

// SendErr is Send with the failure cause.
func (r *Registry) SendErr(ctx context.Context, p chat.Platform, text string) (err error) {
	r.mu.RLock()
	s, ok := r.senders[p]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSender, p)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("sender %s panicked: %v", p, rec)
			r.log.Error("sender panicked", logx.String("platform", p.String()), logx.Any("panic", rec), logx.String("stack", string(debug.Stack())))
		}
	}()
	if err = s.Send(ctx, text); err != nil {
		r.log.Warn("send failed", logx.String("platform", p.String()), logx.Err(err))
		return fmt.Errorf("send %s: %w", p, err)
	}
	return nil
}

// Broadcast sends text to every registered platform except those excluded
// and reports whether at least one delivery succeeded.
func (r *Registry) Broadcast(ctx context.Context, text string, exclude ...chat.Platform) bool {
	return len(r.BroadcastTo(ctx, text, exclude...)) > 0
}

// BroadcastTo is Broadcast returning the platforms that accepted the text.
func (r *Registry) BroadcastTo(ctx context.Context, text string, exclude ...chat.Platform) []chat.Platform {
	var delivered []chat.Platform
	for _, p := range r.Platforms() {
		if excluded(p, exclude) {
			continue
		}
		if r.Send(ctx, p, text) {
			delivered = append(delivered, p)
		}
	}
	return delivered
}

func excluded(p chat.Platform, list []chat.Platform) bool {
	for _, x := range list {
		if x == p {
			return true
		}
	}
	return false
}
