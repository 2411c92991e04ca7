package llm

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	logx "zephyrbot/pkg/logx"
)

func TestBreakerOpensAndBacksOff(t *testing.T) {
	t.Parallel()
	now := time.Unix(1_700_000_000, 0)
	b := newBreaker(BreakerConfig{Trip: 2, BaseDelay: time.Second, MaxDelay: 3 * time.Second}, func() time.Time { return now })

	if b.record("generate", true) {
		t.Fatal("opened below trip")
	}
	if !b.record("generate", true) {
		t.Fatal("did not open at trip")
	}
	if open, until := b.open("generate"); !open || !until.Equal(now.Add(time.Second)) {
		t.Fatalf("open=%v until=%v", open, until)
	}
	if open, _ := b.open("describe"); open {
		t.Fatal("operations share state")
	}

	now = now.Add(1500 * time.Millisecond)
	if open, _ := b.open("generate"); open {
		t.Fatal("still open after delay")
	}
	b.record("generate", true)
	if _, until := b.open("generate"); !until.Equal(now.Add(2 * time.Second)) {
		t.Fatalf("second delay until %v", until)
	}
	b.record("generate", true)
	b.record("generate", true)
	if _, until := b.open("generate"); !until.Equal(now.Add(3 * time.Second)) {
		t.Fatalf("delay not capped: %v", until)
	}

	b.record("generate", false)
	if open, _ := b.open("generate"); open {
		t.Fatal("success did not close")
	}
}

func TestBreakerForgetsOldFailures(t *testing.T) {
	t.Parallel()
	now := time.Unix(1_700_000_000, 0)
	b := newBreaker(BreakerConfig{Trip: 2, ResetAfter: time.Minute}, func() time.Time { return now })
	b.record("generate", true)
	now = now.Add(2 * time.Minute)
	if b.record("generate", true) {
		t.Fatal("stale failure counted toward trip")
	}
}

func TestBreakerDisabled(t *testing.T) {
	t.Parallel()
	b := newBreaker(BreakerConfig{Trip: -1}, nil)
	for i := 0; i < 10; i++ {
		b.record("generate", true)
	}
	if open, _ := b.open("generate"); open {
		t.Fatal("disabled breaker opened")
	}
}

func TestClientShortCircuitsWhileOpen(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	srv := newServer(t, func(w http.ResponseWriter, _ generateBody) {
		hits.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	c, err := New(Config{Host: srv.URL, Retries: 1, Breaker: BreakerConfig{Trip: 1, BaseDelay: time.Minute}}, srv.Client(), nil, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Generate(context.Background(), "a"); err == nil || errors.Is(err, ErrUnavailable) {
		t.Fatalf("first call err = %v", err)
	}
	if _, err := c.Generate(context.Background(), "b"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("second call err = %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("server hits = %d, want 1", got)
	}
}
