package dispatch

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"zephyrbot/internal/chat"
	"zephyrbot/internal/clock"
	logx "zephyrbot/pkg/logx"
)

type recSender struct {
	mu    sync.Mutex
	texts []string
	err   error
	boom  bool
	sent  chan string
}

func (s *recSender) Send(_ context.Context, text string) error {
	if s.boom {
		panic("transport exploded")
	}
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()
	if s.sent != nil {
		s.sent <- text
	}
	return s.err
}

func (s *recSender) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

type routeFunc func(ctx context.Context, ev chat.Event) (string, bool)

func (f routeFunc) Route(ctx context.Context, ev chat.Event) (string, bool) { return f(ctx, ev) }

type greetFunc func(ev chat.Event) string

func (f greetFunc) Greet(ev chat.Event) string { return f(ev) }

var t0 = time.Unix(1_700_000_000, 0)

func newTestDispatcher(clk clock.Clock, r Router) *Dispatcher {
	return New(Options{
		BotNames: map[chat.Platform][]string{
			chat.Twitch:  {"zephyr"},
			chat.YouTube: {"ZephyroBot", "My Channel"},
			chat.Vision:  {"zephyr"},
		},
		QueueCapacity: 10,
		Clock:         clk,
	}, r)
}

func echoRouter(ctx context.Context, ev chat.Event) (string, bool) {
	return "re: " + ev.Text, true
}

func TestSeenSetPrunesOldestFifth(t *testing.T) {
	t.Parallel()
	s := NewSeenSet(10)
	for i := 0; i < 11; i++ {
		if !s.Add("k" + strconv.Itoa(i)) {
			t.Fatalf("key %d reported as seen", i)
		}
	}
	if got := s.Len(); got != 9 {
		t.Fatalf("Len = %d, want 9", got)
	}
	if s.Contains("k0") || s.Contains("k1") {
		t.Fatal("oldest keys should have been pruned")
	}
	if !s.Contains("k2") || !s.Contains("k10") {
		t.Fatal("recent keys should survive pruning")
	}
	if s.Add("k10") {
		t.Fatal("re-adding a present key should report false")
	}
}

func TestDeliverIsIdempotent(t *testing.T) {
	t.Parallel()
	clk := clock.NewFake(t0)
	d := newTestDispatcher(clk, routeFunc(echoRouter))

	ev := chat.NewEvent(chat.Twitch, "alice", "hallo", t0, "")
	if !d.DeliverEvent(ev) {
		t.Fatal("first delivery should be admitted")
	}
	if d.DeliverEvent(ev) {
		t.Fatal("second delivery should be rejected")
	}
	snap := d.Stats()
	if snap.Total != 1 || snap.ByPlatform[chat.Twitch] != 1 {
		t.Fatalf("intake counted %d/%d, want 1/1", snap.Total, snap.ByPlatform[chat.Twitch])
	}
	if snap.Rejected[ReasonDuplicate] != 1 {
		t.Fatalf("duplicate rejections = %d", snap.Rejected[ReasonDuplicate])
	}
	if snap.QueueSize != 1 {
		t.Fatalf("QueueSize = %d", snap.QueueSize)
	}
}

func TestDuplicateYouTubeRedelivery(t *testing.T) {
	t.Parallel()
	clk := clock.NewFake(t0)
	d := newTestDispatcher(clk, routeFunc(echoRouter))

	first := chat.NewEvent(chat.YouTube, "bob", "hi", t0.Add(-10*time.Second), "msg123")
	second := chat.NewEvent(chat.YouTube, "bob", "hi", t0.Add(-2*time.Second), "msg123")
	if !d.DeliverEvent(first) {
		t.Fatal("first should be admitted")
	}
	if d.DeliverEvent(second) {
		t.Fatal("redelivery should be rejected")
	}
	if items := d.Queue().Items(); len(items) != 1 || items[0].TraceID != first.TraceID {
		t.Fatalf("queue holds %+v", items)
	}
}

func TestSelfAuthoredNeverAdmitted(t *testing.T) {
	t.Parallel()
	cases := []struct {
		p      chat.Platform
		author string
	}{
		{chat.Twitch, "Zephyr"},
		{chat.Twitch, "ZEPHYR"},
		{chat.YouTube, "zephyrobot"},
		{chat.YouTube, "my channel"},
		{chat.Vision, "zephyr"},
	}
	for _, tc := range cases {
		t.Run(string(tc.p)+"/"+tc.author, func(t *testing.T) {
			t.Parallel()
			clk := clock.NewFake(t0)
			d := newTestDispatcher(clk, routeFunc(echoRouter))
			if d.Deliver(tc.p, tc.author, "hello", t0) {
				t.Fatal("self-authored event was admitted")
			}
			if d.Stats().Rejected[ReasonSelf] != 1 {
				t.Fatal("expected a self rejection")
			}
		})
	}
}

func TestStaleness(t *testing.T) {
	t.Parallel()
	cases := []struct {
		age  time.Duration
		want bool
	}{
		{299 * time.Second, true},
		{300 * time.Second, true},
		{301 * time.Second, false},
		{-5 * time.Second, true},
	}
	for _, tc := range cases {
		clk := clock.NewFake(t0)
		f := NewFilter(nil, DefaultMaxMessageAge, clk)
		ev := chat.NewEvent(chat.Twitch, "alice", "x", t0.Add(-tc.age), "")
		got, reason := f.Admit(ev)
		if got != tc.want {
			t.Fatalf("age %s: admitted=%v (%s), want %v", tc.age, got, reason, tc.want)
		}
		if !tc.want && reason != ReasonStale {
			t.Fatalf("age %s: reason %s", tc.age, reason)
		}
	}
}

func TestRejectedEventsDoNotConsumeKey(t *testing.T) {
	t.Parallel()
	clk := clock.NewFake(t0)
	f := NewFilter(nil, time.Minute, clk)
	ev := chat.NewEvent(chat.YouTube, "bob", "hi", t0.Add(-2*time.Minute), "id-1")
	if ok, _ := f.Admit(ev); ok {
		t.Fatal("stale event admitted")
	}
	fresh := chat.NewEvent(chat.YouTube, "bob", "hi", t0, "id-1")
	if ok, reason := f.Admit(fresh); !ok {
		t.Fatalf("fresh event with same key rejected: %s", reason)
	}
}

func TestEmptyTextRejected(t *testing.T) {
	t.Parallel()
	d := newTestDispatcher(clock.NewFake(t0), routeFunc(echoRouter))
	if d.Deliver(chat.Twitch, "alice", "   ", t0) {
		t.Fatal("blank message admitted")
	}
}

func TestQueueKeepsMostRecent(t *testing.T) {
	t.Parallel()
	const capacity, k = 5, 3
	q := NewQueue(capacity)
	evictions := 0
	for i := 0; i < capacity+k; i++ {
		if q.Push(chat.Event{Text: strconv.Itoa(i)}) {
			evictions++
		}
	}
	if evictions != k {
		t.Fatalf("evictions = %d, want %d", evictions, k)
	}
	items := q.Items()
	if len(items) != capacity {
		t.Fatalf("len = %d, want %d", len(items), capacity)
	}
	for i, ev := range items {
		if want := strconv.Itoa(i + k); ev.Text != want {
			t.Fatalf("items[%d] = %s, want %s", i, ev.Text, want)
		}
	}
	for i := k; i < capacity+k; i++ {
		ev, ok := q.TryPop()
		if !ok || ev.Text != strconv.Itoa(i) {
			t.Fatalf("pop %d = %q, %v", i, ev.Text, ok)
		}
	}
	if _, ok := q.TryPop(); ok {
		t.Fatal("queue should be empty")
	}
}

func TestQueuePopWaitsForPush(t *testing.T) {
	t.Parallel()
	q := NewQueue(2)
	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Push(chat.Event{Text: "late"})
	}()
	ev, ok := q.Pop(context.Background(), 2*time.Second)
	if !ok || ev.Text != "late" {
		t.Fatalf("Pop = %q, %v", ev.Text, ok)
	}
}

func TestQueuePopTimesOutAndHonorsContext(t *testing.T) {
	t.Parallel()
	q := NewQueue(2)
	if _, ok := q.Pop(context.Background(), 10*time.Millisecond); ok {
		t.Fatal("empty queue returned an event")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if _, ok := q.Pop(ctx, time.Minute); ok {
		t.Fatal("cancelled Pop returned an event")
	}
	if time.Since(start) > time.Second {
		t.Fatal("Pop ignored cancellation")
	}
}

func TestRateLimiter(t *testing.T) {
	t.Parallel()
	clk := clock.NewFake(t0)
	r := NewRateLimiter(3*time.Second, clk)
	if !r.MaySendNow(chat.Twitch) {
		t.Fatal("fresh limiter should allow")
	}
	r.RecordSent(chat.Twitch)
	clk.Advance(2 * time.Second)
	if r.MaySendNow(chat.Twitch) {
		t.Fatal("2s after a send should be limited")
	}
	if !r.MaySendNow(chat.YouTube) {
		t.Fatal("platforms must not share state")
	}
	clk.Advance(time.Second)
	if !r.Reserve(chat.Twitch) {
		t.Fatal("exactly the interval should allow")
	}
	if r.Reserve(chat.Twitch) {
		t.Fatal("Reserve should record the send")
	}
	if got := r.Remaining(chat.Twitch); got != 3*time.Second {
		t.Fatalf("Remaining = %v, want 3s", got)
	}
}

func TestRateLimiterSteps(t *testing.T) {
	t.Parallel()
	clk := clock.NewFake(t0)
	r := NewRateLimiter(3*time.Second, clk)
	steps := []struct {
		at   time.Duration
		want bool
	}{
		{0, true},
		{time.Second, false},
		{2999 * time.Millisecond, false},
		{3 * time.Second, true},
		{5 * time.Second, false},
		{10 * time.Second, true},
		{12999 * time.Millisecond, false},
		{13 * time.Second, true},
	}
	for _, s := range steps {
		clk.Set(t0.Add(s.at))
		if got := r.MaySendNow(chat.Twitch); got != s.want {
			t.Fatalf("MaySendNow at %v = %v, want %v", s.at, got, s.want)
		}
		if got := r.Reserve(chat.Twitch); got != s.want {
			t.Fatalf("Reserve at %v = %v, want %v", s.at, got, s.want)
		}
		if !s.want && r.Remaining(chat.Twitch) <= 0 {
			t.Fatalf("Remaining at %v should be positive", s.at)
		}
	}
}

func TestRateLimiterZeroIntervalNeverLimits(t *testing.T) {
	t.Parallel()
	r := NewRateLimiter(0, clock.NewFake(t0))
	for i := 0; i < 5; i++ {
		if !r.Reserve(chat.YouTube) {
			t.Fatalf("send %d limited with zero interval", i)
		}
	}
	if r.Remaining(chat.YouTube) != 0 {
		t.Fatal("Remaining should be zero")
	}
}

func TestRateLimitEnforcedOnReplies(t *testing.T) {
	t.Parallel()
	clk := clock.NewFake(t0)
	d := newTestDispatcher(clk, routeFunc(echoRouter))
	tw := &recSender{}
	d.RegisterSender(chat.Twitch, tw)
	ctx := context.Background()

	d.Process(ctx, chat.NewEvent(chat.Twitch, "alice", "one", t0, ""))
	clk.Advance(time.Second)
	d.Process(ctx, chat.NewEvent(chat.Twitch, "bob", "two", clk.Now(), ""))
	if got := tw.calls(); len(got) != 1 {
		t.Fatalf("sends within interval = %d, want 1", len(got))
	}

	clk.Advance(4 * time.Second)
	d.Process(ctx, chat.NewEvent(chat.Twitch, "carol", "three", clk.Now(), ""))
	if got := tw.calls(); len(got) != 2 || got[1] != "re: three" {
		t.Fatalf("sends = %v", got)
	}
	if snap := d.Stats(); snap.RateLimited != 1 || snap.Replies != 2 {
		t.Fatalf("rate_limited=%d replies=%d", snap.RateLimited, snap.Replies)
	}
}

func TestBroadcastPartialFailure(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(logx.Nop(), 0)
	tw, yt := &recSender{}, &recSender{}
	reg.Register(chat.Twitch, tw)
	reg.Register(chat.Vision, &recSender{boom: true})
	reg.Register(chat.YouTube, yt)

	if !reg.Broadcast(context.Background(), "hallo") {
		t.Fatal("broadcast should succeed when any platform delivers")
	}
	if len(tw.calls()) != 1 || len(yt.calls()) != 1 {
		t.Fatalf("twitch=%v youtube=%v", tw.calls(), yt.calls())
	}
}

func TestBroadcastExcludeAndAllFail(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(logx.Nop(), 0)
	tw := &recSender{}
	reg.Register(chat.Twitch, tw)
	reg.Register(chat.YouTube, &recSender{err: errors.New("quota")})

	if reg.Broadcast(context.Background(), "x", chat.Twitch) {
		t.Fatal("only the failing platform was eligible")
	}
	if len(tw.calls()) != 0 {
		t.Fatal("excluded platform was called")
	}
}

func TestSendWithoutSender(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(logx.Nop(), 0)
	if reg.Send(context.Background(), chat.Twitch, "x") {
		t.Fatal("send without registration should fail")
	}
	if err := reg.SendErr(context.Background(), chat.Twitch, "x"); !errors.Is(err, ErrNoSender) {
		t.Fatalf("err = %v", err)
	}
}

func TestEndToEndJoke(t *testing.T) {
	t.Parallel()
	clk := clock.NewFake(time.Unix(100, 0))
	router := routeFunc(func(ctx context.Context, ev chat.Event) (string, bool) {
		if ev.Text == "!witz" {
			return "🎭 Warum…?", true
		}
		return "", false
	})
	d := newTestDispatcher(clk, router)
	tw := &recSender{sent: make(chan string, 4)}
	d.RegisterSender(chat.Twitch, tw)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = d.Run(ctx)
		close(done)
	}()

	if !d.Deliver(chat.Twitch, "alice", "!witz", time.Unix(100, 0)) {
		t.Fatal("event not admitted")
	}
	select {
	case got := <-tw.sent:
		if got != "🎭 Warum…?" {
			t.Fatalf("sent %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reply sent")
	}
	cancel()
	<-done
	if n := len(tw.calls()); n != 1 {
		t.Fatalf("transport calls = %d, want 1", n)
	}
}

func TestGreetingForNewAuthors(t *testing.T) {
	t.Parallel()
	clk := clock.NewFake(t0)
	silent := routeFunc(func(context.Context, chat.Event) (string, bool) { return "", false })
	d := newTestDispatcher(clk, silent)
	d.SetGreeter(greetFunc(func(ev chat.Event) string { return "Willkommen " + ev.Author }))
	tw := &recSender{}
	d.RegisterSender(chat.Twitch, tw)
	ctx := context.Background()

	d.Process(ctx, chat.NewEvent(chat.Twitch, "Dana", "hi", t0, ""))
	clk.Advance(10 * time.Second)
	d.Process(ctx, chat.NewEvent(chat.Twitch, "dana", "again", clk.Now(), ""))
	clk.Advance(10 * time.Second)
	d.Process(ctx, chat.NewEvent(chat.Twitch, "Nightbot", "hi", clk.Now(), ""))

	got := tw.calls()
	if len(got) != 1 || got[0] != "Willkommen Dana" {
		t.Fatalf("sends = %v", got)
	}
	if d.Stats().Greetings != 1 {
		t.Fatal("greeting not counted")
	}
}

func TestVisionEventsBroadcastWithPrefix(t *testing.T) {
	t.Parallel()
	clk := clock.NewFake(t0)
	d := newTestDispatcher(clk, routeFunc(echoRouter))
	tw, yt := &recSender{}, &recSender{}
	d.RegisterSender(chat.Twitch, tw)
	d.RegisterSender(chat.YouTube, yt)
	ctx := context.Background()

	d.Process(ctx, chat.NewEvent(chat.Twitch, "alice", "hi", t0, ""))
	d.Process(ctx, chat.NewEvent(chat.Vision, "screenshot-watcher", "Schöne Aussicht", t0, ""))

	if got := tw.calls(); len(got) != 2 || got[1] != VisionPrefix+"Schöne Aussicht" {
		t.Fatalf("twitch got %v", got)
	}
	if got := yt.calls(); len(got) != 1 {
		t.Fatalf("youtube got %v", got)
	}
}

func TestExpiredInQueueIsDropped(t *testing.T) {
	t.Parallel()
	clk := clock.NewFake(t0)
	d := newTestDispatcher(clk, routeFunc(echoRouter))
	tw := &recSender{}
	d.RegisterSender(chat.Twitch, tw)

	if !d.Deliver(chat.Twitch, "alice", "hi", t0) {
		t.Fatal("not admitted")
	}
	clk.Advance(DefaultMaxMessageAge + time.Second)
	ev, ok := d.Queue().TryPop()
	if !ok {
		t.Fatal("queue empty")
	}
	d.Process(context.Background(), ev)
	if len(tw.calls()) != 0 {
		t.Fatal("stale event was answered")
	}
	if d.Stats().Expired != 1 {
		t.Fatal("expiry not counted")
	}
}

func TestClassifySentiment(t *testing.T) {
	t.Parallel()
	cases := []struct {
		pos, neg  int
		label     string
		wantScore int
	}{
		{0, 0, SentimentNeutral, 0},
		{5, 2, SentimentVeryPositive, 2},
		{4, 2, SentimentPositive, 1},
		{1, 3, SentimentVeryNegative, -2},
		{2, 3, SentimentNegative, -1},
		{2, 2, SentimentNeutral, 0},
	}
	for _, tc := range cases {
		label, score := ClassifySentiment(tc.pos, tc.neg)
		if label != tc.label || score != tc.wantScore {
			t.Fatalf("(%d,%d) = %s/%d, want %s/%d", tc.pos, tc.neg, label, score, tc.label, tc.wantScore)
		}
	}
}

func TestSentimentUsesRecentWindow(t *testing.T) {
	t.Parallel()
	clk := clock.NewFake(t0)
	d := newTestDispatcher(clk, routeFunc(echoRouter))
	for i := 0; i < 9; i++ {
		d.Deliver(chat.Twitch, "u"+strconv.Itoa(i), "super stream", t0)
	}
	if got := d.AnalyzeSentiment(); got != SentimentNeutral {
		t.Fatalf("with too few samples got %s", got)
	}
	d.Deliver(chat.Twitch, "u9", "echt toll", t0)
	if got := d.AnalyzeSentiment(); got != SentimentVeryPositive {
		t.Fatalf("got %s", got)
	}
	for i := 0; i < SentimentWindow; i++ {
		d.Deliver(chat.Twitch, "n"+strconv.Itoa(i), "langweilig", t0)
	}
	if got := d.AnalyzeSentiment(); got != SentimentVeryNegative {
		t.Fatalf("window did not roll over: %s", got)
	}
}
