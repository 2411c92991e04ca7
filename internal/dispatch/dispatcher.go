package dispatch

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"zephyrbot/internal/chat"
	"zephyrbot/internal/clock"
	"zephyrbot/internal/eventbus"
	logx "zephyrbot/pkg/logx"
)

// VisionPrefix marks screenshot commentary in chat.
const VisionPrefix = "👁️ "

// Router turns an event into a reply. ok=false means stay silent.
type Router interface {
	Route(ctx context.Context, ev chat.Event) (reply string, ok bool)
}

// Greeter produces a welcome line for a first-time author.
type Greeter interface {
	Greet(ev chat.Event) string
}

type Options struct {
	// BotNames are the bot's own display names per platform.
	BotNames map[chat.Platform][]string

	MaxMessageAge       time.Duration
	QueueCapacity       int
	SeenCapacity        int
	MinResponseInterval time.Duration
	SendTimeout         time.Duration
	// PopWait bounds how long a worker blocks on an empty queue.
	PopWait time.Duration

	Greeter Greeter
	Clock   clock.Clock
	Bus     eventbus.Bus
	Log     logx.Logger
}

// Dispatcher owns all shared chat state: seen keys, queue, rate limits,
// senders, stats and known authors.
type Dispatcher struct {
	filter   *Filter
	queue    *Queue
	limiter  *RateLimiter
	registry *Registry
	stats    *Stats
	authors  *KnownAuthors

	router  Router
	greeter Greeter
	popWait time.Duration
	clock   clock.Clock
	bus     eventbus.Bus
	log     logx.Logger
}

func New(opts Options, router Router) *Dispatcher {
	clk := clock.Or(opts.Clock)
	bus := opts.Bus
	if bus == nil {
		bus = eventbus.Nop()
	}
	log := opts.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	interval := opts.MinResponseInterval
	if interval == 0 {
		interval = DefaultMinResponseInterval
	}
	popWait := opts.PopWait
	if popWait <= 0 {
		popWait = 500 * time.Millisecond
	}

	d := &Dispatcher{
		filter:   NewFilter(NewSeenSet(opts.SeenCapacity), opts.MaxMessageAge, clk),
		queue:    NewQueue(opts.QueueCapacity),
		limiter:  NewRateLimiter(interval, clk),
		registry: NewRegistry(log, opts.SendTimeout),
		stats:    NewStats(clk.Now()),
		authors:  NewKnownAuthors(),
		router:   router,
		greeter:  opts.Greeter,
		popWait:  popWait,
		clock:    clk,
		bus:      bus,
		log:      log,
	}
	for p, names := range opts.BotNames {
		d.filter.SetBotNames(p, names...)
	}
	return d
}

func (d *Dispatcher) Registry() *Registry       { return d.registry }
func (d *Dispatcher) Queue() *Queue             { return d.queue }
func (d *Dispatcher) Filter() *Filter           { return d.filter }
func (d *Dispatcher) RateLimiter() *RateLimiter { return d.limiter }

// SetRouter replaces the router. Call it before Run.
func (d *Dispatcher) SetRouter(r Router) { d.router = r }

// SetGreeter replaces the greeter. Call it before Run.
func (d *Dispatcher) SetGreeter(g Greeter) { d.greeter = g }

// RegisterSender attaches the outbound side of a platform.
func (d *Dispatcher) RegisterSender(p chat.Platform, s Sender) { d.registry.Register(p, s) }

// Deliver admits a message without a native id.
func (d *Dispatcher) Deliver(p chat.Platform, author, text string, ts time.Time) bool {
	return d.DeliverEvent(chat.NewEvent(p, author, text, ts, ""))
}

// DeliverEvent runs admission and enqueues the event. It never blocks on
// processing and returns false when admission rejects the event.
func (d *Dispatcher) DeliverEvent(ev chat.Event) bool {
	ok, reason := d.filter.Admit(ev)
	if !ok {
		d.stats.RecordRejected(reason)
		d.log.Trace("event rejected",
			logx.String("platform", ev.Platform.String()),
			logx.String("author", ev.Author),
			logx.String("reason", reason.String()),
		)
		d.bus.Publish(eventbus.Event{Type: eventbus.TopicRejected, Data: eventbus.Admission{
			Platform: ev.Platform.String(), Author: ev.Author, DedupKey: ev.DedupKey,
			ReceivedAt: ev.ReceivedAt, Reason: reason.String(),
		}})
		return false
	}

	d.stats.RecordAdmitted(ev)
	if d.queue.Push(ev) {
		d.stats.RecordEvicted()
		d.log.Debug("queue full, dropped oldest event", logx.Int("capacity", d.queue.Cap()))
		d.bus.Publish(eventbus.Event{Type: eventbus.TopicEvicted})
	}
	d.bus.Publish(eventbus.Event{Type: eventbus.TopicAdmitted, Data: eventbus.Admission{
		Platform: ev.Platform.String(), Author: ev.Author, DedupKey: ev.DedupKey,
		ReceivedAt: ev.ReceivedAt, QueueDepth: d.queue.Len(),
	}})
	d.log.Debug("event admitted",
		logx.String("platform", ev.Platform.String()),
		logx.String("author", ev.Author),
		logx.String("trace_id", ev.TraceID),
	)
	return true
}

// WarmSeen preloads dedup keys admitted before a restart.
func (d *Dispatcher) WarmSeen(keys []string) int { return d.filter.Warm(keys) }

// Run drains the queue until ctx is done. Several Run loops may share one
// dispatcher.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ev, ok := d.queue.Pop(ctx, d.popWait)
		if !ok {
			continue
		}
		d.Process(ctx, ev)
	}
}

// Process handles one dequeued event.
func (d *Dispatcher) Process(ctx context.Context, ev chat.Event) {
	if d.filter.IsStale(ev) {
		d.stats.RecordExpired()
		d.log.Debug("event expired in queue", logx.String("platform", ev.Platform.String()), logx.Duration("age", ev.Age(d.clock.Now())))
		return
	}
	defer d.stats.RecordProcessed()

	if ev.Platform == chat.Vision {
		text := ev.Text
		if !strings.HasPrefix(text, VisionPrefix) {
			text = VisionPrefix + text
		}
		d.Broadcast(ctx, "vision", text)
		return
	}

	ctx, span := otel.Tracer("zephyrbot/dispatch").Start(ctx, "dispatch.route",
		trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("platform", ev.Platform.String()),
		attribute.String("trace_id", ev.TraceID),
	)
	defer span.End()

	reply, ok := "", false
	if d.router != nil {
		reply, ok = d.router.Route(ctx, ev)
	}
	firstSeen := d.authors.Add(ev.Platform, ev.Author)
	greeting := false
	if (!ok || reply == "") && firstSeen && d.greeter != nil && !strings.HasSuffix(ev.AuthorKey(), "bot") {
		reply = d.greeter.Greet(ev)
		ok = reply != ""
		greeting = ok
	}
	if !ok || reply == "" {
		span.SetAttributes(attribute.Bool("replied", false))
		return
	}

	if !d.limiter.Reserve(ev.Platform) {
		d.stats.RecordRateLimited()
		span.SetAttributes(attribute.Bool("rate_limited", true))
		d.log.Debug("reply rate limited",
			logx.String("platform", ev.Platform.String()),
			logx.Duration("remaining", d.limiter.Remaining(ev.Platform)),
		)
		d.bus.Publish(eventbus.Event{Type: eventbus.TopicRateLimited, Data: eventbus.Reply{
			Platform: ev.Platform.String(), Author: ev.Author, TraceID: ev.TraceID, Text: reply,
		}})
		return
	}

	start := d.clock.Now()
	err := d.registry.SendErr(ctx, ev.Platform, reply)
	took := d.clock.Now().Sub(start)
	if err != nil {
		d.stats.RecordFailed()
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		d.bus.Publish(eventbus.Event{Type: eventbus.TopicReplyFailed, Data: eventbus.Reply{
			Platform: ev.Platform.String(), Author: ev.Author, TraceID: ev.TraceID, Text: reply, Err: err.Error(), Took: took,
		}})
		return
	}
	d.stats.RecordReply()
	if greeting {
		d.stats.RecordGreeting()
	}
	span.SetAttributes(attribute.Bool("replied", true))
	d.log.Info("reply sent",
		logx.String("platform", ev.Platform.String()),
		logx.String("author", ev.Author),
		logx.String("trace_id", ev.TraceID),
	)
	d.bus.Publish(eventbus.Event{Type: eventbus.TopicReplySent, Data: eventbus.Reply{
		Platform: ev.Platform.String(), Author: ev.Author, TraceID: ev.TraceID, Text: reply, Took: took,
	}})
}

// Broadcast sends text to every registered platform without touching the
// reply rate limiter. source names the job or pipeline for logs.
func (d *Dispatcher) Broadcast(ctx context.Context, source, text string, exclude ...chat.Platform) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	delivered := d.registry.BroadcastTo(ctx, text, exclude...)
	if len(delivered) == 0 {
		d.stats.RecordFailed()
		d.log.Warn("broadcast reached no platform", logx.String("source", source))
		return false
	}
	d.stats.RecordBroadcast()
	names := make([]string, len(delivered))
	for i, p := range delivered {
		names[i] = p.String()
	}
	d.log.Info("broadcast sent", logx.String("source", source), logx.Any("platforms", names))
	d.bus.Publish(eventbus.Event{Type: eventbus.TopicBroadcast, Data: eventbus.Broadcast{
		Source: source, Text: text, Delivered: names,
	}})
	return true
}

// AnalyzeSentiment recomputes the mood gauge from recent chat.
func (d *Dispatcher) AnalyzeSentiment() string {
	label, score := d.stats.RecomputeSentiment()
	d.bus.Publish(eventbus.Event{Type: eventbus.TopicSentiment, Data: eventbus.Sentiment{Label: label, Score: score}})
	return label
}

// Sentiment is the last computed mood label.
func (d *Dispatcher) Sentiment() string { return d.stats.Sentiment() }

func (d *Dispatcher) Stats() Snapshot {
	snap := d.stats.Snapshot(d.clock.Now())
	snap.QueueSize = d.queue.Len()
	snap.QueueCapacity = d.queue.Cap()
	snap.KnownAuthors = d.authors.Len()
	snap.Platforms = d.registry.Platforms()
	return snap
}
