// Package telemetry exports dispatcher activity as Prometheus metrics and
// sets up OpenTelemetry tracing.
package telemetry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"zephyrbot/internal/eventbus"
)

const namespace = "zephyr"

// Metrics mirrors bus events into Prometheus collectors.
type Metrics struct {
	admitted    *prometheus.CounterVec
	rejected    *prometheus.CounterVec
	evictions   prometheus.Counter
	sent        *prometheus.CounterVec
	failed      *prometheus.CounterVec
	rateLimited *prometheus.CounterVec
	broadcasts  prometheus.Counter
	queueDepth  prometheus.Gauge
	sentiment   prometheus.Gauge
	llmSeconds  *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		admitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_admitted_total",
			Help: "Chat messages admitted to the queue.",
		}, []string{"platform"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_rejected_total",
			Help: "Chat messages rejected by admission.",
		}, []string{"reason"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "queue_evictions_total",
			Help: "Queued events dropped to make room for newer ones.",
		}),
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "replies_sent_total",
			Help: "Replies delivered to a platform.",
		}, []string{"platform"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "replies_failed_total",
			Help: "Replies whose send failed.",
		}, []string{"platform"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "rate_limited_total",
			Help: "Replies suppressed by the per-platform rate limiter.",
		}, []string{"platform"}),
		broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "broadcasts_total",
			Help: "Broadcasts that reached at least one platform.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "queue_depth",
			Help: "Events waiting in the dispatch queue.",
		}),
		sentiment: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "chat_sentiment_score",
			Help: "Chat mood from -2 (very negative) to 2 (very positive).",
		}),
		llmSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "llm_request_seconds",
			Help:    "Language-model request latency.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		}, []string{"op"}),
	}
	for _, c := range []prometheus.Collector{
		m.admitted, m.rejected, m.evictions, m.sent, m.failed,
		m.rateLimited, m.broadcasts, m.queueDepth, m.sentiment, m.llmSeconds,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveLLM records one model request.
func (m *Metrics) ObserveLLM(op string, took time.Duration, _ error) {
	m.llmSeconds.WithLabelValues(op).Observe(took.Seconds())
}

// SetQueueDepth sets the queue gauge directly.
func (m *Metrics) SetQueueDepth(n int) { m.queueDepth.Set(float64(n)) }

// Handle applies one bus event.
func (m *Metrics) Handle(ev eventbus.Event) {
	switch ev.Type {
	case eventbus.TopicAdmitted:
		if a, ok := ev.Data.(eventbus.Admission); ok {
			m.admitted.WithLabelValues(a.Platform).Inc()
			m.queueDepth.Set(float64(a.QueueDepth))
		}
	case eventbus.TopicRejected:
		if a, ok := ev.Data.(eventbus.Admission); ok {
			m.rejected.WithLabelValues(a.Reason).Inc()
		}
	case eventbus.TopicEvicted:
		m.evictions.Inc()
	case eventbus.TopicReplySent:
		if r, ok := ev.Data.(eventbus.Reply); ok {
			m.sent.WithLabelValues(r.Platform).Inc()
		}
	case eventbus.TopicReplyFailed:
		if r, ok := ev.Data.(eventbus.Reply); ok {
			m.failed.WithLabelValues(r.Platform).Inc()
		}
	case eventbus.TopicRateLimited:
		if r, ok := ev.Data.(eventbus.Reply); ok {
			m.rateLimited.WithLabelValues(r.Platform).Inc()
		}
	case eventbus.TopicBroadcast:
		m.broadcasts.Inc()
	case eventbus.TopicSentiment:
		if s, ok := ev.Data.(eventbus.Sentiment); ok {
			m.sentiment.Set(float64(s.Score))
		}
	}
}

// Run consumes bus events until ctx ends.
func (m *Metrics) Run(ctx context.Context, bus eventbus.Bus) error {
	ch, unsub := bus.Subscribe(512)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			m.Handle(ev)
		}
	}
}
