package dispatch

import (
	"strings"
	"sync"
	"time"

	"zephyrbot/internal/chat"
)

// SentimentWindow is how many recent admitted messages feed the mood gauge.
const SentimentWindow = 50

// minSentimentSamples keeps a handful of messages from swinging the gauge.
const minSentimentSamples = 10

// Sentiment labels, as shown in chat.
const (
	SentimentVeryPositive = "sehr positiv"
	SentimentPositive     = "positiv"
	SentimentNeutral      = "neutral"
	SentimentNegative     = "negativ"
	SentimentVeryNegative = "sehr negativ"
)

var (
	positiveWords = []string{"gut", "toll", "super", "nice", "cool", "geil", "freude", "spaß", "lol", "haha", "danke", "thx"}
	negativeWords = []string{"schlecht", "doof", "blöd", "dumm", "traurig", "schade", "nervig", "ärgerlich", "meh", "langweilig"}
)

// CountSentiment counts positive and negative keyword hits over texts.
// Each keyword counts at most once per text.
func CountSentiment(texts []string) (pos, neg int) {
	for _, t := range texts {
		t = strings.ToLower(t)
		for _, w := range positiveWords {
			if strings.Contains(t, w) {
				pos++
			}
		}
		for _, w := range negativeWords {
			if strings.Contains(t, w) {
				neg++
			}
		}
	}
	return pos, neg
}

// ClassifySentiment maps keyword counts to a label and a score in -2..2.
func ClassifySentiment(pos, neg int) (string, int) {
	switch {
	case pos+neg == 0:
		return SentimentNeutral, 0
	case pos > neg*2:
		return SentimentVeryPositive, 2
	case pos > neg:
		return SentimentPositive, 1
	case neg > pos*2:
		return SentimentVeryNegative, -2
	case neg > pos:
		return SentimentNegative, -1
	}
	return SentimentNeutral, 0
}

// Snapshot is a read-only copy of the counters.
type Snapshot struct {
	StartedAt      time.Time                `json:"started_at"`
	Uptime         string                   `json:"uptime"`
	Total          uint64                   `json:"total"`
	ByPlatform     map[chat.Platform]uint64 `json:"by_platform"`
	Rejected       map[Reason]uint64        `json:"rejected"`
	Processed      uint64                   `json:"processed"`
	Replies        uint64                   `json:"replies"`
	Failed         uint64                   `json:"failed"`
	RateLimited    uint64                   `json:"rate_limited"`
	Evicted        uint64                   `json:"evicted"`
	Expired        uint64                   `json:"expired"`
	Broadcasts     uint64                   `json:"broadcasts"`
	Greetings      uint64                   `json:"greetings"`
	Sentiment      string                   `json:"sentiment"`
	SentimentScore int                      `json:"sentiment_score"`
	QueueSize      int                      `json:"queue_size"`
	QueueCapacity  int                      `json:"queue_capacity"`
	KnownAuthors   int                      `json:"known_authors"`
	Platforms      []chat.Platform          `json:"platforms"`
}

// Stats holds process-wide counters. Intake counts only admitted events.
type Stats struct {
	mu         sync.Mutex
	startedAt  time.Time
	total      uint64
	byPlatform map[chat.Platform]uint64
	rejected   map[Reason]uint64
	processed  uint64
	replies    uint64
	failed     uint64
	limited    uint64
	evicted    uint64
	expired    uint64
	broadcasts uint64
	greetings  uint64

	sentiment string
	score     int

	window []string
	next   int
}

func NewStats(startedAt time.Time) *Stats {
	return &Stats{
		startedAt:  startedAt,
		byPlatform: map[chat.Platform]uint64{},
		rejected:   map[Reason]uint64{},
		sentiment:  SentimentNeutral,
		window:     make([]string, 0, SentimentWindow),
	}
}

func (s *Stats) RecordAdmitted(ev chat.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	s.byPlatform[ev.Platform]++
	if ev.Platform == chat.Vision {
		return
	}
	if len(s.window) < SentimentWindow {
		s.window = append(s.window, ev.Text)
		return
	}
	s.window[s.next] = ev.Text
	s.next = (s.next + 1) % SentimentWindow
}

func (s *Stats) RecordRejected(r Reason) { s.add(func() { s.rejected[r]++ }) }
func (s *Stats) RecordProcessed()        { s.add(func() { s.processed++ }) }
func (s *Stats) RecordReply()            { s.add(func() { s.replies++ }) }
func (s *Stats) RecordFailed()           { s.add(func() { s.failed++ }) }
func (s *Stats) RecordRateLimited()      { s.add(func() { s.limited++ }) }
func (s *Stats) RecordEvicted()          { s.add(func() { s.evicted++ }) }
func (s *Stats) RecordExpired()          { s.add(func() { s.expired++ }) }
func (s *Stats) RecordBroadcast()        { s.add(func() { s.broadcasts++ }) }
func (s *Stats) RecordGreeting()         { s.add(func() { s.greetings++ }) }

func (s *Stats) add(fn func()) {
	s.mu.Lock()
	fn()
	s.mu.Unlock()
}

// RecomputeSentiment overwrites the gauge from the recent window. With too
// few samples the previous value is kept.
func (s *Stats) RecomputeSentiment() (string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.window) < minSentimentSamples {
		return s.sentiment, s.score
	}
	pos, neg := CountSentiment(s.window)
	s.sentiment, s.score = ClassifySentiment(pos, neg)
	return s.sentiment, s.score
}

func (s *Stats) Sentiment() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sentiment
}

func (s *Stats) Snapshot(now time.Time) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		StartedAt:      s.startedAt,
		Uptime:         now.Sub(s.startedAt).Truncate(time.Second).String(),
		Total:          s.total,
		ByPlatform:     make(map[chat.Platform]uint64, len(s.byPlatform)),
		Rejected:       make(map[Reason]uint64, len(s.rejected)),
		Processed:      s.processed,
		Replies:        s.replies,
		Failed:         s.failed,
		RateLimited:    s.limited,
		Evicted:        s.evicted,
		Expired:        s.expired,
		Broadcasts:     s.broadcasts,
		Greetings:      s.greetings,
		Sentiment:      s.sentiment,
		SentimentScore: s.score,
	}
	for k, v := range s.byPlatform {
		snap.ByPlatform[k] = v
	}
	for k, v := range s.rejected {
		snap.Rejected[k] = v
	}
	return snap
}
