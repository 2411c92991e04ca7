package eventbus

import "time"

// Topics published by the dispatcher and the vision pipeline.
const (
	TopicAdmitted    = "chat.admitted"
	TopicRejected    = "chat.rejected"
	TopicEvicted     = "chat.evicted"
	TopicReplySent   = "reply.sent"
	TopicReplyFailed = "reply.failed"
	TopicRateLimited = "reply.rate_limited"
	TopicBroadcast   = "broadcast.sent"
	TopicSentiment   = "stats.sentiment"
	TopicVision      = "vision.updated"
)

// Admission is the payload of TopicAdmitted and TopicRejected.
type Admission struct {
	Platform   string
	Author     string
	DedupKey   string
	ReceivedAt time.Time
	Reason     string
	QueueDepth int
}

// Reply is the payload of TopicReplySent, TopicReplyFailed and TopicRateLimited.
type Reply struct {
	Platform string
	Author   string
	TraceID  string
	Text     string
	Err      string
	Took     time.Duration
}

// Broadcast is the payload of TopicBroadcast.
type Broadcast struct {
	Source    string
	Text      string
	Delivered []string
}

// Sentiment is the payload of TopicSentiment.
type Sentiment struct {
	Label string
	Score int
}

// VisionUpdate is the payload of TopicVision.
type VisionUpdate struct {
	Path     string
	Category string
	Chars    int
}
