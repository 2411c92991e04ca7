package chat

import (
	"hash/fnv"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DedupBucket is the time window folded into composite dedup keys for
// platforms without native message ids. The same author repeating the same
// text inside one bucket is treated as a redelivery.
const DedupBucket = 5 * time.Second

// Event is one inbound chat message. It is never mutated after NewEvent.
type Event struct {
	Platform   Platform  `json:"platform"`
	Author     string    `json:"author"`
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
	DedupKey   string    `json:"dedup_key"`

	// NativeID is the upstream message id, when the platform has one.
	NativeID string `json:"native_id,omitempty"`
	// TraceID correlates log lines and spans for this event.
	TraceID string `json:"trace_id"`
}

// NewEvent builds an Event, trimming text and deriving the dedup key.
// A non-empty nativeID becomes the key; otherwise a composite of
// platform, folded author, text and time bucket is used.
func NewEvent(p Platform, author, text string, receivedAt time.Time, nativeID string) Event {
	text = strings.TrimSpace(text)
	author = strings.TrimSpace(author)
	nativeID = strings.TrimSpace(nativeID)
	return Event{
		Platform:   p,
		Author:     author,
		Text:       text,
		ReceivedAt: receivedAt,
		DedupKey:   DedupKey(p, author, text, receivedAt, nativeID),
		NativeID:   nativeID,
		TraceID:    uuid.NewString(),
	}
}

// AuthorKey is the case-folded author used for comparisons.
func (e Event) AuthorKey() string { return strings.ToLower(e.Author) }

// Age reports how old the event is at now.
func (e Event) Age(now time.Time) time.Duration { return now.Sub(e.ReceivedAt) }

func DedupKey(p Platform, author, text string, at time.Time, nativeID string) string {
	if nativeID != "" {
		return string(p) + ":" + nativeID
	}
	bucket := at.Unix() / int64(DedupBucket/time.Second)

	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.ToLower(author)))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(text))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(strconv.FormatInt(bucket, 10)))
	return string(p) + "#" + strconv.FormatUint(h.Sum64(), 16)
}
