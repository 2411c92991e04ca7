package storage

import (
	"context"
	"errors"
	"time"
)

// ErrDisabled is returned by a store that was closed.
var ErrDisabled = errors.New("storage disabled")

// DefaultSeenRetention bounds how long seen keys are kept on disk.
const DefaultSeenRetention = 24 * time.Hour

type Config struct {
	Driver string
	Path   string
	// SeenRetention is how long admitted keys are kept; zero uses the default.
	SeenRetention time.Duration
	BusyTimeout   time.Duration // sqlite only
}

// ReplyRecord is one outbound reply attempt.
type ReplyRecord struct {
	At       time.Time `json:"at"`
	Platform string    `json:"platform"`
	Author   string    `json:"author,omitempty"`
	TraceID  string    `json:"trace_id,omitempty"`
	Text     string    `json:"text"`
	OK       bool      `json:"ok"`
	Error    string    `json:"error,omitempty"`
	TookMS   int64     `json:"took_ms"`
}

type Store interface {
	AppendReply(ctx context.Context, r ReplyRecord) error
	// PutSeen records that key was admitted at at.
	PutSeen(ctx context.Context, key string, at time.Time) error
	// RecentSeen lists keys admitted at or after since, oldest first.
	RecentSeen(ctx context.Context, since time.Time) ([]string, error)
	Close() error
}
