// Package transport holds what the platform adapters share.
package transport

import (
	"errors"
	"time"
	"unicode/utf8"

	"zephyrbot/internal/chat"
)

var (
	// ErrNotConnected is returned by Send while the adapter has no live session.
	ErrNotConnected = errors.New("transport: not connected")
	// ErrReadOnly is returned by Send when the adapter lacks write credentials.
	ErrReadOnly = errors.New("transport: read-only credentials")
)

// Sink receives inbound chat. dispatch.Dispatcher implements it.
type Sink interface {
	Deliver(p chat.Platform, author, text string, ts time.Time) bool
	DeliverEvent(ev chat.Event) bool
}

// Clip shortens text to at most n runes, ending with an ellipsis when cut.
func Clip(text string, n int) string {
	if n <= 0 || utf8.RuneCountInString(text) <= n {
		return text
	}
	r := []rune(text)
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
