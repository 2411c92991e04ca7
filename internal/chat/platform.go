package chat

import (
	"fmt"
	"strings"
)

// Platform names a chat source. Vision is synthetic: screenshot commentary
// enters the pipeline as if it were chat.
type Platform string

const (
	Twitch  Platform = "twitch"
	YouTube Platform = "youtube"
	Vision  Platform = "vision"
)

// Platforms lists every known platform in display order.
var Platforms = []Platform{Twitch, YouTube, Vision}

func (p Platform) Valid() bool {
	switch p {
	case Twitch, YouTube, Vision:
		return true
	}
	return false
}

func (p Platform) String() string { return string(p) }

// Title is the display form used in chat replies ("Twitch", "YouTube").
func (p Platform) Title() string {
	switch p {
	case Twitch:
		return "Twitch"
	case YouTube:
		return "YouTube"
	case Vision:
		return "Vision"
	}
	return string(p)
}

// ParsePlatform is case-insensitive.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown platform %q", s)
	}
	return p, nil
}
