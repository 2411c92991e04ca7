package chat

import (
	"testing"
	"time"
)

func TestNewEventTrimsAndUsesNativeID(t *testing.T) {
	t.Parallel()
	ev := NewEvent(YouTube, " Bob ", "  hallo  ", time.Unix(100, 0), "msg123")
	if ev.Text != "hallo" || ev.Author != "Bob" {
		t.Fatalf("unexpected trim: author=%q text=%q", ev.Author, ev.Text)
	}
	if ev.DedupKey != "youtube:msg123" {
		t.Fatalf("DedupKey = %q", ev.DedupKey)
	}
	if ev.TraceID == "" {
		t.Fatal("TraceID should be set")
	}
}

func TestCompositeKeyBuckets(t *testing.T) {
	t.Parallel()
	base := time.Unix(1000, 0)
	k1 := DedupKey(Twitch, "Alice", "!witz", base, "")
	k2 := DedupKey(Twitch, "alice", "!witz", base.Add(time.Second), "")
	k3 := DedupKey(Twitch, "alice", "!witz", base.Add(DedupBucket), "")
	k4 := DedupKey(Twitch, "alice", "!info", base, "")

	if k1 != k2 {
		t.Fatalf("same author/text in one bucket should collide: %s vs %s", k1, k2)
	}
	if k1 == k3 {
		t.Fatal("next bucket should produce a new key")
	}
	if k1 == k4 {
		t.Fatal("different text should produce a new key")
	}
}

func TestDedupBucketIsFiveSeconds(t *testing.T) {
	t.Parallel()
	if DedupBucket != 5*time.Second {
		t.Fatalf("DedupBucket = %v", DedupBucket)
	}
	base := time.Unix(1000, 0)
	if DedupKey(Twitch, "a", "x", base.Add(4*time.Second), "") != DedupKey(Twitch, "a", "x", base, "") {
		t.Fatal("4s later should share the bucket")
	}
	if DedupKey(Twitch, "a", "x", base.Add(5*time.Second), "") == DedupKey(Twitch, "a", "x", base, "") {
		t.Fatal("5s later should start a new bucket")
	}
}

func TestParsePlatform(t *testing.T) {
	t.Parallel()
	p, err := ParsePlatform(" YouTube ")
	if err != nil || p != YouTube {
		t.Fatalf("ParsePlatform = %v, %v", p, err)
	}
	if _, err := ParsePlatform("telegram"); err == nil {
		t.Fatal("expected error for unknown platform")
	}
}
