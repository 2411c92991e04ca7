package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	logx "zephyrbot/pkg/logx"
)

func TestParseScheduleVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		raw    string
		kind   SpecKind
		source string
		every  time.Duration
	}{
		{name: "bare seconds", raw: "180", kind: SpecInterval, source: "seconds", every: 180 * time.Second},
		{name: "zero disables", raw: "0", kind: SpecDisabled, source: "seconds"},
		{name: "zero duration disables", raw: "0s", kind: SpecDisabled, source: "duration"},
		{name: "duration", raw: "3m", kind: SpecInterval, source: "duration", every: 3 * time.Minute},
		{name: "prefixed interval", raw: "every:45s", kind: SpecInterval, source: "duration", every: 45 * time.Second},
		{name: "hhmm", raw: "01:30", kind: SpecInterval, source: "hhmm", every: 90 * time.Minute},
		{name: "cron", raw: "*/5 * * * *", kind: SpecCron, source: "cron"},
		{name: "descriptor", raw: "@hourly", kind: SpecCron, source: "cron"},
		{name: "prefixed cron", raw: "cron:0 0 * * *", kind: SpecCron, source: "cron"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSchedule(tt.raw)
			if err != nil {
				t.Fatalf("ParseSchedule(%q) error: %v", tt.raw, err)
			}
			if got.Kind != tt.kind || got.Source != tt.source {
				t.Fatalf("got kind=%v source=%s, want %v %s", got.Kind, got.Source, tt.kind, tt.source)
			}
			if got.Every != tt.every {
				t.Fatalf("Every = %v, want %v", got.Every, tt.every)
			}
			if tt.kind != SpecDisabled && got.Schedule == nil {
				t.Fatal("Schedule should be set")
			}
		})
	}
}

func TestParseScheduleInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "not-a-schedule", "-5s", "00:75", "500ms", "cron:", "cron:61 * * * *"} {
		if _, err := ParseSchedule(raw); err == nil {
			t.Errorf("ParseSchedule(%q) should fail", raw)
		}
	}
}

func TestFirstRunIsOneIntervalAfterStart(t *testing.T) {
	t.Parallel()
	s := New(Config{}, logx.Nop())
	var runs atomic.Int32
	if ok, err := s.Add("auto-joke", "180", func(context.Context) error { runs.Add(1); return nil }); !ok || err != nil {
		t.Fatalf("Add = %v, %v", ok, err)
	}

	ctx := context.Background()
	start := time.Unix(1_700_000_000, 0)
	if n := s.Tick(ctx, start); n != 0 {
		t.Fatalf("first tick started %d jobs", n)
	}
	if n := s.Tick(ctx, start.Add(179*time.Second)); n != 0 {
		t.Fatalf("tick before interval started %d jobs", n)
	}
	if n := s.Tick(ctx, start.Add(180*time.Second)); n != 1 {
		t.Fatalf("tick at interval started %d jobs", n)
	}
	_ = s.Wait(ctx)
	if n := s.Tick(ctx, start.Add(200*time.Second)); n != 0 {
		t.Fatalf("job re-ran early: %d", n)
	}
	if n := s.Tick(ctx, start.Add(360*time.Second)); n != 1 {
		t.Fatalf("second run not started: %d", n)
	}
	_ = s.Wait(ctx)
	if runs.Load() != 2 {
		t.Fatalf("runs = %d, want 2", runs.Load())
	}
}

func TestOverlappingRunIsSkipped(t *testing.T) {
	t.Parallel()
	s := New(Config{}, logx.Nop())
	release := make(chan struct{})
	var runs atomic.Int32
	_, _ = s.Add("slow", "10s", func(context.Context) error {
		runs.Add(1)
		<-release
		return nil
	})

	ctx := context.Background()
	start := time.Unix(1_700_000_000, 0)
	s.Tick(ctx, start)
	if n := s.Tick(ctx, start.Add(10*time.Second)); n != 1 {
		t.Fatalf("expected first run, got %d", n)
	}
	if n := s.Tick(ctx, start.Add(20*time.Second)); n != 0 {
		t.Fatalf("overlapping run started")
	}
	close(release)
	_ = s.Wait(ctx)

	jobs := s.Jobs()
	if len(jobs) != 1 || jobs[0].Skipped != 1 || jobs[0].Runs != 1 {
		t.Fatalf("jobs = %+v", jobs)
	}
}

func TestDisabledAndDuplicateJobs(t *testing.T) {
	t.Parallel()
	s := New(Config{}, logx.Nop())
	noop := func(context.Context) error { return nil }
	if ok, err := s.Add("off", "0", noop); ok || err != nil {
		t.Fatalf("disabled Add = %v, %v", ok, err)
	}
	if _, err := s.Add("a", "5s", noop); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Add("a", "5s", noop); err == nil {
		t.Fatal("duplicate name should fail")
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d", s.Len())
	}
}

func TestFailingAndPanickingJobsAreRecorded(t *testing.T) {
	t.Parallel()
	s := New(Config{}, logx.Nop())
	_, _ = s.Add("fails", "5s", func(context.Context) error { return errors.New("boom") })
	_, _ = s.Add("panics", "5s", func(context.Context) error { panic("oops") })

	ctx := context.Background()
	start := time.Unix(1_700_000_000, 0)
	s.Tick(ctx, start)
	if n := s.Tick(ctx, start.Add(5*time.Second)); n != 2 {
		t.Fatalf("started %d", n)
	}
	_ = s.Wait(ctx)
	for _, j := range s.Jobs() {
		if j.Failed != 1 || j.LastErr == "" {
			t.Fatalf("job %s not recorded as failed: %+v", j.Name, j)
		}
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()
	s := New(Config{Resolution: 10 * time.Millisecond}, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}
