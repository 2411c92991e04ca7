// Package scheduler runs the bot's periodic jobs from one loop.
//
// Jobs are evaluated on Tick, which takes the current time explicitly, so
// tests drive the schedule with a fake clock and never sleep for intervals.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"zephyrbot/internal/clock"
	logx "zephyrbot/pkg/logx"
)

// Job is one scheduled action.
type Job func(ctx context.Context) error

// DefaultResolution is how often Run evaluates schedules.
const DefaultResolution = time.Second

type Config struct {
	Resolution time.Duration
	// JobTimeout bounds a single run; zero means no bound.
	JobTimeout time.Duration
	Clock      clock.Clock
}

type entry struct {
	name string
	spec ParsedSpec
	fn   Job

	next    time.Time
	running atomic.Bool

	runs    atomic.Uint64
	skipped atomic.Uint64
	failed  atomic.Uint64
	lastRun atomic.Int64
	lastErr atomic.Value // string
}

// Info describes one registered job.
type Info struct {
	Name    string    `json:"name"`
	Kind    string    `json:"kind"`
	Every   string    `json:"every,omitempty"`
	Cron    string    `json:"cron,omitempty"`
	Next    time.Time `json:"next"`
	LastRun time.Time `json:"last_run,omitempty"`
	Runs    uint64    `json:"runs"`
	Skipped uint64    `json:"skipped"`
	Failed  uint64    `json:"failed"`
	LastErr string    `json:"last_err,omitempty"`
	Running bool      `json:"running"`
}

type Scheduler struct {
	cfg Config
	clk clock.Clock
	log logx.Logger

	mu      sync.Mutex
	entries []*entry
	byName  map[string]*entry

	wg sync.WaitGroup
}

func New(cfg Config, log logx.Logger) *Scheduler {
	if cfg.Resolution <= 0 {
		cfg.Resolution = DefaultResolution
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Scheduler{
		cfg:    cfg,
		clk:    clock.Or(cfg.Clock),
		log:    log,
		byName: map[string]*entry{},
	}
}

// Add registers fn under name. A disabled spec ("0") is accepted and
// reported as added=false.
func (s *Scheduler) Add(name, spec string, fn Job) (added bool, err error) {
	if name == "" {
		return false, errors.New("job name required")
	}
	if fn == nil {
		return false, fmt.Errorf("job %s: nil func", name)
	}
	p, err := ParseSchedule(spec)
	if err != nil {
		return false, fmt.Errorf("job %s: %w", name, err)
	}
	if p.Kind == SpecDisabled {
		s.log.Info("job disabled", logx.String("job", name))
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.byName[name]; dup {
		return false, fmt.Errorf("job %s already registered", name)
	}
	e := &entry{name: name, spec: p, fn: fn}
	s.entries = append(s.entries, e)
	s.byName[name] = e
	s.log.Debug("job added", logx.String("job", name), logx.String("spec", spec), logx.String("kind", p.Kind.String()))
	return true, nil
}

// Len reports how many jobs are registered.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Tick starts every job due at now and returns how many were started.
// The first Tick only arms the schedules, so an interval job first runs
// one full interval after the scheduler starts.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) int {
	s.mu.Lock()
	var due []*entry
	for _, e := range s.entries {
		if e.next.IsZero() {
			e.next = e.spec.Schedule.Next(now)
			continue
		}
		if now.Before(e.next) {
			continue
		}
		e.next = e.spec.Schedule.Next(now)
		due = append(due, e)
	}
	s.mu.Unlock()

	started := 0
	for _, e := range due {
		if !e.running.CompareAndSwap(false, true) {
			e.skipped.Add(1)
			s.log.Warn("job still running, skipping", logx.String("job", e.name))
			continue
		}
		started++
		s.launch(ctx, e, now)
	}
	return started
}

func (s *Scheduler) launch(ctx context.Context, e *entry, now time.Time) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer e.running.Store(false)

		runCtx := ctx
		if s.cfg.JobTimeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, s.cfg.JobTimeout)
			defer cancel()
		}

		start := time.Now()
		err := func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("job panicked", logx.String("job", e.name), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
					err = fmt.Errorf("panic: %v", r)
				}
			}()
			return e.fn(runCtx)
		}()

		e.runs.Add(1)
		e.lastRun.Store(now.UnixNano())
		if err != nil && !errors.Is(err, context.Canceled) {
			e.failed.Add(1)
			e.lastErr.Store(err.Error())
			s.log.Warn("job failed", logx.String("job", e.name), logx.Duration("took", time.Since(start)), logx.Err(err))
			return
		}
		e.lastErr.Store("")
		s.log.Debug("job done", logx.String("job", e.name), logx.Duration("took", time.Since(start)))
	}()
}

// Run ticks at the configured resolution until ctx ends, then waits for
// running jobs to return.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("scheduler started", logx.Int("jobs", s.Len()), logx.Duration("resolution", s.cfg.Resolution))
	s.Tick(ctx, s.clk.Now())

	t := time.NewTicker(s.cfg.Resolution)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			s.log.Info("scheduler stopped")
			return ctx.Err()
		case <-t.C:
			s.Tick(ctx, s.clk.Now())
		}
	}
}

// Wait blocks until no job started by Tick is running, or ctx ends.
func (s *Scheduler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Jobs lists registered jobs ordered by next run.
func (s *Scheduler) Jobs() []Info {
	s.mu.Lock()
	out := make([]Info, 0, len(s.entries))
	for _, e := range s.entries {
		in := Info{
			Name:    e.name,
			Kind:    e.spec.Kind.String(),
			Cron:    e.spec.Cron,
			Next:    e.next,
			Runs:    e.runs.Load(),
			Skipped: e.skipped.Load(),
			Failed:  e.failed.Load(),
			Running: e.running.Load(),
		}
		if e.spec.Every > 0 {
			in.Every = e.spec.Every.String()
		}
		if ns := e.lastRun.Load(); ns != 0 {
			in.LastRun = time.Unix(0, ns)
		}
		if v, ok := e.lastErr.Load().(string); ok {
			in.LastErr = v
		}
		out = append(out, in)
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Next.Before(out[j].Next) })
	return out
}
