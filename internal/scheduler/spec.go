package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type SpecKind int

const (
	SpecDisabled SpecKind = iota
	SpecCron
	SpecInterval
)

func (k SpecKind) String() string {
	switch k {
	case SpecCron:
		return "cron"
	case SpecInterval:
		return "interval"
	default:
		return "disabled"
	}
}

// ParsedSpec is a schedule string resolved to a cron.Schedule.
//
// Accepted forms:
//   - bare seconds: "180" ("0" disables the job)
//   - Go duration: "3m", "2h30m" ("0s" disables)
//   - HH:MM interval: "00:50" is fifty minutes
//   - cron: "*/5 * * * *", "@hourly", "@every 55m"
//
// "cron:" and "every:" prefixes force one interpretation.
type ParsedSpec struct {
	Kind     SpecKind
	Every    time.Duration
	Cron     string
	Source   string // "seconds" | "duration" | "hhmm" | "cron"
	Schedule cron.Schedule
}

var (
	reHHMM    = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)
	reSeconds = regexp.MustCompile(`^\d+$`)
)

// ParseSchedule parses raw into a schedule.
func ParseSchedule(raw string) (ParsedSpec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ParsedSpec{}, fmt.Errorf("schedule required")
	}
	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		return parseCron(strings.TrimSpace(s[len("cron:"):]))
	case strings.HasPrefix(low, "every:"):
		return parseInterval(strings.TrimSpace(s[len("every:"):]))
	case strings.ContainsAny(s, " \t") || strings.HasPrefix(s, "@"):
		return parseCron(s)
	}
	return parseInterval(s)
}

// MustParse is ParseSchedule for literals.
func MustParse(raw string) ParsedSpec {
	p, err := ParseSchedule(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// IntervalSpec renders d as a schedule string; zero or negative disables.
func IntervalSpec(d time.Duration) string {
	if d <= 0 {
		return "0"
	}
	return d.String()
}

func parseCron(expr string) (ParsedSpec, error) {
	if expr == "" {
		return ParsedSpec{}, fmt.Errorf("cron expression required")
	}
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return ParsedSpec{}, fmt.Errorf("invalid cron %q: %w", expr, err)
	}
	return ParsedSpec{Kind: SpecCron, Cron: expr, Source: "cron", Schedule: sched}, nil
}

func parseInterval(v string) (ParsedSpec, error) {
	if v == "" {
		return ParsedSpec{}, fmt.Errorf("interval required")
	}
	var (
		d   time.Duration
		src string
	)
	switch {
	case reSeconds.MatchString(v):
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return ParsedSpec{}, fmt.Errorf("invalid seconds %q: %w", v, err)
		}
		d, src = time.Duration(n)*time.Second, "seconds"
	case reHHMM.MatchString(v):
		m := reHHMM.FindStringSubmatch(v)
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if mm > 59 {
			return ParsedSpec{}, fmt.Errorf("invalid minutes in %q", v)
		}
		d, src = time.Duration(hh)*time.Hour+time.Duration(mm)*time.Minute, "hhmm"
	default:
		var err error
		d, err = time.ParseDuration(v)
		if err != nil {
			return ParsedSpec{}, fmt.Errorf(
				"invalid schedule %q (use seconds like '180', a duration like '3m', HH:MM like '02:30' or cron like '*/5 * * * *')", v)
		}
		src = "duration"
	}
	if d < 0 {
		return ParsedSpec{}, fmt.Errorf("interval must not be negative")
	}
	if d == 0 {
		return ParsedSpec{Kind: SpecDisabled, Source: src}, nil
	}
	if d < time.Second {
		return ParsedSpec{}, fmt.Errorf("interval %s is below one second", d)
	}
	return ParsedSpec{Kind: SpecInterval, Every: d, Source: src, Schedule: cron.Every(d)}, nil
}
