// Package commands turns chat messages into replies: a fixed command table,
// free-form answers, greetings and the content for scheduled broadcasts.
// Every path ends in text; model failures fall back to fixed phrases.
package commands

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"zephyrbot/internal/chat"
	"zephyrbot/internal/dispatch"
	"zephyrbot/internal/gamestate"
	"zephyrbot/internal/vision"
	logx "zephyrbot/pkg/logx"
)

// Generator is the text model.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Scene yields the current screenshot analysis.
type Scene interface {
	Scene(ctx context.Context, maxAge time.Duration) (vision.Result, error)
}

// GameState is the persisted stream status.
type GameState interface {
	Load() (gamestate.State, error)
	Update(fn func(*gamestate.State)) (before, after gamestate.State, err error)
}

// StatsSource exposes dispatcher counters.
type StatsSource interface {
	Stats() dispatch.Snapshot
}

type Config struct {
	BotName string
	// RandomReplyRate is the chance of answering free-form chat that neither
	// names the bot nor asks a question.
	RandomReplyRate float64
	MaxReplyLen     int
	// SceneMaxAge is how long a scene analysis is reused by !bild.
	SceneMaxAge time.Duration
	// Timeout bounds one model request made by a handler, client retries included.
	Timeout time.Duration
}

type Deps struct {
	Gen   Generator
	Scene Scene
	Game  GameState
	Stats StatsSource
	// Rand drives phrase choice and random replies. Nil seeds a new source.
	Rand *rand.Rand
	Log  logx.Logger
}

type Router struct {
	cfg  Config
	deps Deps
	log  logx.Logger

	randMu sync.Mutex
	rnd    *rand.Rand

	reminderMu sync.Mutex
	reminder   int
}

func NewRouter(cfg Config, deps Deps) *Router {
	if cfg.BotName == "" {
		cfg.BotName = "zephyr"
	}
	if cfg.MaxReplyLen <= 0 {
		cfg.MaxReplyLen = 450
	}
	if cfg.SceneMaxAge <= 0 {
		cfg.SceneMaxAge = 2 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	rnd := deps.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	log := deps.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{cfg: cfg, deps: deps, log: log, rnd: rnd}
}

func (r *Router) BotName() string { return r.cfg.BotName }

// Route answers an event. Command-shaped text always gets a reply; free-form
// text only when it names the bot, asks a question or wins the random draw.
func (r *Router) Route(ctx context.Context, ev chat.Event) (string, bool) {
	if cmd, ok := Parse(ev.Text); ok {
		reply := r.runCommand(ctx, ev, cmd)
		r.log.Debug("command handled",
			logx.String("command", cmd.Kind.String()),
			logx.String("platform", ev.Platform.String()),
			logx.String("author", ev.Author),
		)
		return reply, reply != ""
	}
	return r.freeForm(ctx, ev)
}

// Greet welcomes a first-time viewer.
func (r *Router) Greet(ev chat.Event) string {
	return fill(r.pick(Greetings), ev.Author, r.cfg.BotName)
}

// ShouldAnswer is the free-form trigger.
func (r *Router) ShouldAnswer(text string) bool {
	lower := strings.ToLower(text)
	if strings.Contains(lower, strings.ToLower(r.cfg.BotName)) || strings.Contains(text, "?") {
		return true
	}
	return r.chance() < r.cfg.RandomReplyRate
}

func (r *Router) freeForm(ctx context.Context, ev chat.Event) (string, bool) {
	if !r.ShouldAnswer(ev.Text) {
		return "", false
	}
	if answer, ok := r.generate(ctx, "question", questionPrompt(r.cfg.BotName, ev.Author, ev.Text)); ok {
		return r.clip("@" + ev.Author + " " + answer), true
	}
	return fill(r.pick(MentionReplies), ev.Author, r.cfg.BotName), true
}

// generate runs one bounded model request. ok is false on any failure or
// an empty answer.
func (r *Router) generate(ctx context.Context, op, prompt string) (string, bool) {
	if r.deps.Gen == nil {
		return "", false
	}
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	text, err := r.deps.Gen.Generate(ctx, prompt)
	if err != nil {
		r.log.Warn("model request failed, using fallback", logx.String("op", op), logx.Err(err))
		return "", false
	}
	text = strings.TrimSpace(text)
	if text == "" {
		r.log.Warn("model returned empty text, using fallback", logx.String("op", op))
		return "", false
	}
	return text, true
}

func (r *Router) pick(list []string) string {
	if len(list) == 0 {
		return ""
	}
	r.randMu.Lock()
	defer r.randMu.Unlock()
	return list[r.rnd.IntN(len(list))]
}

func (r *Router) chance() float64 {
	r.randMu.Lock()
	defer r.randMu.Unlock()
	return r.rnd.Float64()
}

// clip shortens s to the platform message limit, on a rune boundary.
func (r *Router) clip(s string) string {
	if utf8.RuneCountInString(s) <= r.cfg.MaxReplyLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:r.cfg.MaxReplyLen])
}

func fill(tmpl, user, bot string) string {
	return strings.NewReplacer("{user}", user, "{bot}", bot).Replace(tmpl)
}
