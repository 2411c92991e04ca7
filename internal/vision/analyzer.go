package vision

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"zephyrbot/internal/clock"
	"zephyrbot/internal/eventbus"
	logx "zephyrbot/pkg/logx"
)

const describePrompt = "Beschreibe möglichst genau, was auf dem Bild zu sehen ist."

// memoSize bounds how many analyzed shot ids are remembered.
const memoSize = 100

// Describer turns an image into a free-text description.
type Describer interface {
	Describe(ctx context.Context, image []byte, prompt string) (string, error)
}

// Result is one scene analysis.
type Result struct {
	Shot        Shot
	Description string
	Category    Category
	At          time.Time
	// FromCache is set when the describer failed and the cached text was used.
	FromCache bool
}

type AnalyzerConfig struct {
	Dir string
	// GameContext, when set, returns the current game for the prompt.
	GameContext func() string
	Clock       clock.Clock
	Bus         eventbus.Bus
}

// Analyzer describes the newest screenshot and keeps the last result.
type Analyzer struct {
	dir     string
	game    func() string
	desc    Describer
	cache   *Cache
	clock   clock.Clock
	bus     eventbus.Bus
	log     logx.Logger
	running sync.Mutex

	mu      sync.Mutex
	current Result
	has     bool
	memo    map[string]struct{}
	order   []string
}

func NewAnalyzer(cfg AnalyzerConfig, d Describer, cache *Cache, log logx.Logger) *Analyzer {
	bus := cfg.Bus
	if bus == nil {
		bus = eventbus.Nop()
	}
	return &Analyzer{
		dir:   cfg.Dir,
		game:  cfg.GameContext,
		desc:  d,
		cache: cache,
		clock: clock.Or(cfg.Clock),
		bus:   bus,
		log:   log,
		memo:  map[string]struct{}{},
	}
}

func (a *Analyzer) Dir() string { return a.dir }

// Current returns the last successful analysis.
func (a *Analyzer) Current() (Result, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current, a.has
}

// Seen reports whether the shot was analyzed already.
func (a *Analyzer) Seen(s Shot) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.memo[s.ID()]
	return ok
}

// Scene returns the current result when it is younger than maxAge and
// analyzes the newest screenshot otherwise.
func (a *Analyzer) Scene(ctx context.Context, maxAge time.Duration) (Result, error) {
	if cur, ok := a.Current(); ok && maxAge > 0 && a.clock.Now().Sub(cur.At) < maxAge {
		return cur, nil
	}
	return a.Analyze(ctx, false)
}

// Analyze describes the newest screenshot. Unless force is set, a shot that
// was analyzed before returns the current result without a new request.
func (a *Analyzer) Analyze(ctx context.Context, force bool) (Result, error) {
	a.running.Lock()
	defer a.running.Unlock()

	shot, err := Latest(a.dir)
	if err != nil {
		return Result{}, err
	}
	if !force && a.Seen(shot) {
		if cur, ok := a.Current(); ok && cur.Shot.ID() == shot.ID() {
			return cur, nil
		}
	}

	res, err := a.describe(ctx, shot)
	if err != nil {
		return Result{}, err
	}

	a.mu.Lock()
	a.current, a.has = res, true
	a.rememberLocked(shot.ID())
	a.mu.Unlock()

	a.bus.Publish(eventbus.Event{Type: eventbus.TopicVision, Data: eventbus.VisionUpdate{
		Path: shot.Path, Category: string(res.Category), Chars: len(res.Description),
	}})
	return res, nil
}

func (a *Analyzer) describe(ctx context.Context, shot Shot) (Result, error) {
	img, err := os.ReadFile(shot.Path)
	if err != nil {
		return Result{}, fmt.Errorf("read screenshot: %w", err)
	}

	game := ""
	if a.game != nil {
		game = a.game()
	}
	res := Result{Shot: shot, At: a.clock.Now()}

	text, err := a.desc.Describe(ctx, img, DescribePrompt(game))
	text = strings.TrimSpace(text)
	if err == nil && text != "" {
		res.Description = text
		res.Category = Classify(text)
		if werr := a.cache.Write(text); werr != nil {
			a.log.Warn("vision cache write failed", logx.String("path", a.cache.Path()), logx.Err(werr))
		}
		a.log.Info("screenshot analyzed",
			logx.String("path", shot.Path),
			logx.String("category", string(res.Category)),
			logx.Int("chars", len(text)),
		)
		return res, nil
	}
	if err == nil {
		err = errors.New("empty description")
	}
	a.log.Warn("screenshot description failed", logx.String("path", shot.Path), logx.Err(err))

	cached, cerr := a.cache.Read()
	if cerr != nil || cached == "" {
		return Result{}, fmt.Errorf("describe %s: %w", shot.Path, err)
	}
	res.Description = cached
	res.Category = Classify(cached)
	res.FromCache = true
	return res, nil
}

func (a *Analyzer) rememberLocked(id string) {
	if _, ok := a.memo[id]; ok {
		return
	}
	a.memo[id] = struct{}{}
	a.order = append(a.order, id)
	if len(a.order) > memoSize {
		delete(a.memo, a.order[0])
		a.order = a.order[1:]
	}
}

// DescribePrompt is the vision request, with the current game as context.
func DescribePrompt(game string) string {
	game = strings.TrimSpace(game)
	if game == "" || game == "Unbekannt" {
		return describePrompt
	}
	return describePrompt + ` Kontext: Es wird gerade "` + game + `" gespielt.`
}
