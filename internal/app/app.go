package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"zephyrbot/internal/chat"
	"zephyrbot/internal/commands"
	"zephyrbot/internal/config"
	"zephyrbot/internal/dispatch"
	"zephyrbot/internal/eventbus"
	"zephyrbot/internal/gamestate"
	"zephyrbot/internal/httpapi"
	"zephyrbot/internal/llm"
	"zephyrbot/internal/runtime/supervisor"
	"zephyrbot/internal/scheduler"
	"zephyrbot/internal/storage"
	"zephyrbot/internal/telemetry"
	"zephyrbot/internal/vision"
	logx "zephyrbot/pkg/logx"
	"zephyrbot/pkg/systemd"
)

// watcherAuthor is the author of vision events fed back into the dispatcher.
const watcherAuthor = "screenshot-watcher"

// supervisorJoin bounds how long Stop waits for goroutines.
const supervisorJoin = 5 * time.Second

type App struct {
	cfg     *config.Config
	set     settings
	version string

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus
	reg  *prometheus.Registry

	metrics  *telemetry.Metrics
	tracing  telemetry.ShutdownFunc
	store    storage.Store
	llm      *llm.Client
	game     *gamestate.Store
	analyzer *vision.Analyzer
	watcher  *vision.Watcher
	disp     *dispatch.Dispatcher
	router   *commands.Router
	sched    *scheduler.Scheduler
	http     *httpapi.Server

	platforms []platform

	sup    *supervisor.Supervisor
	pidOut bool
}

// New builds every component from cfg. Nothing runs until Start.
func New(cfg *config.Config, version string) (*App, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	set, err := resolve(cfg)
	if err != nil {
		return nil, err
	}

	logCfg := logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: strings.TrimSpace(cfg.Logging.File) != "",
			Path:    cfg.Logging.File,
		},
	}
	if dir := strings.TrimSpace(cfg.Logging.SplitDir); dir != "" {
		logCfg.Split = logx.SplitConfig{Dir: dir, Components: logComponents}
	}
	logSvc, root := logx.New(logCfg)
	log := root.With(logx.String("comp", "app"))

	a := &App{
		cfg:     cfg,
		set:     set,
		version: version,
		log:     log,
		logs:    logSvc,
		bus:     eventbus.New(),
		reg:     prometheus.NewRegistry(),
	}
	comp := func(name string) logx.Logger { return root.With(logx.String("comp", name)) }

	if err := a.reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := a.reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}
	if a.metrics, err = telemetry.NewMetrics(a.reg); err != nil {
		return nil, err
	}

	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, comp("storage"))
		if err != nil {
			return nil, err
		}
		a.store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
	}

	a.llm, err = llm.New(llm.Config{
		Host:          cfg.LLM.Host,
		Model:         cfg.LLM.Model,
		VisionModel:   cfg.LLM.VisionModel,
		System:        commands.SystemPrompt(cfg.Bot.Name),
		Timeout:       set.llmTimeout,
		VisionTimeout: set.visionTimeout,
		Retries:       cfg.LLM.RetryCount,
		RetryDelay:    llmRetryDelay,
	}, nil, a.metrics, comp("llm"))
	if err != nil {
		a.closeStore()
		return nil, err
	}

	a.game = gamestate.NewStore(cfg.Bot.GameStateFile, comp("gamestate"))
	a.analyzer = vision.NewAnalyzer(vision.AnalyzerConfig{
		Dir:         cfg.Vision.ScreenshotsDir,
		GameContext: a.currentGame,
		Bus:         a.bus,
	}, a.llm, vision.NewCache(cfg.Vision.CacheFile), comp("vision"))

	a.disp = dispatch.New(dispatch.Options{
		BotNames: map[chat.Platform][]string{
			chat.Twitch:  {cfg.Bot.Name, cfg.Twitch.Username},
			chat.YouTube: {cfg.Bot.Name, cfg.Bot.YouTubeName, cfg.YouTube.ChannelName},
			chat.Vision:  {cfg.Bot.Name},
		},
		MaxMessageAge:       set.maxAge,
		QueueCapacity:       cfg.Bot.QueueCapacity,
		MinResponseInterval: set.minResponse,
		SendTimeout:         10 * time.Second,
		Bus:                 a.bus,
		Log:                 comp("dispatch"),
	}, nil)

	a.router = commands.NewRouter(commands.Config{
		BotName:         cfg.Bot.Name,
		RandomReplyRate: cfg.Bot.RandomReplyRate,
		Timeout:         set.handlerTimeout,
	}, commands.Deps{
		Gen:   a.llm,
		Scene: a.analyzer,
		Game:  a.game,
		Stats: a.disp,
		Log:   comp("commands"),
	})
	a.disp.SetRouter(a.router)
	a.disp.SetGreeter(a.router)

	if err := a.buildPlatforms(comp); err != nil {
		a.closeStore()
		return nil, err
	}

	if cfg.Vision.Enabled {
		a.watcher = vision.NewWatcher(vision.WatcherConfig{
			MinInterval: set.watchEvery,
			Keep:        cfg.Vision.Keep,
		}, a.analyzer, a.onScreenshot, comp("vision"))
	}

	a.sched = scheduler.New(scheduler.Config{JobTimeout: 2 * time.Minute}, comp("scheduler"))
	if err := a.registerJobs(); err != nil {
		a.closeStore()
		return nil, err
	}

	if addr := strings.TrimSpace(cfg.HTTP.Addr); addr != "" {
		a.http = httpapi.New(httpapi.Config{
			Addr:  addr,
			Pprof: cfg.HTTP.Pprof,
			Token: cfg.HTTP.Token,
		}, httpapi.Deps{
			Stats:    a.disp,
			Health:   a.Err,
			Jobs:     func() any { return a.sched.Jobs() },
			Gatherer: a.reg,
		}, comp("http"))
	}

	return a, nil
}

// Dispatcher exposes the shared dispatcher for embedding and tests.
func (a *App) Dispatcher() *dispatch.Dispatcher { return a.disp }

// Done is closed when the app supervisor context is canceled.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	if err := a.writePID(); err != nil {
		return err
	}

	shutdown, err := telemetry.InitTracing(ctx, a.cfg.Telemetry.OTLPEndpoint, "zephyrbot", a.version, a.log.With(logx.String("comp", "tracing")))
	if err != nil {
		a.log.Warn("tracing disabled", logx.Err(err))
	} else {
		a.tracing = shutdown
	}

	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	a.warmSeen(ctx)

	a.sup.Go0("llm.ping", func(c context.Context) {
		if err := a.llm.Ping(c); err != nil {
			a.log.Warn("language model backend unreachable; replies fall back to fixed phrases",
				logx.String("host", a.cfg.LLM.Host), logx.Err(err))
			return
		}
		a.log.Info("language model backend reachable", logx.String("model", a.cfg.LLM.Model))
	})

	a.sup.Go("dispatch.worker", a.disp.Run)
	a.sup.Go("telemetry.metrics", func(c context.Context) error { return a.metrics.Run(c, a.bus) })
	if a.store != nil {
		j := storage.NewJournal(a.store, a.log.With(logx.String("comp", "storage")))
		a.sup.Go("storage.journal", func(c context.Context) error { return j.Run(c, a.bus) })
	}

	a.startPlatforms()

	if a.watcher != nil {
		a.sup.GoRestart("vision.watcher", a.watcher.Run,
			supervisor.WithRestartBackoff(time.Second, time.Minute),
			supervisor.WithStopOnCleanExit(false),
		)
	}
	if a.sched.Len() > 0 {
		a.sup.Go("scheduler", a.sched.Run)
	}
	if a.http != nil {
		// A bind failure degrades to no status server; chat keeps running.
		a.sup.GoRestart("http", a.http.Run,
			supervisor.WithRestartBackoff(time.Second, time.Minute),
			supervisor.WithStopOnCleanExit(false),
		)
	}

	if every := systemd.WatchdogInterval(); every > 0 {
		a.sup.Go("systemd.watchdog", func(c context.Context) error {
			return systemd.RunWatchdog(c, every, func() bool { return a.sup.Err() == nil }, a.log)
		})
	}
	if _, err := systemd.Ready(); err != nil {
		a.log.Debug("sd_notify ready failed", logx.Err(err))
	}

	a.log.Info("app started",
		logx.String("bot", a.cfg.Bot.Name),
		logx.Any("platforms", a.disp.Registry().Platforms()),
		logx.Int("jobs", a.sched.Len()),
		logx.Bool("vision", a.watcher != nil),
	)
	return nil
}

// warmSeen preloads dedup keys admitted within the staleness window so a
// restart does not answer redelivered messages twice.
func (a *App) warmSeen(ctx context.Context) {
	if a.store == nil {
		return
	}
	keys, err := a.store.RecentSeen(ctx, time.Now().Add(-a.set.maxAge))
	if err != nil {
		a.log.Warn("seen warmup failed", logx.Err(err))
		return
	}
	if n := a.disp.WarmSeen(keys); n > 0 {
		a.log.Info("seen keys restored", logx.Int("keys", n))
	}
}

func (a *App) currentGame() string {
	st, err := a.game.Load()
	if err != nil || !st.HasGame() {
		return ""
	}
	return st.Game
}

// onScreenshot turns a watcher analysis into a vision event.
func (a *App) onScreenshot(ctx context.Context, res vision.Result) {
	text := a.router.WatcherComment(ctx, res)
	if strings.TrimSpace(text) == "" {
		return
	}
	at := res.At
	if at.IsZero() {
		at = time.Now()
	}
	if !a.disp.DeliverEvent(chat.NewEvent(chat.Vision, watcherAuthor, text, at, res.Shot.ID())) {
		a.log.Debug("vision event not admitted", logx.String("shot", res.Shot.ID()))
	}
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		a.closeStore()
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	if _, err := systemd.Stopping(); err != nil {
		a.log.Debug("sd_notify stopping failed", logx.Err(err))
	}

	// Cancel first so every loop starts unwinding; the supervisor step
	// below only joins.
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx := ctx
		if dl, ok := ctx.Deadline(); ok && time.Until(dl) < max {
			max = time.Until(dl)
		}
		if max > 0 {
			var cancel context.CancelFunc
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	step("scheduler", 2*time.Second, a.sched.Wait)
	step("supervisor", supervisorJoin, func(c context.Context) error {
		err := a.sup.Stop(c)
		if errors.Is(err, context.DeadlineExceeded) {
			snap := a.sup.Snapshot()
			a.log.Warn("abandoning goroutines", logx.Int64("active", snap.Active), logx.Any("running", a.sup.Running()))
			return nil
		}
		return err
	})
	step("storage", time.Second, func(context.Context) error { return a.closeStore() })
	step("tracing", 2*time.Second, func(c context.Context) error {
		if a.tracing == nil {
			return nil
		}
		return a.tracing(c)
	})
	a.removePID()

	a.log.Info("stopped", logx.Any("stats", a.disp.Stats()))
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

func (a *App) closeStore() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}
