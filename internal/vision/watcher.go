package vision

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "zephyrbot/pkg/logx"
)

// Handler receives each fresh analysis produced by the watcher.
type Handler func(ctx context.Context, res Result)

type WatcherConfig struct {
	// Debounce coalesces the burst of events a single screenshot write produces.
	Debounce time.Duration
	// MinInterval is the minimum gap between two analyses.
	MinInterval time.Duration
	// Keep is how many screenshots to retain after each analysis; 0 keeps all.
	Keep int
}

// Watcher analyzes new screenshots as they land in the analyzer's directory.
type Watcher struct {
	cfg     WatcherConfig
	an      *Analyzer
	handler Handler
	log     logx.Logger
}

func NewWatcher(cfg WatcherConfig, an *Analyzer, h Handler, log logx.Logger) *Watcher {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 250 * time.Millisecond
	}
	return &Watcher{cfg: cfg, an: an, handler: h, log: log}
}

// Run watches until ctx is done. It returns an error if the directory cannot
// be watched or the watcher fails, so a supervisor can restart it.
func (w *Watcher) Run(ctx context.Context) error {
	dir := w.an.Dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Add(dir); err != nil {
		return err
	}
	w.log.Info("watching screenshots", logx.String("dir", dir), logx.Duration("min_interval", w.cfg.MinInterval))

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	pending := false
	var last time.Time

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()

		case ev, ok := <-fw.Events:
			if !ok {
				return errors.New("fsnotify events channel closed")
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !IsImage(ev.Name) {
				continue
			}
			w.log.Trace("screenshot event", logx.String("path", ev.Name), logx.String("op", ev.Op.String()))
			wait := w.cfg.Debounce
			if w.cfg.MinInterval > 0 && !last.IsZero() {
				if rest := w.cfg.MinInterval - time.Since(last); rest > wait {
					wait = rest
				}
			}
			if pending {
				timer.Stop()
			}
			timer.Reset(wait)
			pending = true

		case err, ok := <-fw.Errors:
			if !ok {
				return errors.New("fsnotify errors channel closed")
			}
			w.log.Warn("screenshot watcher error", logx.Err(err))

		case <-timer.C:
			pending = false
			last = time.Now()
			w.process(ctx)
		}
	}
}

func (w *Watcher) process(ctx context.Context) {
	shot, err := Latest(w.an.Dir())
	if err != nil {
		if !errors.Is(err, ErrNoScreenshot) {
			w.log.Warn("list screenshots failed", logx.Err(err))
		}
		return
	}
	if w.an.Seen(shot) {
		return
	}
	res, err := w.an.Analyze(ctx, false)
	if err != nil {
		w.log.Warn("screenshot analysis failed", logx.String("path", shot.Path), logx.Err(err))
		return
	}
	if w.handler != nil {
		w.handler(ctx, res)
	}
	if n, err := Prune(w.an.Dir(), w.cfg.Keep); err != nil {
		w.log.Warn("screenshot cleanup failed", logx.Err(err))
	} else if n > 0 {
		w.log.Debug("old screenshots removed", logx.Int("count", n))
	}
}
