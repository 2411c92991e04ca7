package app

import (
	"context"
	"fmt"

	"zephyrbot/internal/scheduler"
	logx "zephyrbot/pkg/logx"
)

// registerJobs adds the automatic behaviors. A "0" schedule disables one.
func (a *App) registerJobs() error {
	sc := a.cfg.Schedule
	jobs := []struct {
		name string
		spec string
		fn   scheduler.Job
	}{
		{"auto-joke", sc.AutoJoke, a.broadcastJob("auto-joke", a.router.AutoJoke)},
		{"auto-game-comment", sc.AutoComment, a.broadcastJob("auto-game-comment", a.router.AutoGameComment)},
		{"command-reminder", sc.CommandReminder, a.broadcastJob("command-reminder", func(context.Context) (string, bool) {
			return a.router.NextReminder(), true
		})},
		{"sentiment", sc.Sentiment, func(context.Context) error {
			a.disp.AnalyzeSentiment()
			return nil
		}},
		{"status", sc.Status, a.logStatus},
	}
	if a.cfg.Vision.Enabled {
		jobs = append(jobs, struct {
			name string
			spec string
			fn   scheduler.Job
		}{"auto-scene-comment", sc.AutoSceneComment, a.broadcastJob("auto-scene-comment", a.router.AutoSceneComment)})
	}

	for _, j := range jobs {
		if _, err := a.sched.Add(j.name, j.spec, j.fn); err != nil {
			return fmt.Errorf("schedule %s: %w", j.name, err)
		}
	}
	return nil
}

// broadcastJob wraps a content source into a job that broadcasts to every
// registered platform. Nothing is generated while no platform is registered.
func (a *App) broadcastJob(name string, content func(context.Context) (string, bool)) scheduler.Job {
	return func(ctx context.Context) error {
		if len(a.disp.Registry().Platforms()) == 0 {
			return nil
		}
		text, ok := content(ctx)
		if !ok {
			return nil
		}
		a.disp.Broadcast(ctx, name, text)
		return nil
	}
}

func (a *App) logStatus(context.Context) error {
	snap := a.disp.Stats()
	a.metrics.SetQueueDepth(snap.QueueSize)
	a.log.Info("status",
		logx.String("uptime", snap.Uptime),
		logx.Uint64("messages", snap.Total),
		logx.Uint64("replies", snap.Replies),
		logx.Uint64("broadcasts", snap.Broadcasts),
		logx.Int("queue", snap.QueueSize),
		logx.Int("authors", snap.KnownAuthors),
		logx.String("sentiment", snap.Sentiment),
	)
	return nil
}
