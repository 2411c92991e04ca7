package commands

import (
	"context"
	"errors"

	"zephyrbot/internal/vision"
	logx "zephyrbot/pkg/logx"
)

// Content for the scheduled broadcasts. Each returns ok=false when there is
// nothing worth sending.

func (r *Router) AutoJoke(ctx context.Context) (string, bool) {
	return r.JokeText(ctx), true
}

// AutoGameComment comments on the current game; silent while no game is set.
func (r *Router) AutoGameComment(ctx context.Context) (string, bool) {
	st := r.loadGame()
	if !st.HasGame() {
		return "", false
	}
	if text, ok := r.generate(ctx, "game-comment", gameCommentPrompt(r.cfg.BotName, st.Game, st.Location)); ok {
		return r.clip("🎮 " + text), true
	}
	return "🎮 " + r.pick(GameComments), true
}

// AutoSceneComment comments on the newest screenshot.
func (r *Router) AutoSceneComment(ctx context.Context) (string, bool) {
	if r.deps.Scene == nil {
		return "", false
	}
	res, err := r.deps.Scene.Scene(ctx, 0)
	if errors.Is(err, vision.ErrNoScreenshot) {
		r.log.Debug("no screenshot for scene comment")
		return "", false
	}
	if err != nil || res.Description == "" {
		return "👁️ " + r.pick(SceneComments), true
	}
	return r.clip("👁️ " + r.CommentOn(ctx, res)), true
}

// NextReminder cycles through the reminder table.
func (r *Router) NextReminder() string {
	r.reminderMu.Lock()
	i := r.reminder
	r.reminder = (r.reminder + 1) % len(Reminders)
	r.reminderMu.Unlock()
	return fill(Reminders[i], "", r.cfg.BotName)
}

// WatcherComment turns a fresh watcher analysis into vision-event text.
func (r *Router) WatcherComment(ctx context.Context, res vision.Result) string {
	text := r.CommentOn(ctx, res)
	r.log.Debug("watcher comment ready", logx.String("category", string(res.Category)))
	return r.clip(text)
}
