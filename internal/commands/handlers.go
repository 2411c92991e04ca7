package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"zephyrbot/internal/chat"
	"zephyrbot/internal/gamestate"
	"zephyrbot/internal/vision"
	logx "zephyrbot/pkg/logx"
)

type handler func(r *Router, ctx context.Context, ev chat.Event, cmd Command) string

var handlers = map[Kind]handler{
	Joke:        (*Router).joke,
	Info:        (*Router).info,
	Stats:       (*Router).stats,
	Help:        (*Router).help,
	Image:       (*Router).image,
	SetGame:     (*Router).setGame,
	SetLocation: (*Router).setLocation,
	Death:       (*Router).death,
	SetLevel:    (*Router).setLevel,
	Ask:         (*Router).ask,
	Ping:        (*Router).ping,
	Mood:        (*Router).mood,
}

func (r *Router) runCommand(ctx context.Context, ev chat.Event, cmd Command) string {
	h, ok := handlers[cmd.Kind]
	if !ok {
		return fmt.Sprintf("@%s Unbekannter Befehl '%s'. Tippe !hilfe für eine Liste aller Befehle!", ev.Author, cmd.Name)
	}
	if cmd.Spec != nil && cmd.Spec.NeedsArg && cmd.Arg == "" {
		return fmt.Sprintf("@%s Benutzung: %s", ev.Author, fill(cmd.Spec.Usage, ev.Author, r.cfg.BotName))
	}
	return h(r, ctx, ev, cmd)
}

func (r *Router) joke(ctx context.Context, _ chat.Event, _ Command) string {
	return r.JokeText(ctx)
}

// JokeText is a generated joke or one from the fallback table.
func (r *Router) JokeText(ctx context.Context) string {
	if joke, ok := r.generate(ctx, "joke", jokePrompt); ok {
		return r.clip("🎭 " + joke)
	}
	return "🎭 " + r.pick(Jokes)
}

func (r *Router) info(_ context.Context, _ chat.Event, _ Command) string {
	st := r.loadGame()
	return fmt.Sprintf("🎮 Aktuelles Spiel: %s | 📍 Ort: %s | ⏱️ Spielzeit: %s", st.Game, st.Location, st.PlayTime)
}

func (r *Router) stats(_ context.Context, _ chat.Event, _ Command) string {
	st := r.loadGame()
	msg := fmt.Sprintf("📊 Statistiken: 💀 Tode: %d | 📈 Level: %d | 🕹️ Spiel: %s", st.Deaths, st.Level, st.Game)
	if r.deps.Stats != nil {
		snap := r.deps.Stats.Stats()
		msg += fmt.Sprintf(" | 💬 Nachrichten: %d | 😊 Stimmung: %s", snap.Processed, snap.Sentiment)
	}
	return msg
}

func (r *Router) help(_ context.Context, _ chat.Event, _ Command) string {
	return HelpText(r.cfg.BotName)
}

func (r *Router) image(ctx context.Context, _ chat.Event, _ Command) string {
	if r.deps.Scene == nil {
		return "👁️ " + r.pick(SceneComments)
	}
	res, err := r.deps.Scene.Scene(ctx, r.cfg.SceneMaxAge)
	if errors.Is(err, vision.ErrNoScreenshot) {
		return "👁️ " + NoScreenshot
	}
	if err != nil || res.Description == "" {
		if err != nil {
			r.log.Warn("scene analysis failed", logx.Err(err))
		}
		return "👁️ " + r.pick(SceneComments)
	}
	return r.clip("👁️ " + r.CommentOn(ctx, res))
}

// CommentOn produces a comment for an analyzed screenshot, without prefix.
func (r *Router) CommentOn(ctx context.Context, res vision.Result) string {
	cat := res.Category
	if _, ok := CategoryComments[cat]; !ok {
		cat = vision.CategoryGeneral
	}
	if text, ok := r.generate(ctx, "scene-comment", CategoryPrompt(r.cfg.BotName, cat, res.Description)); ok {
		return text
	}
	r.log.Debug("using fallback scene comment", logx.String("category", string(cat)))
	return r.pick(CategoryComments[cat])
}

func (r *Router) setGame(_ context.Context, ev chat.Event, cmd Command) string {
	before, after, err := r.updateGame(func(st *gamestate.State) { st.Game = cmd.Arg })
	if err != nil {
		return r.saveFailed(ev)
	}
	return fmt.Sprintf("🎮 @%s hat das Spiel von '%s' zu '%s' geändert!", ev.Author, before.Game, after.Game)
}

func (r *Router) setLocation(_ context.Context, ev chat.Event, cmd Command) string {
	before, after, err := r.updateGame(func(st *gamestate.State) { st.Location = cmd.Arg })
	if err != nil {
		return r.saveFailed(ev)
	}
	return fmt.Sprintf("📍 @%s hat den Ort von '%s' zu '%s' geändert!", ev.Author, before.Location, after.Location)
}

func (r *Router) death(_ context.Context, ev chat.Event, _ Command) string {
	_, after, err := r.updateGame(func(st *gamestate.State) { st.Deaths++ })
	if err != nil {
		return r.saveFailed(ev)
	}
	return fmt.Sprintf("💀 R.I.P! Todeszähler steht jetzt bei %d. %s", after.Deaths, r.pick(DeathQuips))
}

func (r *Router) setLevel(_ context.Context, ev chat.Event, cmd Command) string {
	fields := strings.Fields(cmd.Arg)
	level, err := strconv.Atoi(fields[0])
	if err != nil || level < 1 {
		return fmt.Sprintf("@%s Bitte gib eine gültige Levelnummer an!", ev.Author)
	}
	before, _, err := r.updateGame(func(st *gamestate.State) { st.Level = level })
	if err != nil {
		return r.saveFailed(ev)
	}
	if level > before.Level {
		return fmt.Sprintf("📈 Level Up! @%s hat das Level von %d auf %d erhöht! Weiter so!", ev.Author, before.Level, level)
	}
	return fmt.Sprintf("📊 @%s hat das Level auf %d gesetzt.", ev.Author, level)
}

func (r *Router) ask(ctx context.Context, ev chat.Event, cmd Command) string {
	question := cmd.Arg
	if first, rest, _ := strings.Cut(question, " "); strings.EqualFold(strings.Trim(first, ",:"), r.cfg.BotName) {
		question = strings.TrimSpace(rest)
	}
	if question == "" {
		return fmt.Sprintf("@%s Benutzung: %s", ev.Author, fill(cmd.Spec.Usage, ev.Author, r.cfg.BotName))
	}
	if answer, ok := r.generate(ctx, "ask", directQuestionPrompt(r.cfg.BotName, ev.Author, question)); ok {
		return r.clip("@" + ev.Author + " " + answer)
	}
	return fill(r.pick(AskFallbacks), ev.Author, r.cfg.BotName)
}

func (r *Router) ping(_ context.Context, ev chat.Event, _ Command) string {
	return fmt.Sprintf("@%s Pong! 🏓 Bot läuft auf %s mit KI-Features!", ev.Author, ev.Platform.Title())
}

func (r *Router) mood(_ context.Context, _ chat.Event, _ Command) string {
	label := "neutral"
	if r.deps.Stats != nil {
		if s := r.deps.Stats.Stats().Sentiment; s != "" {
			label = s
		}
	}
	emoji, ok := moodEmoji[label]
	if !ok {
		emoji = "😐"
	}
	return fmt.Sprintf("%s Die aktuelle Chat-Stimmung ist: %s! %s", emoji, strings.ToUpper(label), emoji)
}

func (r *Router) loadGame() gamestate.State {
	if r.deps.Game == nil {
		return gamestate.Default()
	}
	st, err := r.deps.Game.Load()
	if err != nil {
		r.log.Warn("game state unreadable", logx.Err(err))
	}
	return st
}

func (r *Router) updateGame(fn func(*gamestate.State)) (before, after gamestate.State, err error) {
	if r.deps.Game == nil {
		before = gamestate.Default()
		after = before
		fn(&after)
		return before, after, nil
	}
	before, after, err = r.deps.Game.Update(fn)
	if err != nil {
		r.log.Error("game state update failed", logx.Err(err))
	}
	return before, after, err
}

func (r *Router) saveFailed(ev chat.Event) string {
	return fmt.Sprintf("@%s Der Spielstand konnte gerade nicht gespeichert werden.", ev.Author)
}
