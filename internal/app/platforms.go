package app

import (
	"context"

	"zephyrbot/internal/chat"
	"zephyrbot/internal/runtime/supervisor"
	"zephyrbot/internal/transport/twitch"
	"zephyrbot/internal/transport/youtube"
	logx "zephyrbot/pkg/logx"
)

// platform is a chat source whose Run loop is kept alive by the supervisor.
type platform struct {
	id  chat.Platform
	run func(ctx context.Context) error
}

// buildPlatforms creates an adapter for every enabled platform with usable
// credentials and registers it as a sender. A platform with missing
// credentials is skipped with a warning.
func (a *App) buildPlatforms(comp func(string) logx.Logger) error {
	cfg := a.cfg

	if cfg.Twitch.Enabled {
		tc := twitch.Config{
			Username: cfg.Twitch.Username,
			OAuth:    cfg.Twitch.OAuth,
			Channel:  cfg.Twitch.Channel,
		}
		if err := tc.Validate(); err != nil {
			a.log.Warn("twitch disabled", logx.Err(err))
		} else {
			ad := twitch.New(tc, a.disp, comp("twitch"))
			a.disp.RegisterSender(chat.Twitch, ad)
			a.platforms = append(a.platforms, platform{id: chat.Twitch, run: ad.Run})
		}
	}

	if cfg.YouTube.Enabled {
		yc := youtube.Config{
			APIKey:       cfg.YouTube.APIKey,
			ClientID:     cfg.YouTube.ClientID,
			ClientSecret: cfg.YouTube.ClientSecret,
			RefreshToken: cfg.YouTube.RefreshToken,
			ChannelID:    cfg.YouTube.ChannelID,
			LiveChatID:   cfg.YouTube.LiveChatID,
			PollInterval: a.set.youtubePoll,
			MaxResults:   cfg.YouTube.MaxResults,
		}
		if err := yc.Validate(); err != nil {
			a.log.Warn("youtube disabled", logx.Err(err))
		} else {
			ad, err := youtube.New(context.Background(), yc, a.disp, comp("youtube"))
			if err != nil {
				return err
			}
			if !ad.Writable() {
				a.log.Warn("youtube is read-only; replies need YOUTUBE_CLIENT_ID, YOUTUBE_CLIENT_SECRET and YOUTUBE_REFRESH_TOKEN")
			}
			a.disp.RegisterSender(chat.YouTube, ad)
			a.platforms = append(a.platforms, platform{id: chat.YouTube, run: ad.Run})
		}
	}

	if len(a.platforms) == 0 {
		a.log.Error("no chat platform configured; the bot will only log")
	}
	return nil
}

// startPlatforms supervises each adapter: exponential backoff from the
// reconnect delay, a bounded number of attempts, then a long cooldown. A
// connection that stayed up for a cooldown period earns a fresh budget.
func (a *App) startPlatforms() {
	for _, p := range a.platforms {
		a.sup.GoRestart(p.id.String(), p.run,
			supervisor.WithRestartBackoff(a.set.reconnectDelay, 8*a.set.reconnectDelay),
			supervisor.WithMaxRestarts(a.cfg.Reconnect.MaxAttempts),
			supervisor.WithCooldown(a.set.reconnectCooldown),
			supervisor.WithHealthyAfter(a.set.reconnectCooldown),
			supervisor.WithStopOnCleanExit(false),
		)
	}
}
