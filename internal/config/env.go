package config

import (
	"fmt"
	"strconv"
	"strings"
)

type envVar struct {
	name  string
	apply func(c *Config, v string) error
}

func str(f func(c *Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error { *f(c) = strings.TrimSpace(v); return nil }
}

func boolean(f func(c *Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		*f(c) = b
		return nil
	}
}

func integer(f func(c *Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		*f(c) = n
		return nil
	}
}

func float(f func(c *Config) *float64) func(*Config, string) error {
	return func(c *Config, v string) error {
		x, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return err
		}
		*f(c) = x
		return nil
	}
}

// envVars is applied in order; LOG_LEVEL follows DEBUG_LEVEL so it wins.
var envVars = []envVar{
	{"BOT_NAME", str(func(c *Config) *string { return &c.Bot.Name })},
	{"YOUTUBE_BOT_NAME", str(func(c *Config) *string { return &c.Bot.YouTubeName })},
	{"RANDOM_REPLY_RATE", float(func(c *Config) *float64 { return &c.Bot.RandomReplyRate })},
	{"MIN_RESPONSE_INTERVAL", str(func(c *Config) *string { return &c.Bot.MinResponseInterval })},
	{"MAX_MESSAGE_AGE", str(func(c *Config) *string { return &c.Bot.MaxMessageAge })},
	{"QUEUE_CAPACITY", integer(func(c *Config) *int { return &c.Bot.QueueCapacity })},
	{"GAME_STATE_FILE", str(func(c *Config) *string { return &c.Bot.GameStateFile })},
	{"PID_FILE", str(func(c *Config) *string { return &c.Bot.PIDFile })},

	{"ENABLE_TWITCH", boolean(func(c *Config) *bool { return &c.Twitch.Enabled })},
	{"BOT_USERNAME", str(func(c *Config) *string { return &c.Twitch.Username })},
	{"OAUTH_TOKEN", str(func(c *Config) *string { return &c.Twitch.OAuth })},
	{"CHANNEL", str(func(c *Config) *string { return &c.Twitch.Channel })},

	{"ENABLE_YOUTUBE", boolean(func(c *Config) *bool { return &c.YouTube.Enabled })},
	{"YOUTUBE_CHANNEL_NAME", str(func(c *Config) *string { return &c.YouTube.ChannelName })},
	{"YOUTUBE_API_KEY", str(func(c *Config) *string { return &c.YouTube.APIKey })},
	{"YOUTUBE_CHANNEL_ID", str(func(c *Config) *string { return &c.YouTube.ChannelID })},
	{"YOUTUBE_LIVE_CHAT_ID", str(func(c *Config) *string { return &c.YouTube.LiveChatID })},
	{"YOUTUBE_CLIENT_ID", str(func(c *Config) *string { return &c.YouTube.ClientID })},
	{"YOUTUBE_CLIENT_SECRET", str(func(c *Config) *string { return &c.YouTube.ClientSecret })},
	{"YOUTUBE_REFRESH_TOKEN", str(func(c *Config) *string { return &c.YouTube.RefreshToken })},
	{"YOUTUBE_POLL_INTERVAL", str(func(c *Config) *string { return &c.YouTube.PollInterval })},
	{"YOUTUBE_MAX_RESULTS", func(c *Config, v string) error {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return err
		}
		c.YouTube.MaxResults = n
		return nil
	}},

	{"OLLAMA_HOST", str(func(c *Config) *string { return &c.LLM.Host })},
	{"OLLAMA_MODEL", str(func(c *Config) *string { return &c.LLM.Model })},
	{"VISION_MODEL", str(func(c *Config) *string { return &c.LLM.VisionModel })},
	{"OLLAMA_TIMEOUT", str(func(c *Config) *string { return &c.LLM.Timeout })},
	{"VISION_TIMEOUT", str(func(c *Config) *string { return &c.LLM.VisionTimeout })},
	{"OLLAMA_RETRY_COUNT", integer(func(c *Config) *int { return &c.LLM.RetryCount })},

	{"ENABLE_VISION", boolean(func(c *Config) *bool { return &c.Vision.Enabled })},
	{"SCREENSHOTS_DIR", str(func(c *Config) *string { return &c.Vision.ScreenshotsDir })},
	{"VISION_CACHE_FILE", str(func(c *Config) *string { return &c.Vision.CacheFile })},
	{"VISION_WATCH_INTERVAL", str(func(c *Config) *string { return &c.Vision.WatchInterval })},
	{"SCREENSHOTS_KEEP", integer(func(c *Config) *int { return &c.Vision.Keep })},

	{"AUTO_JOKE_INTERVAL", str(func(c *Config) *string { return &c.Schedule.AutoJoke })},
	{"AUTO_COMMENT_INTERVAL", str(func(c *Config) *string { return &c.Schedule.AutoComment })},
	{"AUTO_SCENE_COMMENT_INTERVAL", str(func(c *Config) *string { return &c.Schedule.AutoSceneComment })},
	{"COMMAND_REMINDER_INTERVAL", str(func(c *Config) *string { return &c.Schedule.CommandReminder })},
	{"SENTIMENT_INTERVAL", str(func(c *Config) *string { return &c.Schedule.Sentiment })},
	{"STATUS_INTERVAL", str(func(c *Config) *string { return &c.Schedule.Status })},

	{"RECONNECT_DELAY", str(func(c *Config) *string { return &c.Reconnect.Delay })},
	{"MAX_RECONNECT_ATTEMPTS", integer(func(c *Config) *int { return &c.Reconnect.MaxAttempts })},
	{"RECONNECT_COOLDOWN", str(func(c *Config) *string { return &c.Reconnect.Cooldown })},

	{"DEBUG_LEVEL", func(c *Config, v string) error {
		lvl, err := debugLevel(v)
		if err != nil {
			return err
		}
		c.Logging.Level = lvl
		return nil
	}},
	{"LOG_LEVEL", str(func(c *Config) *string { return &c.Logging.Level })},
	{"LOG_FILE", str(func(c *Config) *string { return &c.Logging.File })},
	{"LOG_DIR", str(func(c *Config) *string { return &c.Logging.SplitDir })},

	{"STORAGE_DRIVER", str(func(c *Config) *string { return &c.Storage.Driver })},
	{"STORAGE_PATH", str(func(c *Config) *string { return &c.Storage.Path })},

	{"HTTP_ADDR", str(func(c *Config) *string { return &c.HTTP.Addr })},
	{"HTTP_PPROF", boolean(func(c *Config) *bool { return &c.HTTP.Pprof })},
	{"HTTP_TOKEN", str(func(c *Config) *string { return &c.HTTP.Token })},

	{"OTEL_EXPORTER_OTLP_ENDPOINT", str(func(c *Config) *string { return &c.Telemetry.OTLPEndpoint })},
}

// debugLevel maps the legacy numeric verbosity to a level name.
func debugLevel(v string) (string, error) {
	switch strings.TrimSpace(v) {
	case "0":
		return "WARN", nil
	case "1":
		return "INFO", nil
	case "2":
		return "DEBUG", nil
	}
	return "", fmt.Errorf("want 0, 1 or 2")
}

// ApplyEnv overrides cfg with every variable lookup finds.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	for _, ev := range envVars {
		v, ok := lookup(ev.name)
		if !ok {
			continue
		}
		if err := ev.apply(cfg, v); err != nil {
			return fmt.Errorf("%s=%q: %w", ev.name, v, err)
		}
	}
	return nil
}
