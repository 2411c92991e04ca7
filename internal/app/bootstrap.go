package app

import (
	"time"

	"zephyrbot/internal/config"
	"zephyrbot/internal/llm"
)

// settings are the config durations resolved once at startup.
type settings struct {
	minResponse time.Duration
	maxAge      time.Duration

	llmTimeout    time.Duration
	visionTimeout time.Duration

	youtubePoll time.Duration
	watchEvery  time.Duration

	reconnectDelay    time.Duration
	reconnectCooldown time.Duration

	// handlerTimeout bounds one model request made by a chat command,
	// including every retry of the client.
	handlerTimeout time.Duration
}

// llmRetryDelay is the base of the client's linear retry backoff.
const llmRetryDelay = 2 * time.Second

// requestBudget is the worst case of one client request: every attempt
// runs to its timeout and waits delay*attempt before the next one. One
// second of slack covers connection setup.
func requestBudget(timeout time.Duration, retries int, delay time.Duration) time.Duration {
	if retries < 1 {
		retries = llm.DefaultRetries
	}
	waits := retries * (retries - 1) / 2
	return time.Duration(retries)*timeout + time.Duration(waits)*delay + time.Second
}

func resolve(cfg *config.Config) (settings, error) {
	var s settings
	fields := []struct {
		path string
		raw  string
		def  time.Duration
		dst  *time.Duration
	}{
		{"bot.min_response_interval", cfg.Bot.MinResponseInterval, 3 * time.Second, &s.minResponse},
		{"bot.max_message_age", cfg.Bot.MaxMessageAge, 300 * time.Second, &s.maxAge},
		{"llm.timeout", cfg.LLM.Timeout, 30 * time.Second, &s.llmTimeout},
		{"llm.vision_timeout", cfg.LLM.VisionTimeout, 60 * time.Second, &s.visionTimeout},
		{"youtube.poll_interval", cfg.YouTube.PollInterval, 5 * time.Second, &s.youtubePoll},
		{"vision.watch_interval", cfg.Vision.WatchInterval, 30 * time.Second, &s.watchEvery},
		{"reconnect.delay", cfg.Reconnect.Delay, 10 * time.Second, &s.reconnectDelay},
		{"reconnect.cooldown", cfg.Reconnect.Cooldown, 5 * time.Minute, &s.reconnectCooldown},
	}
	for _, f := range fields {
		d, err := config.DurationOr(f.path, f.raw, f.def)
		if err != nil {
			return settings{}, err
		}
		*f.dst = d
	}
	s.handlerTimeout = requestBudget(s.llmTimeout, cfg.LLM.RetryCount, llmRetryDelay)
	return s, nil
}

// logComponents get their own file when logging.split_dir is set.
var logComponents = []string{"twitch", "youtube", "vision"}
