package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"zephyrbot/internal/scheduler"
)

// LoadDotenv loads each existing file into the process environment without
// overriding variables that are already set. It returns the files loaded.
func LoadDotenv(files ...string) ([]string, error) {
	var loaded []string
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return loaded, fmt.Errorf("load %s: %w", f, err)
		}
		loaded = append(loaded, f)
	}
	return loaded, nil
}

// Load builds the configuration: defaults, then the optional file at path,
// then the process environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeFile decodes a JSON or YAML file over cfg, rejecting unknown keys
// and trailing data.
func decodeFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	jb, format, err := coerceToJSONBytes(path, b)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("%s (%s): %w", path, format, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return fmt.Errorf("%s: trailing data", path)
		}
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if strings.TrimSpace(c.Bot.Name) == "" {
		add(errors.New("bot.name is required"))
	}
	if c.Bot.RandomReplyRate < 0 || c.Bot.RandomReplyRate > 1 {
		add(fmt.Errorf("bot.random_reply_rate must be within [0,1], got %v", c.Bot.RandomReplyRate))
	}
	if c.Bot.QueueCapacity <= 0 {
		add(fmt.Errorf("bot.queue_capacity must be > 0"))
	}

	durations := map[string]string{
		"bot.min_response_interval": c.Bot.MinResponseInterval,
		"bot.max_message_age":       c.Bot.MaxMessageAge,
		"youtube.poll_interval":     c.YouTube.PollInterval,
		"llm.timeout":               c.LLM.Timeout,
		"llm.vision_timeout":        c.LLM.VisionTimeout,
		"vision.watch_interval":     c.Vision.WatchInterval,
		"reconnect.delay":           c.Reconnect.Delay,
		"reconnect.cooldown":        c.Reconnect.Cooldown,
		"storage.seen_retention":    c.Storage.SeenRetention,
		"storage.busy_timeout":      c.Storage.BusyTimeout,
	}
	for path, raw := range durations {
		_, err := ParseDuration(path, raw)
		add(err)
	}

	schedules := map[string]string{
		"schedule.auto_joke":          c.Schedule.AutoJoke,
		"schedule.auto_comment":       c.Schedule.AutoComment,
		"schedule.auto_scene_comment": c.Schedule.AutoSceneComment,
		"schedule.command_reminder":   c.Schedule.CommandReminder,
		"schedule.sentiment":          c.Schedule.Sentiment,
		"schedule.status":             c.Schedule.Status,
	}
	for path, raw := range schedules {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		if _, err := scheduler.ParseSchedule(raw); err != nil {
			add(fmt.Errorf("%s: %w", path, err))
		}
	}

	if u, err := url.Parse(c.LLM.Host); err != nil || u.Scheme == "" || u.Host == "" {
		add(fmt.Errorf("llm.host must be an absolute URL, got %q", c.LLM.Host))
	}
	if c.LLM.RetryCount < 1 {
		add(fmt.Errorf("llm.retry_count must be >= 1"))
	}

	switch strings.ToUpper(strings.TrimSpace(c.Logging.Level)) {
	case "", "TRACE", "DEBUG", "INFO", "WARN", "WARNING", "ERROR", "0", "1", "2", "3":
	default:
		add(fmt.Errorf("logging.level %q is not a level name", c.Logging.Level))
	}

	switch d := strings.ToLower(strings.TrimSpace(c.Storage.Driver)); d {
	case "", "none":
	case "file", "sqlite", "sqlite3":
		if strings.TrimSpace(c.Storage.Path) == "" {
			add(fmt.Errorf("storage.path is required when storage.driver=%s", d))
		}
	default:
		add(fmt.Errorf("unknown storage.driver: %s", c.Storage.Driver))
	}

	return errors.Join(errs...)
}
