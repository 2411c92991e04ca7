package config

// Default returns the configuration used when neither file nor environment
// sets a value.
func Default() *Config {
	return &Config{
		Bot: BotConfig{
			Name:                "zephyr",
			YouTubeName:         "ZephyroBot",
			RandomReplyRate:     0.05,
			MinResponseInterval: "3s",
			MaxMessageAge:       "300s",
			QueueCapacity:       200,
			GameStateFile:       "./game_state.json",
			PIDFile:             "./zephyr_multi_bot.pid",
		},
		Twitch:  TwitchConfig{Enabled: true},
		YouTube: YouTubeConfig{Enabled: true, PollInterval: "5s", MaxResults: 200},
		LLM: LLMConfig{
			Host:          "http://localhost:11434",
			Model:         "zephyr",
			VisionModel:   "llava",
			Timeout:       "30s",
			VisionTimeout: "60s",
			RetryCount:    3,
		},
		Vision: VisionConfig{
			Enabled:        true,
			ScreenshotsDir: "./screenshots",
			CacheFile:      "./latest_vision.txt",
			WatchInterval:  "30s",
			Keep:           100,
		},
		Schedule: ScheduleConfig{
			AutoJoke:         "180",
			AutoComment:      "240",
			AutoSceneComment: "300",
			CommandReminder:  "600",
			Sentiment:        "60",
			Status:           "5m",
		},
		Reconnect: ReconnectConfig{Delay: "10s", MaxAttempts: 10, Cooldown: "5m"},
		Logging:   LoggingConfig{Level: "INFO", Console: true},
		Storage:   StorageConfig{Driver: "none"},
	}
}
