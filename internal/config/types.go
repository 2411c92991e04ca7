package config

// Config is the whole process configuration. File values are overridden by
// environment variables (see env.go). Durations are strings that accept Go
// durations ("3m") or bare seconds ("180").
type Config struct {
	Bot       BotConfig       `json:"bot"`
	Twitch    TwitchConfig    `json:"twitch"`
	YouTube   YouTubeConfig   `json:"youtube"`
	LLM       LLMConfig       `json:"llm"`
	Vision    VisionConfig    `json:"vision"`
	Schedule  ScheduleConfig  `json:"schedule"`
	Reconnect ReconnectConfig `json:"reconnect"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	HTTP      HTTPConfig      `json:"http"`
	Telemetry TelemetryConfig `json:"telemetry"`
}

type BotConfig struct {
	Name        string `json:"name"`
	YouTubeName string `json:"youtube_name"`

	RandomReplyRate     float64 `json:"random_reply_rate"`
	MinResponseInterval string  `json:"min_response_interval"`
	MaxMessageAge       string  `json:"max_message_age"`
	QueueCapacity       int     `json:"queue_capacity"`

	GameStateFile string `json:"game_state_file"`
	PIDFile       string `json:"pid_file"`
}

type TwitchConfig struct {
	Enabled  bool   `json:"enabled"`
	Username string `json:"username"`
	OAuth    string `json:"oauth_token"` // secret
	Channel  string `json:"channel"`
}

type YouTubeConfig struct {
	Enabled      bool   `json:"enabled"`
	ChannelName  string `json:"channel_name,omitempty"`
	APIKey       string `json:"api_key"` // secret
	ChannelID    string `json:"channel_id"`
	LiveChatID   string `json:"live_chat_id,omitempty"`
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"` // secret
	RefreshToken string `json:"refresh_token,omitempty"` // secret
	PollInterval string `json:"poll_interval"`
	MaxResults   int64  `json:"max_results"`
}

type LLMConfig struct {
	Host          string `json:"host"`
	Model         string `json:"model"`
	VisionModel   string `json:"vision_model"`
	Timeout       string `json:"timeout"`
	VisionTimeout string `json:"vision_timeout"`
	RetryCount    int    `json:"retry_count"`
}

type VisionConfig struct {
	Enabled        bool   `json:"enabled"`
	ScreenshotsDir string `json:"screenshots_dir"`
	CacheFile      string `json:"cache_file"`
	WatchInterval  string `json:"watch_interval"`
	Keep           int    `json:"keep"`
}

// ScheduleConfig holds one schedule per automatic job. "0" disables a job.
type ScheduleConfig struct {
	AutoJoke         string `json:"auto_joke"`
	AutoComment      string `json:"auto_comment"`
	AutoSceneComment string `json:"auto_scene_comment"`
	CommandReminder  string `json:"command_reminder"`
	Sentiment        string `json:"sentiment"`
	Status           string `json:"status"`
}

type ReconnectConfig struct {
	Delay       string `json:"delay"`
	MaxAttempts int    `json:"max_attempts"`
	Cooldown    string `json:"cooldown"`
}

type LoggingConfig struct {
	Level   string `json:"level"`
	Console bool   `json:"console"`
	File    string `json:"file,omitempty"`
	// SplitDir enables per-component log files.
	SplitDir string `json:"split_dir,omitempty"`
}

type StorageConfig struct {
	Driver        string `json:"driver"`
	Path          string `json:"path,omitempty"`
	SeenRetention string `json:"seen_retention,omitempty"`
	BusyTimeout   string `json:"busy_timeout,omitempty"`
}

type HTTPConfig struct {
	Addr  string `json:"addr,omitempty"`
	Pprof bool   `json:"pprof,omitempty"`
	Token string `json:"token,omitempty"` // secret
}

type TelemetryConfig struct {
	OTLPEndpoint string `json:"otlp_endpoint,omitempty"`
}
