// Package youtube polls a YouTube live chat and posts replies to it.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	yt "google.golang.org/api/youtube/v3"

	"zephyrbot/internal/chat"
	"zephyrbot/internal/transport"
	logx "zephyrbot/pkg/logx"
)

// MaxMessageLen is the live chat message limit.
const MaxMessageLen = 200

// maxErrorStreak is how many failed polls in a row end a session.
const maxErrorStreak = 5

type Config struct {
	APIKey       string
	ClientID     string
	ClientSecret string
	RefreshToken string

	// ChannelID is the streamed channel; its own messages are ignored.
	ChannelID string
	// LiveChatID skips broadcast discovery when set.
	LiveChatID string

	PollInterval time.Duration
	MaxResults   int64
	// RequestsPerMinute caps Data API calls.
	RequestsPerMinute int
}

func (c Config) canWrite() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}

func (c Config) Validate() error {
	if c.APIKey == "" && !c.canWrite() {
		return errors.New("youtube: missing YOUTUBE_API_KEY or YOUTUBE_CLIENT_ID/SECRET/REFRESH_TOKEN")
	}
	if c.ChannelID == "" && c.LiveChatID == "" {
		return errors.New("youtube: missing YOUTUBE_CHANNEL_ID or YOUTUBE_LIVE_CHAT_ID")
	}
	return nil
}

func (c *Config) withDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.MaxResults <= 0 || c.MaxResults > 2000 {
		c.MaxResults = 200
	}
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = 30
	}
}

type Adapter struct {
	cfg      Config
	api      chatAPI
	writable bool
	sink     transport.Sink
	log      logx.Logger
	limiter  *rate.Limiter

	mu     sync.Mutex
	chatID string
}

// New builds the adapter and its API client.
func New(ctx context.Context, cfg Config, sink transport.Sink, log logx.Logger) (*Adapter, error) {
	api, writable, err := newAPI(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return newAdapter(cfg, api, writable, sink, log), nil
}

func newAdapter(cfg Config, api chatAPI, writable bool, sink transport.Sink, log logx.Logger) *Adapter {
	cfg.withDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	every := time.Minute / time.Duration(cfg.RequestsPerMinute)
	return &Adapter{
		cfg:      cfg,
		api:      api,
		writable: writable,
		sink:     sink,
		log:      log,
		limiter:  rate.NewLimiter(rate.Every(every), 2),
	}
}

// Writable reports whether Send can post.
func (a *Adapter) Writable() bool { return a.writable }

// ChatID is the live chat currently polled.
func (a *Adapter) ChatID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.chatID
}

func (a *Adapter) setChatID(id string) {
	a.mu.Lock()
	a.chatID = id
	a.mu.Unlock()
}

// Run resolves the live chat and polls it until ctx ends. It returns an
// error when the chat ends or polling keeps failing, so the caller can
// retry with backoff.
func (a *Adapter) Run(ctx context.Context) error {
	defer a.setChatID("")

	id := a.cfg.LiveChatID
	if id == "" {
		if err := a.limiter.Wait(ctx); err != nil {
			return err
		}
		var err error
		id, err = a.api.ResolveChatID(ctx, a.cfg.ChannelID)
		if err != nil {
			return err
		}
	}
	a.setChatID(id)
	a.log.Info("live chat resolved", logx.String("chat_id", id))

	p := &poller{chatID: id}
	for first := true; ; first = false {
		if err := a.limiter.Wait(ctx); err != nil {
			return err
		}
		wait, err := a.poll(ctx, p, first)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil && chatGone(err):
			return fmt.Errorf("live chat %s gone: %w", id, err)
		case err != nil:
			p.errStreak++
			if p.errStreak >= maxErrorStreak {
				return fmt.Errorf("poll failed %d times: %w", p.errStreak, err)
			}
			wait = min(a.cfg.PollInterval<<p.errStreak, time.Minute)
			if quotaExceeded(err) {
				wait = 10 * time.Minute
			}
			a.log.Warn("poll failed", logx.Int("streak", p.errStreak), logx.Duration("retry_in", wait), logx.Err(err))
		default:
			p.errStreak = 0
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

type poller struct {
	chatID    string
	pageToken string
	errStreak int
}

// poll fetches one page. On the first page the backlog is skipped so a
// restart does not answer history. It returns the wait before the next poll.
func (a *Adapter) poll(ctx context.Context, p *poller, first bool) (time.Duration, error) {
	resp, err := a.api.List(ctx, p.chatID, p.pageToken, a.cfg.MaxResults)
	if err != nil {
		return 0, err
	}
	p.pageToken = resp.NextPageToken

	wait := a.cfg.PollInterval
	if hint := time.Duration(resp.PollingIntervalMillis) * time.Millisecond; hint > wait {
		wait = hint
	}
	if first {
		if len(resp.Items) > 0 {
			a.log.Info("skipped chat backlog", logx.Int("messages", len(resp.Items)))
		}
		return wait, nil
	}

	delivered := 0
	for _, it := range resp.Items {
		if ev, ok := a.toEvent(it); ok && a.sink.DeliverEvent(ev) {
			delivered++
		}
	}
	a.log.Debug("poll", logx.Int("items", len(resp.Items)), logx.Int("delivered", delivered), logx.Duration("next", wait))
	return wait, nil
}

func (a *Adapter) toEvent(it *yt.LiveChatMessage) (chat.Event, bool) {
	if it == nil || it.Snippet == nil || it.AuthorDetails == nil {
		return chat.Event{}, false
	}
	if it.Snippet.Type != "" && it.Snippet.Type != "textMessageEvent" {
		return chat.Event{}, false
	}
	text := it.Snippet.DisplayMessage
	if text == "" && it.Snippet.TextMessageDetails != nil {
		text = it.Snippet.TextMessageDetails.MessageText
	}
	if strings.TrimSpace(text) == "" {
		return chat.Event{}, false
	}
	if a.cfg.ChannelID != "" && it.AuthorDetails.ChannelId == a.cfg.ChannelID {
		return chat.Event{}, false
	}
	at, err := time.Parse(time.RFC3339Nano, it.Snippet.PublishedAt)
	if err != nil {
		at = time.Now()
	}
	return chat.NewEvent(chat.YouTube, it.AuthorDetails.DisplayName, text, at, it.Id), true
}

// Send posts text to the live chat.
func (a *Adapter) Send(ctx context.Context, text string) error {
	if !a.writable {
		return transport.ErrReadOnly
	}
	id := a.ChatID()
	if id == "" {
		return transport.ErrNotConnected
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	return a.api.Insert(ctx, id, transport.Clip(text, MaxMessageLen))
}
