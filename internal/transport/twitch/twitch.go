// Package twitch connects the dispatcher to a Twitch channel over IRC.
package twitch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	irc "github.com/gempir/go-twitch-irc/v4"

	"zephyrbot/internal/chat"
	"zephyrbot/internal/transport"
	logx "zephyrbot/pkg/logx"
)

// MaxMessageLen is the Twitch chat message limit.
const MaxMessageLen = 450

type Config struct {
	Username string
	// OAuth is the chat token, with or without the "oauth:" prefix.
	OAuth   string
	Channel string
}

func (c Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Username) == "" {
		missing = append(missing, "BOT_USERNAME")
	}
	if strings.TrimSpace(c.OAuth) == "" {
		missing = append(missing, "OAUTH_TOKEN")
	}
	if strings.TrimSpace(c.Channel) == "" {
		missing = append(missing, "CHANNEL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("twitch: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// client is the subset of *irc.Client the adapter drives.
type client interface {
	OnPrivateMessage(func(irc.PrivateMessage))
	OnConnect(func())
	Join(channels ...string)
	Say(channel, text string)
	Connect() error
	Disconnect() error
}

type Adapter struct {
	cfg  Config
	sink transport.Sink
	log  logx.Logger

	newClient func(user, oauth string) client

	mu        sync.Mutex
	cur       client
	connected atomic.Bool
}

func New(cfg Config, sink transport.Sink, log logx.Logger) *Adapter {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg.Channel = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(cfg.Channel)), "#")
	cfg.OAuth = strings.TrimSpace(cfg.OAuth)
	if cfg.OAuth != "" && !strings.HasPrefix(cfg.OAuth, "oauth:") {
		cfg.OAuth = "oauth:" + cfg.OAuth
	}
	return &Adapter{
		cfg:  cfg,
		sink: sink,
		log:  log,
		newClient: func(user, oauth string) client {
			return irc.NewClient(user, oauth)
		},
	}
}

// Connected reports whether the IRC session is up.
func (a *Adapter) Connected() bool { return a.connected.Load() }

// Run connects, joins the channel and forwards chat until ctx ends or the
// connection drops. A drop is returned as an error so the caller can
// reconnect with backoff.
func (a *Adapter) Run(ctx context.Context) error {
	c := a.newClient(a.cfg.Username, a.cfg.OAuth)
	c.OnConnect(func() {
		a.connected.Store(true)
		a.log.Info("connected", logx.String("channel", a.cfg.Channel))
	})
	c.OnPrivateMessage(a.onMessage)
	c.Join(a.cfg.Channel)

	a.mu.Lock()
	a.cur = c
	a.mu.Unlock()
	defer func() {
		a.connected.Store(false)
		a.mu.Lock()
		if a.cur == c {
			a.cur = nil
		}
		a.mu.Unlock()
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- c.Connect() }()

	select {
	case <-ctx.Done():
		_ = c.Disconnect()
		<-errCh
		a.log.Info("disconnected")
		return ctx.Err()
	case err := <-errCh:
		if err == nil || errors.Is(err, irc.ErrClientDisconnected) {
			err = errors.New("connection closed")
		}
		return fmt.Errorf("twitch irc: %w", err)
	}
}

func (a *Adapter) onMessage(m irc.PrivateMessage) {
	author := m.User.DisplayName
	if author == "" {
		author = m.User.Name
	}
	at := m.Time
	if at.IsZero() {
		at = time.Now()
	}
	a.log.Debug("message", logx.String("author", author), logx.String("text", m.Message))
	a.sink.Deliver(chat.Twitch, author, m.Message, at)
}

// Send writes text to the joined channel.
func (a *Adapter) Send(_ context.Context, text string) error {
	a.mu.Lock()
	c := a.cur
	a.mu.Unlock()
	if c == nil || !a.connected.Load() {
		return transport.ErrNotConnected
	}
	c.Say(a.cfg.Channel, transport.Clip(text, MaxMessageLen))
	return nil
}
