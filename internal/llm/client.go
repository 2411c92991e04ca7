// Package llm talks to the local Ollama server for text generation and
// screenshot description.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	logx "zephyrbot/pkg/logx"
)

// ErrEmptyResponse is returned when the model answers with blank text.
var ErrEmptyResponse = errors.New("llm: empty response")

// Observer receives the duration and outcome of each request.
type Observer interface {
	ObserveLLM(op string, took time.Duration, err error)
}

// DefaultRetries is the attempt count used when Config.Retries is unset.
const DefaultRetries = 3

type Config struct {
	Host        string
	Model       string
	VisionModel string
	// System is sent with every Generate call.
	System string

	Timeout       time.Duration
	VisionTimeout time.Duration
	// Retries is the total number of attempts per call.
	Retries    int
	RetryDelay time.Duration

	Breaker BreakerConfig
}

func (c *Config) withDefaults() {
	if c.Host == "" {
		c.Host = "http://localhost:11434"
	}
	if c.Model == "" {
		c.Model = "zephyr"
	}
	if c.VisionModel == "" {
		c.VisionModel = "llava"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.VisionTimeout <= 0 {
		c.VisionTimeout = 60 * time.Second
	}
	if c.Retries <= 0 {
		c.Retries = DefaultRetries
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
}

type Client struct {
	api     *api.Client
	cfg     Config
	obs     Observer
	log     logx.Logger
	breaker *breaker
}

// New builds a client. hc may be nil.
func New(cfg Config, hc *http.Client, obs Observer, log logx.Logger) (*Client, error) {
	cfg.withDefaults()
	base, err := url.Parse(cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("parse ollama host %q: %w", cfg.Host, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("ollama host %q must be an absolute URL", cfg.Host)
	}
	if hc == nil {
		hc = &http.Client{}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		api:     api.NewClient(base, hc),
		cfg:     cfg,
		obs:     obs,
		log:     log,
		breaker: newBreaker(cfg.Breaker, nil),
	}, nil
}

// Generate asks the text model for a reply to prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	req := &api.GenerateRequest{
		Model:  c.cfg.Model,
		Prompt: prompt,
		System: c.cfg.System,
	}
	return c.run(ctx, "generate", c.cfg.Timeout, req)
}

// Describe asks the vision model what an image shows.
func (c *Client) Describe(ctx context.Context, image []byte, prompt string) (string, error) {
	req := &api.GenerateRequest{
		Model:   c.cfg.VisionModel,
		Prompt:  prompt,
		Images:  []api.ImageData{image},
		Options: map[string]any{"temperature": 0.3, "num_predict": 250},
	}
	return c.run(ctx, "describe", c.cfg.VisionTimeout, req)
}

// Ping checks that the server answers.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return c.api.Heartbeat(ctx)
}

func (c *Client) run(ctx context.Context, op string, timeout time.Duration, req *api.GenerateRequest) (string, error) {
	ctx, span := otel.Tracer("zephyrbot/llm").Start(ctx, "llm."+op)
	span.SetAttributes(attribute.String("model", req.Model))
	defer span.End()

	if open, until := c.breaker.open(op); open {
		span.SetStatus(codes.Error, "breaker open")
		return "", fmt.Errorf("%s with %s until %s: %w", op, req.Model, until.Format(time.TimeOnly), ErrUnavailable)
	}

	stream := false
	req.Stream = &stream

	var lastErr error
	for attempt := 1; attempt <= c.cfg.Retries; attempt++ {
		start := time.Now()
		text, err := c.once(ctx, timeout, req)
		if c.obs != nil {
			c.obs.ObserveLLM(op, time.Since(start), err)
		}
		if err == nil {
			c.breaker.record(op, false)
			span.SetAttributes(attribute.Int("attempts", attempt), attribute.Int("chars", len(text)))
			return text, nil
		}
		lastErr = err
		c.log.Warn("model request failed",
			logx.String("op", op),
			logx.String("model", req.Model),
			logx.Int("attempt", attempt),
			logx.Int("of", c.cfg.Retries),
			logx.Err(err),
		)
		if ctx.Err() != nil || attempt == c.cfg.Retries {
			break
		}
		select {
		case <-ctx.Done():
		case <-time.After(c.cfg.RetryDelay * time.Duration(attempt)):
		}
	}
	// A blank answer or a caller cancellation says nothing about backend health.
	if ctx.Err() == nil && !errors.Is(lastErr, ErrEmptyResponse) {
		if c.breaker.record(op, true) {
			c.log.Error("model backend failing; short-circuiting requests", logx.String("op", op), logx.String("model", req.Model))
		}
	}
	span.RecordError(lastErr)
	span.SetStatus(codes.Error, op+" failed")
	return "", fmt.Errorf("%s with %s: %w", op, req.Model, lastErr)
}

func (c *Client) once(ctx context.Context, timeout time.Duration, req *api.GenerateRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var b strings.Builder
	err := c.api.Generate(ctx, req, func(r api.GenerateResponse) error {
		b.WriteString(r.Response)
		return nil
	})
	if err != nil {
		return "", err
	}
	text := Clean(b.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Clean trims whitespace and one pair of surrounding quotes.
func Clean(s string) string {
	s = strings.TrimSpace(s)
	for _, q := range [][2]string{{`"`, `"`}, {"'", "'"}, {"„", "“"}, {"“", "”"}} {
		if len(s) >= len(q[0])+len(q[1]) && strings.HasPrefix(s, q[0]) && strings.HasSuffix(s, q[1]) {
			s = strings.TrimSpace(s[len(q[0]) : len(s)-len(q[1])])
			break
		}
	}
	return s
}
