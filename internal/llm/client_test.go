package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	logx "zephyrbot/pkg/logx"
)

type generateBody struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system"`
	Stream  *bool          `json:"stream"`
	Images  []string       `json:"images"`
	Options map[string]any `json:"options"`
}

type recObserver struct {
	mu  sync.Mutex
	ops []string
}

func (o *recObserver) ObserveLLM(op string, _ time.Duration, _ error) {
	o.mu.Lock()
	o.ops = append(o.ops, op)
	o.mu.Unlock()
}

func newServer(t *testing.T, handle func(w http.ResponseWriter, body generateBody)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			w.WriteHeader(http.StatusOK)
			return
		}
		var body generateBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		handle(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func reply(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"model": "m", "response": text, "done": true})
}

func TestGenerateSendsSystemPromptAndCleans(t *testing.T) {
	t.Parallel()
	var got generateBody
	srv := newServer(t, func(w http.ResponseWriter, body generateBody) {
		got = body
		reply(w, `  "Warum…?"  `)
	})
	obs := &recObserver{}
	c, err := New(Config{Host: srv.URL, Model: "zephyr", System: "Du bist zephyr."}, srv.Client(), obs, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	text, err := c.Generate(context.Background(), "Erzähle einen Witz")
	if err != nil {
		t.Fatal(err)
	}
	if text != "Warum…?" {
		t.Fatalf("text = %q", text)
	}
	if got.Model != "zephyr" || got.System != "Du bist zephyr." || got.Stream == nil || *got.Stream {
		t.Fatalf("request = %+v", got)
	}
	if len(obs.ops) != 1 || obs.ops[0] != "generate" {
		t.Fatalf("observed %v", obs.ops)
	}
}

func TestDescribeSendsImageAndOptions(t *testing.T) {
	t.Parallel()
	var got generateBody
	srv := newServer(t, func(w http.ResponseWriter, body generateBody) {
		got = body
		reply(w, "Ein Terminal")
	})
	c, err := New(Config{Host: srv.URL, VisionModel: "llava"}, srv.Client(), nil, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	text, err := c.Describe(context.Background(), []byte("png-bytes"), "Beschreibe")
	if err != nil || text != "Ein Terminal" {
		t.Fatalf("Describe = %q, %v", text, err)
	}
	if got.Model != "llava" || len(got.Images) != 1 {
		t.Fatalf("request = %+v", got)
	}
	if got.Options["num_predict"] != float64(250) || got.Options["temperature"] != 0.3 {
		t.Fatalf("options = %v", got.Options)
	}
}

func TestRetriesThenSucceeds(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := newServer(t, func(w http.ResponseWriter, _ generateBody) {
		if calls.Add(1) < 3 {
			http.Error(w, `{"error":"model loading"}`, http.StatusInternalServerError)
			return
		}
		reply(w, "endlich")
	})
	c, _ := New(Config{Host: srv.URL, Retries: 3}, srv.Client(), nil, logx.Nop())
	text, err := c.Generate(context.Background(), "x")
	if err != nil || text != "endlich" {
		t.Fatalf("Generate = %q, %v", text, err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d", calls.Load())
	}
}

func TestEmptyResponseIsAnError(t *testing.T) {
	t.Parallel()
	srv := newServer(t, func(w http.ResponseWriter, _ generateBody) { reply(w, "   ") })
	c, _ := New(Config{Host: srv.URL, Retries: 2}, srv.Client(), nil, logx.Nop())
	if _, err := c.Generate(context.Background(), "x"); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("err = %v", err)
	}
}

func TestTimeoutIsBounded(t *testing.T) {
	t.Parallel()
	srv := newServer(t, func(w http.ResponseWriter, _ generateBody) {
		time.Sleep(500 * time.Millisecond)
		reply(w, "zu spät")
	})
	c, _ := New(Config{Host: srv.URL, Timeout: 50 * time.Millisecond, Retries: 1}, srv.Client(), nil, logx.Nop())
	start := time.Now()
	if _, err := c.Generate(context.Background(), "x"); err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 400*time.Millisecond {
		t.Fatal("request outlived its timeout")
	}
}

func TestNewRejectsRelativeHost(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{Host: "localhost"}, nil, nil, logx.Nop()); err == nil {
		t.Fatal("expected error")
	}
}

func TestClean(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		`"Hallo"`:      "Hallo",
		` 'Hi' `:       "Hi",
		"„Servus“":     "Servus",
		`Er sagte "x"`: `Er sagte "x"`,
		`"`:            `"`,
	}
	for in, want := range cases {
		if got := Clean(in); got != want {
			t.Errorf("Clean(%q) = %q, want %q", in, got, want)
		}
	}
}
