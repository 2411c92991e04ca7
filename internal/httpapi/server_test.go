package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"zephyrbot/internal/chat"
	"zephyrbot/internal/dispatch"
	logx "zephyrbot/pkg/logx"
)

type fixedStats dispatch.Snapshot

func (f fixedStats) Stats() dispatch.Snapshot { return dispatch.Snapshot(f) }

func TestHealthz(t *testing.T) {
	t.Parallel()
	var fatal error
	h := NewHandler(Config{}, Deps{
		Stats:  fixedStats{Platforms: []chat.Platform{chat.Twitch, chat.YouTube}},
		Health: func() error { return fatal },
	}, logx.Nop())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "youtube") {
		t.Fatalf("healthz = %d %s", rec.Code, rec.Body.String())
	}

	fatal = errors.New("twitch: gave up")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("healthz with fatal error = %d", rec.Code)
	}
}

func TestStatsIncludesJobs(t *testing.T) {
	t.Parallel()
	h := NewHandler(Config{}, Deps{
		Stats: fixedStats{Total: 7, Replies: 3},
		Jobs:  func() any { return []string{"auto-joke"} },
	}, logx.Nop())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if _, ok := body["jobs"]; !ok {
		t.Fatalf("jobs missing: %v", body)
	}
	if !strings.Contains(rec.Body.String(), "auto-joke") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "zephyr_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	h := NewHandler(Config{}, Deps{Gatherer: reg}, logx.Nop())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "zephyr_test_total 1") {
		t.Fatalf("metrics = %d %s", rec.Code, rec.Body.String())
	}
}

func TestPprofRequiresToken(t *testing.T) {
	t.Parallel()
	h := NewHandler(Config{Pprof: true, Token: "s3cret"}, Deps{}, logx.Nop())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("without token = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("with token = %d", rec.Code)
	}
}

func TestPprofRejectsWrongToken(t *testing.T) {
	t.Parallel()
	h := NewHandler(Config{Pprof: true, Token: "s3cret"}, Deps{}, logx.Nop())

	for name, set := range map[string]func(*http.Request){
		"same length header": func(r *http.Request) { r.Header.Set("Authorization", "Bearer s3creT") },
		"prefix header":      func(r *http.Request) { r.Header.Set("Authorization", "Bearer s3c") },
		"longer query":       func(r *http.Request) { r.URL.RawQuery = "token=s3cret0" },
	} {
		req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
		set(req)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status = %d", name, rec.Code)
		}
		if rec.Header().Get("WWW-Authenticate") != "Bearer" {
			t.Fatalf("%s: missing challenge", name)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/?token=s3cret", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("query token = %d", rec.Code)
	}
}

func TestPprofDisabledByDefault(t *testing.T) {
	t.Parallel()
	h := NewHandler(Config{}, Deps{}, logx.Nop())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestServerRunAndShutdown(t *testing.T) {
	t.Parallel()
	s := New(Config{Addr: "127.0.0.1:0"}, Deps{Stats: fixedStats{}}, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(time.Second)
	for s.Addr() == "" && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestIsLoopbackAddr(t *testing.T) {
	t.Parallel()
	cases := map[string]bool{
		"127.0.0.1:8080": true,
		"localhost:80":   true,
		"[::1]:9":        true,
		":8080":          false,
		"0.0.0.0:8080":   false,
		"bad":            false,
	}
	for addr, want := range cases {
		if got := isLoopbackAddr(addr); got != want {
			t.Errorf("isLoopbackAddr(%q) = %v", addr, got)
		}
	}
}
