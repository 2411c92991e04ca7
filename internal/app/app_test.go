package app

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"zephyrbot/internal/chat"
	"zephyrbot/internal/config"
	"zephyrbot/internal/vision"
)

// testConfig returns a config with no chat platform and a model backend
// that always fails, so replies come from the fallback tables.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Twitch.Enabled = true // no credentials, so skipped
	cfg.YouTube.Enabled = false
	cfg.LLM.Host = srv.URL
	cfg.LLM.RetryCount = 1
	cfg.Logging.Console = false
	cfg.Bot.GameStateFile = filepath.Join(dir, "game_state.json")
	cfg.Bot.PIDFile = filepath.Join(dir, "run", "bot.pid")
	cfg.Vision.ScreenshotsDir = filepath.Join(dir, "shots")
	cfg.Vision.CacheFile = filepath.Join(dir, "latest_vision.txt")
	cfg.Storage.Driver = "file"
	cfg.Storage.Path = filepath.Join(dir, "state", "zephyr")
	return cfg
}

func TestNewSkipsPlatformsWithoutCredentials(t *testing.T) {
	a, err := New(testConfig(t), "test")
	if err != nil {
		t.Fatal(err)
	}
	defer a.Stop(context.Background(), StopUnknown)

	if n := len(a.platforms); n != 0 {
		t.Fatalf("platforms = %d, want 0", n)
	}
	if got := a.disp.Registry().Platforms(); len(got) != 0 {
		t.Fatalf("registered senders = %v", got)
	}
	if a.watcher == nil {
		t.Fatal("vision watcher should be built when vision is enabled")
	}
}

func TestRegisterJobsHonorsDisabledSchedules(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(cfg, "test")
	if err != nil {
		t.Fatal(err)
	}
	if got := a.sched.Len(); got != 6 {
		t.Fatalf("jobs = %d, want 6", got)
	}
	a.Stop(context.Background(), StopUnknown)

	cfg = testConfig(t)
	cfg.Schedule.AutoJoke = "0"
	cfg.Vision.Enabled = false
	a, err = New(cfg, "test")
	if err != nil {
		t.Fatal(err)
	}
	defer a.Stop(context.Background(), StopUnknown)
	if got := a.sched.Len(); got != 4 {
		t.Fatalf("jobs = %d, want 4", got)
	}
}

func TestBadScheduleFailsNew(t *testing.T) {
	cfg := testConfig(t)
	cfg.Schedule.Status = "sometimes"
	if _, err := New(cfg, "test"); err == nil || !strings.Contains(err.Error(), "status") {
		t.Fatalf("err = %v", err)
	}
}

func TestBroadcastJobIdleWithoutPlatforms(t *testing.T) {
	a, err := New(testConfig(t), "test")
	if err != nil {
		t.Fatal(err)
	}
	defer a.Stop(context.Background(), StopUnknown)

	called := false
	job := a.broadcastJob("greeting", func(context.Context) (string, bool) {
		called = true
		return "hi", true
	})
	if err := job(context.Background()); err != nil {
		t.Fatal(err)
	}
	if called {
		t.Fatal("content generated with no platform registered")
	}
}

func TestScreenshotBecomesVisionEvent(t *testing.T) {
	a, err := New(testConfig(t), "test")
	if err != nil {
		t.Fatal(err)
	}
	defer a.Stop(context.Background(), StopUnknown)

	res := vision.Result{
		Shot:        vision.Shot{Path: "/tmp/shot.png", ModTime: time.Now(), Size: 10},
		Description: "ein Editor mit python code",
		Category:    vision.CategoryCode,
		At:          time.Now(),
	}
	a.onScreenshot(context.Background(), res)
	a.onScreenshot(context.Background(), res)

	items := a.disp.Queue().Items()
	if len(items) != 1 {
		t.Fatalf("queued = %d, want 1", len(items))
	}
	ev := items[0]
	if ev.Platform != chat.Vision || ev.Author != watcherAuthor || ev.Text == "" {
		t.Fatalf("event = %+v", ev)
	}
}

func TestStartStopWritesAndRemovesPID(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	t.Setenv("WATCHDOG_USEC", "")
	cfg := testConfig(t)
	a, err := New(cfg, "test")
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(cfg.Bot.PIDFile)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(b)) != strconv.Itoa(os.Getpid()) {
		t.Fatalf("pid file = %q", b)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Stop(ctx, StopSIGTERM); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(cfg.Bot.PIDFile); !os.IsNotExist(err) {
		t.Fatalf("pid file still present: %v", err)
	}
	select {
	case <-a.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}
}

func TestStatusServerBindFailureKeepsRunning(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	t.Setenv("WATCHDOG_USEC", "")
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer busy.Close()

	cfg := testConfig(t)
	cfg.HTTP.Addr = busy.Addr().String()
	a, err := New(cfg, "test")
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = a.Stop(ctx, StopSIGTERM)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for !httpFailed(a) {
		if time.Now().After(deadline) {
			t.Fatal("status server never reported the bind failure")
		}
		time.Sleep(10 * time.Millisecond)
	}
	select {
	case <-a.Done():
		t.Fatalf("app stopped after bind failure: %v", a.Err())
	case <-time.After(100 * time.Millisecond):
	}
	if err := a.Err(); err != nil {
		t.Fatalf("Err = %v", err)
	}
}

func httpFailed(a *App) bool {
	for _, ts := range a.sup.Snapshot().Tasks {
		if ts.Name == "http" && ts.LastErr != "" {
			return true
		}
	}
	return false
}

func TestVisionEventsFromBotNameAreSelf(t *testing.T) {
	cfg := testConfig(t)
	cfg.Bot.Name = "ZephyrBot"
	a, err := New(cfg, "test")
	if err != nil {
		t.Fatal(err)
	}
	defer a.Stop(context.Background(), StopUnknown)

	f := a.disp.Filter()
	if !f.IsSelf(chat.Vision, "zephyrbot") {
		t.Fatal("bot name not filtered on the vision platform")
	}
	if f.IsSelf(chat.Vision, watcherAuthor) {
		t.Fatal("watcher author must stay admissible")
	}
}

func TestRequestBudget(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		timeout time.Duration
		retries int
		delay   time.Duration
		want    time.Duration
	}{
		{"single attempt", 30 * time.Second, 1, 2 * time.Second, 31 * time.Second},
		{"three attempts", 30 * time.Second, 3, 2 * time.Second, 97 * time.Second},
		{"unset uses client default", 10 * time.Second, 0, time.Second, 34 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := requestBudget(tt.timeout, tt.retries, tt.delay); got != tt.want {
				t.Fatalf("requestBudget = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveRejectsBadDuration(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.Reconnect.Delay = "soon"
	if _, err := resolve(cfg); err == nil {
		t.Fatal("expected error")
	}
	cfg = config.Default()
	s, err := resolve(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if s.maxAge != 300*time.Second || s.reconnectCooldown != 5*time.Minute {
		t.Fatalf("settings = %+v", s)
	}
	if want := requestBudget(30*time.Second, cfg.LLM.RetryCount, llmRetryDelay); s.handlerTimeout != want {
		t.Fatalf("handlerTimeout = %v, want %v", s.handlerTimeout, want)
	}
}

func TestMapStorageConfig(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	if _, enabled, err := mapStorageConfig(cfg); err != nil || enabled {
		t.Fatalf("none: enabled=%v err=%v", enabled, err)
	}
	cfg.Storage = config.StorageConfig{Driver: "SQLite", Path: "x.db", SeenRetention: "2h"}
	sc, enabled, err := mapStorageConfig(cfg)
	if err != nil || !enabled {
		t.Fatalf("sqlite: enabled=%v err=%v", enabled, err)
	}
	if sc.Driver != "sqlite" || sc.SeenRetention != 2*time.Hour || sc.BusyTimeout != time.Second {
		t.Fatalf("storage = %+v", sc)
	}
}
