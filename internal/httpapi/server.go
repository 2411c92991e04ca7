// Package httpapi serves the bot's status endpoints.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"zephyrbot/internal/dispatch"
	logx "zephyrbot/pkg/logx"
)

type Config struct {
	Addr string
	// Pprof mounts /debug/pprof. On a non-loopback Addr it needs Token.
	Pprof bool
	// Token, when set, guards /debug with a bearer token.
	Token string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type StatsSource interface {
	Stats() dispatch.Snapshot
}

type Deps struct {
	Stats StatsSource
	// Health returns the first fatal error recorded by the runtime.
	Health func() error
	// Jobs describes scheduled jobs for /stats; optional.
	Jobs     func() any
	Gatherer prometheus.Gatherer
}

// NewHandler builds the router.
func NewHandler(cfg Config, deps Deps, log logx.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		body := map[string]any{"status": "ok"}
		code := http.StatusOK
		if deps.Stats != nil {
			body["platforms"] = deps.Stats.Stats().Platforms
		}
		if deps.Health != nil {
			if err := deps.Health(); err != nil {
				code = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body["error"] = err.Error()
			}
		}
		writeJSON(w, code, body)
	})

	r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
		if deps.Stats == nil {
			http.Error(w, "stats unavailable", http.StatusServiceUnavailable)
			return
		}
		snap := deps.Stats.Stats()
		if deps.Jobs == nil {
			writeJSON(w, http.StatusOK, snap)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			dispatch.Snapshot
			Jobs any `json:"jobs"`
		}{snap, deps.Jobs()})
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	if cfg.Pprof {
		r.With(bearer(cfg.Token)).Mount("/debug", middleware.Profiler())
	}
	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func requestLogger(log logx.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				logx.String("method", r.Method),
				logx.String("path", r.URL.Path),
				logx.Int("status", ww.Status()),
				logx.Duration("took", time.Since(start)),
				logx.String("req_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

// bearer accepts "Authorization: Bearer <token>" or ?token=<token>.
func bearer(token string) func(http.Handler) http.Handler {
	tok := strings.TrimSpace(token)
	return func(next http.Handler) http.Handler {
		if tok == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.URL.Query().Get("token")
			if got == "" {
				got = strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(tok)) != 1 {
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Server runs the handler on cfg.Addr.
type Server struct {
	cfg  Config
	deps Deps
	log  logx.Logger

	mu   sync.Mutex
	addr string
}

func New(cfg Config, deps Deps, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Server{cfg: cfg, deps: deps, log: log}
}

// Addr is the bound address once Run is listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Run listens and serves until ctx ends.
func (s *Server) Run(ctx context.Context) error {
	addr := strings.TrimSpace(s.cfg.Addr)
	if addr == "" {
		return errors.New("http addr required")
	}
	if s.cfg.Pprof && s.cfg.Token == "" && !isLoopbackAddr(addr) {
		s.log.Warn("pprof disabled: non-loopback addr requires a token", logx.String("addr", addr))
		s.cfg.Pprof = false
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           NewHandler(s.cfg, s.deps, s.log),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.mu.Unlock()
	s.log.Info("status server listening", logx.String("addr", ln.Addr().String()), logx.Bool("pprof", s.cfg.Pprof))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
		<-errCh
		return ctx.Err()
	}
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil || h == "" {
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
