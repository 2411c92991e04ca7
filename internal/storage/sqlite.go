package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	logx "zephyrbot/pkg/logx"
)

//go:embed migrations.sql
var migrations string

const pruneEvery = 500

type sqliteStore struct {
	db        *sql.DB
	log       logx.Logger
	retention time.Duration
	closed    atomic.Bool
	ops       atomic.Uint64
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.ExecContext(context.Background(), migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	st := &sqliteStore{db: db, log: log, retention: cfg.SeenRetention}
	if err := st.prune(context.Background()); err != nil {
		log.Warn("seen prune failed", logx.Err(err))
	}
	log.Info("sqlite storage opened", logx.String("path", path))
	return st, nil
}

func (s *sqliteStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) AppendReply(ctx context.Context, r ReplyRecord) error {
	if s.closed.Load() {
		return ErrDisabled
	}
	if r.At.IsZero() {
		r.At = time.Now()
	}
	ok := 0
	if r.OK {
		ok = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO replies(at, platform, author, trace_id, text, ok, err, took_ms) VALUES(?,?,?,?,?,?,?,?)`,
		r.At.UTC().Format(time.RFC3339Nano), r.Platform, nullStr(r.Author), nullStr(r.TraceID),
		r.Text, ok, nullStr(r.Error), r.TookMS,
	)
	return err
}

func (s *sqliteStore) PutSeen(ctx context.Context, key string, at time.Time) error {
	if s.closed.Load() {
		return ErrDisabled
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO seen(key, at) VALUES(?,?) ON CONFLICT(key) DO UPDATE SET at=excluded.at`,
		key, at.UnixMilli(),
	)
	if err == nil && s.ops.Add(1)%pruneEvery == 0 {
		pctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		if perr := s.prune(pctx); perr != nil {
			s.log.Debug("seen prune failed", logx.Err(perr))
		}
		cancel()
	}
	return err
}

func (s *sqliteStore) RecentSeen(ctx context.Context, since time.Time) ([]string, error) {
	if s.closed.Load() {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM seen WHERE at >= ? ORDER BY at, key`, since.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (s *sqliteStore) prune(ctx context.Context) error {
	cut := time.Now().Add(-s.retention).UnixMilli()
	_, err := s.db.ExecContext(ctx, `DELETE FROM seen WHERE at < ?`, cut)
	return err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
