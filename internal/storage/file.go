package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	logx "zephyrbot/pkg/logx"
)

// compactEvery is the number of seen-journal appends between compactions.
const compactEvery = 1000

// fileStore keeps three files next to cfg.Path:
//   - <prefix>.replies.jsonl       append-only reply journal
//   - <prefix>.seen.snapshot.json  compacted seen keys
//   - <prefix>.seen.journal.jsonl  seen keys since the last compaction
type fileStore struct {
	log       logx.Logger
	retention time.Duration

	mu          sync.Mutex
	replies     *os.File
	journal     *os.File
	snapshotPth string
	seen        map[string]int64 // key -> unix milli
	writes      int
}

type seenRecord struct {
	Key string `json:"key"`
	At  int64  `json:"at"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	rf, err := os.OpenFile(prefix+".replies.jsonl", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	s := &fileStore{
		log:         log,
		retention:   cfg.SeenRetention,
		replies:     rf,
		snapshotPth: prefix + ".seen.snapshot.json",
		seen:        map[string]int64{},
	}
	journalPath := prefix + ".seen.journal.jsonl"
	if err := loadSnapshot(s.snapshotPth, s.seen); err != nil && !os.IsNotExist(err) {
		log.Warn("seen snapshot unreadable, ignoring", logx.String("path", s.snapshotPth), logx.Err(err))
	}
	if err := replayJournal(journalPath, s.seen); err != nil && !os.IsNotExist(err) {
		log.Warn("seen journal unreadable, ignoring", logx.String("path", journalPath), logx.Err(err))
	}
	s.pruneLocked(time.Now())

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		_ = rf.Close()
		return nil, err
	}
	s.journal = jf
	log.Info("file storage opened", logx.String("prefix", prefix), logx.Int("seen", len(s.seen)))
	return s, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return nil
	}
	cerr := s.compactLocked()
	err1 := s.replies.Close()
	err2 := s.journal.Close()
	s.replies, s.journal = nil, nil
	for _, err := range []error{cerr, err1, err2} {
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *fileStore) AppendReply(_ context.Context, r ReplyRecord) error {
	if r.At.IsZero() {
		r.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.replies == nil {
		return ErrDisabled
	}
	return json.NewEncoder(s.replies).Encode(r)
}

func (s *fileStore) PutSeen(_ context.Context, key string, at time.Time) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	ms := at.UnixMilli()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return ErrDisabled
	}
	s.seen[key] = ms
	if err := json.NewEncoder(s.journal).Encode(seenRecord{Key: key, At: ms}); err != nil {
		return err
	}
	s.writes++
	if s.writes%compactEvery == 0 {
		if err := s.compactLocked(); err != nil {
			s.log.Debug("seen compaction failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) RecentSeen(_ context.Context, since time.Time) ([]string, error) {
	cut := since.UnixMilli()
	s.mu.Lock()
	if s.journal == nil {
		s.mu.Unlock()
		return nil, ErrDisabled
	}
	recs := make([]seenRecord, 0, len(s.seen))
	for k, at := range s.seen {
		if at >= cut {
			recs = append(recs, seenRecord{Key: k, At: at})
		}
	}
	s.mu.Unlock()

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].At != recs[j].At {
			return recs[i].At < recs[j].At
		}
		return recs[i].Key < recs[j].Key
	})
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Key
	}
	return out, nil
}

func (s *fileStore) pruneLocked(now time.Time) {
	cut := now.Add(-s.retention).UnixMilli()
	for k, at := range s.seen {
		if at < cut {
			delete(s.seen, k)
		}
	}
}

// compactLocked writes the pruned map to the snapshot and empties the journal.
func (s *fileStore) compactLocked() error {
	s.pruneLocked(time.Now())

	tmp, err := os.CreateTemp(filepath.Dir(s.snapshotPth), ".seen-*.tmp")
	if err != nil {
		return err
	}
	if err := json.NewEncoder(tmp).Encode(s.seen); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), s.snapshotPth); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := s.journal.Truncate(0); err != nil {
		return err
	}
	_, err = s.journal.Seek(0, 2)
	return err
}

func loadSnapshot(path string, out map[string]int64) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var m map[string]int64
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	for k, v := range m {
		out[k] = v
	}
	return nil
}

// replayJournal applies journal lines over out; torn lines are skipped.
func replayJournal(path string, out map[string]int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r seenRecord
		if json.Unmarshal(sc.Bytes(), &r) != nil || r.Key == "" {
			continue
		}
		out[r.Key] = r.At
	}
	return sc.Err()
}
