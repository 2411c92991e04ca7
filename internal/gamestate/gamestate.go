// Package gamestate persists the small stream status record (game, location,
// death counter, level, play time) that chat commands read and mutate.
package gamestate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "zephyrbot/pkg/logx"
)

const (
	UnknownGame     = "Unbekannt"
	UnknownLocation = "Unbekannt"
	DefaultPlayTime = "00:00:00"
)

type State struct {
	Game     string `json:"game"`
	Location string `json:"location"`
	Deaths   int    `json:"deaths"`
	Level    int    `json:"level"`
	PlayTime string `json:"play_time"`
}

func Default() State {
	return State{Game: UnknownGame, Location: UnknownLocation, Level: 1, PlayTime: DefaultPlayTime}
}

// HasGame reports whether a game has been set.
func (s State) HasGame() bool { return s.Game != "" && s.Game != UnknownGame }

func (s *State) normalize() {
	if strings.TrimSpace(s.Game) == "" {
		s.Game = UnknownGame
	}
	if strings.TrimSpace(s.Location) == "" {
		s.Location = UnknownLocation
	}
	if s.Level <= 0 {
		s.Level = 1
	}
	if s.Deaths < 0 {
		s.Deaths = 0
	}
	if s.PlayTime == "" {
		s.PlayTime = DefaultPlayTime
	}
}

// diskState also accepts the German keys older bots wrote.
type diskState struct {
	Game     *string `json:"game"`
	Location *string `json:"location"`
	Deaths   *int    `json:"deaths"`
	Level    *int    `json:"level"`
	PlayTime *string `json:"play_time"`

	Spiel     *string `json:"spiel"`
	Ort       *string `json:"ort"`
	Tode      *int    `json:"tode"`
	Spielzeit *string `json:"spielzeit"`
}

func (d diskState) state() State {
	st := Default()
	pickStr(&st.Game, d.Game, d.Spiel)
	pickStr(&st.Location, d.Location, d.Ort)
	pickStr(&st.PlayTime, d.PlayTime, d.Spielzeit)
	pickInt(&st.Deaths, d.Deaths, d.Tode)
	pickInt(&st.Level, d.Level)
	st.normalize()
	return st
}

func pickStr(dst *string, vals ...*string) {
	for _, v := range vals {
		if v != nil {
			*dst = *v
			return
		}
	}
}

func pickInt(dst *int, vals ...*int) {
	for _, v := range vals {
		if v != nil {
			*dst = *v
			return
		}
	}
}

// Store reads and writes the state file. Writes replace the file atomically;
// concurrent writers in other processes are last-writer-wins.
type Store struct {
	path string
	log  logx.Logger
	mu   sync.Mutex
}

func NewStore(path string, log logx.Logger) *Store {
	return &Store{path: path, log: log}
}

func (s *Store) Path() string { return s.path }

// Load returns the stored state. A missing file yields the defaults; an
// unreadable one yields the defaults together with the error.
func (s *Store) Load() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() (State, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Default(), fmt.Errorf("read game state: %w", err)
	}
	var d diskState
	if err := json.Unmarshal(b, &d); err != nil {
		return Default(), fmt.Errorf("decode game state %s: %w", s.path, err)
	}
	return d.state(), nil
}

func (s *Store) Save(st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(st)
}

func (s *Store) saveLocked(st State) error {
	st.normalize()
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(append(b, '\n')); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// Update loads the state, applies fn and saves the result. A corrupt file
// is logged and replaced by the defaults before fn runs.
func (s *Store) Update(fn func(*State)) (before, after State, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before, err = s.loadLocked()
	if err != nil {
		s.log.Warn("game state unreadable, starting from defaults", logx.String("path", s.path), logx.Err(err))
	}
	after = before
	fn(&after)
	after.normalize()
	if err := s.saveLocked(after); err != nil {
		return before, after, fmt.Errorf("save game state: %w", err)
	}
	return before, after, nil
}
