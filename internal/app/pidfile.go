package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	logx "zephyrbot/pkg/logx"
)

// writePID records the process id for external supervision tooling.
func (a *App) writePID() error {
	path := strings.TrimSpace(a.cfg.Bot.PIDFile)
	if path == "" {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("pid file dir: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	a.pidOut = true
	a.log.Debug("pid file written", logx.String("path", path))
	return nil
}

// removePID deletes the pid file, but only if it still holds our pid.
func (a *App) removePID() {
	if !a.pidOut {
		return
	}
	path := strings.TrimSpace(a.cfg.Bot.PIDFile)
	b, err := os.ReadFile(path)
	if err == nil && strings.TrimSpace(string(b)) != strconv.Itoa(os.Getpid()) {
		a.log.Warn("pid file taken over by another process", logx.String("path", path))
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		a.log.Warn("remove pid file", logx.String("path", path), logx.Err(err))
	}
	a.pidOut = false
}
