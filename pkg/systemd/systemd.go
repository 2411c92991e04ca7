// Package systemd speaks the sd_notify protocol when the process runs as a
// Type=notify unit. Outside systemd every call is a no-op.
package systemd

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "zephyrbot/pkg/logx"
)

// Ready reports startup completion. sent is false when NOTIFY_SOCKET is unset.
func Ready() (sent bool, err error) { return daemon.SdNotify(false, daemon.SdNotifyReady) }

// Stopping reports the beginning of shutdown.
func Stopping() (sent bool, err error) { return daemon.SdNotify(false, daemon.SdNotifyStopping) }

// Status sets the free-form status line shown by systemctl status.
func Status(text string) (sent bool, err error) {
	return daemon.SdNotify(false, "STATUS="+text)
}

// WatchdogInterval returns how often to ping, half the unit's WatchdogSec.
// Zero means the watchdog is not enabled for this process.
func WatchdogInterval() time.Duration {
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil || d <= 0 {
		return 0
	}
	return d / 2
}

// RunWatchdog pings the watchdog until ctx ends. healthy, when set, can
// withhold a ping so systemd restarts a wedged process.
func RunWatchdog(ctx context.Context, every time.Duration, healthy func() bool, log logx.Logger) error {
	if every <= 0 {
		return nil
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if healthy != nil && !healthy() {
				log.Warn("watchdog ping withheld")
				continue
			}
			if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
				log.Debug("watchdog notify failed", logx.Err(err))
			}
		}
	}
}
