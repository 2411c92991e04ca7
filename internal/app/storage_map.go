package app

import (
	"strings"
	"time"

	"zephyrbot/internal/config"
	"zephyrbot/internal/storage"
)

// mapStorageConfig translates the storage section. enabled is false for
// the none driver.
func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	retention, err := config.DurationOr("storage.seen_retention", sc.SeenRetention, storage.DefaultSeenRetention)
	if err != nil {
		return storage.Config{}, false, err
	}
	busy, err := config.DurationOr("storage.busy_timeout", sc.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, false, err
	}
	return storage.Config{
		Driver:        driver,
		Path:          strings.TrimSpace(sc.Path),
		SeenRetention: retention,
		BusyTimeout:   busy,
	}, true, nil
}
