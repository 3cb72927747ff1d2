package config

import (
	"context"
	"os"
	"time"
)

// Watcher polls the daemon config file and hands every valid new version
// to onUpdate. Invalid versions go to onError and the previous one stays.
type Watcher struct {
	Path     string
	Interval time.Duration
}

// Start blocks until ctx is done.
func (w Watcher) Start(ctx context.Context, onUpdate func(AppConfig), onError func(error)) error {
	if w.Interval <= 0 {
		w.Interval = 2 * time.Second
	}
	var lastMod time.Time
	if info, err := readFileInfo(w.Path); err == nil {
		lastMod = info.ModTime()
	}
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			info, err := readFileInfo(w.Path)
			if err != nil {
				continue
			}
			if !info.ModTime().Equal(lastMod) {
				lastMod = info.ModTime()
				cfg, err := LoadWithEnvOverrides(w.Path)
				if err != nil {
					if onError != nil {
						onError(err)
					}
					continue
				}
				if onUpdate != nil {
					onUpdate(cfg)
				}
			}
		}
	}
}

// readFileInfo is extracted for testing/mocking.
var readFileInfo = func(path string) (info interface{ ModTime() time.Time }, err error) {
	return os.Stat(path)
}
