package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap/zapcore"

	"hotfile-go/converter"
)

// ErrInvalid 用于参数验证错误。
type ErrInvalid string

func (e ErrInvalid) Error() string { return string(e) }

// Validate ensures the configuration can be wired.
func Validate(cfg AppConfig) error {
	if cfg.Root == "" {
		return ErrInvalid("root is required")
	}
	if cfg.Reload.Enabled && cfg.Reload.Interval <= 0 {
		return ErrInvalid("reload.interval must be > 0")
	}
	switch cfg.Reload.Scheduler {
	case "", "ticker", "cron":
	default:
		return ErrInvalid(fmt.Sprintf("reload.scheduler %q must be ticker or cron", cfg.Reload.Scheduler))
	}
	if cfg.Trigger.Cooldown < 0 {
		return ErrInvalid("trigger.cooldown must be >= 0")
	}
	if _, err := zapcore.ParseLevel(cfg.Log.Level); err != nil {
		return ErrInvalid(fmt.Sprintf("log.level %q is not a valid level", cfg.Log.Level))
	}
	if cfg.Events.Throttle < 0 {
		return ErrInvalid("events.throttle must be >= 0")
	}
	if cfg.Events.Workers < 0 {
		return ErrInvalid("events.workers must be >= 0")
	}

	seen := make(map[string]bool, len(cfg.Watches))
	for i, w := range cfg.Watches {
		if err := validateWatch(w); err != nil {
			return ErrInvalid(fmt.Sprintf("watches[%d]: %s", i, err))
		}
		key := filepath.Clean(w.Path)
		if seen[key] {
			return ErrInvalid(fmt.Sprintf("watches[%d]: duplicate path %s", i, w.Path))
		}
		seen[key] = true
	}
	return nil
}

func validateWatch(w WatchConfig) error {
	if strings.TrimSpace(w.Path) == "" {
		return fmt.Errorf("path is required")
	}
	switch w.Kind {
	case KindFile, KindConfig:
		if _, err := w.Converter(); err != nil {
			return err
		}
	case KindFolder:
		if w.Format == "" {
			return fmt.Errorf("folder %s needs a format", w.Path)
		}
		if _, err := converter.ForFormat[map[string]any](w.Format); err != nil {
			return err
		}
	default:
		return fmt.Errorf("kind %q must be file, folder or config", w.Kind)
	}
	return nil
}

// Converter picks the map converter for the watch: the explicit format when
// set, otherwise the file extension.
func (w WatchConfig) Converter() (converter.Converter[map[string]any], error) {
	if w.Format != "" {
		return converter.ForFormat[map[string]any](w.Format)
	}
	return converter.Map(w.Path)
}
