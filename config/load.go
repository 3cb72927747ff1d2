package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"hotfile-go/infrastructure/logger"
)

// AppConfig holds the daemon configuration.
type AppConfig struct {
	Root    string        `yaml:"root"`
	Reload  ReloadConfig  `yaml:"reload"`
	Trigger TriggerConfig `yaml:"trigger"`
	Log     logger.Config `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	Events  EventsConfig  `yaml:"events"`
	Watches []WatchConfig `yaml:"watches"`
}

type ReloadConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Interval  time.Duration `yaml:"interval"`  // 轮询周期，如 "2s"
	Scheduler string        `yaml:"scheduler"` // ticker 或 cron
	Cron      string        `yaml:"cron"`      // scheduler=cron 时可选的自定义表达式
}

type TriggerConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Cooldown time.Duration `yaml:"cooldown"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // 为空则不启动 /metrics
}

type EventsConfig struct {
	WebSocketAddr string        `yaml:"websocketAddr"` // 为空则不启动 websocket 推送
	Throttle      time.Duration `yaml:"throttle"`      // 同一路径的最小推送间隔
	Workers       int           `yaml:"workers"`
}

// Watch kinds.
const (
	KindFile   = "file"
	KindFolder = "folder"
	KindConfig = "config"
)

// WatchConfig 描述一个被监听的文件或目录，路径相对 root。
type WatchConfig struct {
	Path       string `yaml:"path"`
	Kind       string `yaml:"kind"`
	Format     string `yaml:"format"` // yaml/json/toml，文件可按扩展名推断
	AutoReload *bool  `yaml:"autoReload"`
}

// AutoReloadEnabled reports the watch flag; unset means true.
func (w WatchConfig) AutoReloadEnabled() bool {
	return w.AutoReload == nil || *w.AutoReload
}

// Default returns the configuration used for every key the file omits.
func Default() AppConfig {
	return AppConfig{
		Root: ".",
		Reload: ReloadConfig{
			Enabled:   true,
			Interval:  2 * time.Second,
			Scheduler: "ticker",
		},
		Trigger: TriggerConfig{
			Enabled:  false,
			Cooldown: 500 * time.Millisecond,
		},
		Log: logger.DefaultConfig(),
		Events: EventsConfig{
			Throttle: 0,
			Workers:  4,
		},
	}
}

// Load reads YAML config from path on top of Default and validates it.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides fields from HOTFILE_* env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, Validate(cfg)
}

func applyEnv(cfg *AppConfig) error {
	if v := os.Getenv("HOTFILE_ROOT"); v != "" {
		cfg.Root = v
	}
	if v := os.Getenv("HOTFILE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("HOTFILE_INTERVAL: %w", err)
		}
		cfg.Reload.Interval = d
	}
	if v := os.Getenv("HOTFILE_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("HOTFILE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	return nil
}
