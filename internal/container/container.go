package container

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"hotfile-go/config"
	"hotfile-go/infrastructure/logger"
	"hotfile-go/infrastructure/monitor"
	"hotfile-go/infrastructure/notify"
	"hotfile-go/internal/trigger"
	"hotfile-go/reload"
)

// Container 依赖注入容器，管理所有组件的生命周期
type Container struct {
	// 配置
	cfg        *config.AppConfig
	configPath string

	// 基础设施
	logger   *logger.Logger
	monitor  *monitor.Monitor
	notifier *notify.Manager
	hub      *notify.WebSocketHub

	// 核心
	registry *reload.Registry
	loop     *registryComponent
	watches  []*Watch
	trigger  *trigger.Watcher

	// HTTP服务器
	metricsServer *httpServerComponent
	eventsServer  *httpServerComponent

	// 生命周期管理
	lifecycle *LifecycleManager
}

// New 从配置文件创建 Container，并在运行期间监听该文件
func New(configPath string) (*Container, error) {
	cfg, err := config.LoadWithEnvOverrides(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	c := NewFromConfig(cfg)
	c.configPath = configPath
	return c, nil
}

// NewFromConfig creates a Container from an already validated configuration.
func NewFromConfig(cfg config.AppConfig) *Container {
	return &Container{
		cfg:       &cfg,
		lifecycle: NewLifecycleManager(),
	}
}

// Build 构建所有组件。失败时已构建的部分会被释放。
func (c *Container) Build() (err error) {
	defer func() {
		if err != nil {
			_ = c.release()
		}
	}()

	if err := c.buildInfrastructure(); err != nil {
		return fmt.Errorf("build infrastructure failed: %w", err)
	}
	if err := c.buildNotifier(); err != nil {
		return fmt.Errorf("build notifier failed: %w", err)
	}
	if err := c.buildRegistry(); err != nil {
		return fmt.Errorf("build registry failed: %w", err)
	}
	if err := c.buildWatches(); err != nil {
		return fmt.Errorf("build watches failed: %w", err)
	}
	if err := c.buildTrigger(); err != nil {
		return fmt.Errorf("build trigger failed: %w", err)
	}

	c.registerLifecycleComponents()
	c.logger.Info("container built", zap.Int("watches", len(c.watches)), zap.Strings("components", c.lifecycle.Names()))
	return nil
}

func (c *Container) buildInfrastructure() error {
	var err error
	c.logger, err = logger.New(c.cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger failed: %w", err)
	}
	c.monitor = monitor.New(monitor.DefaultConfig())
	return nil
}

func (c *Container) buildNotifier() error {
	channels := []notify.Channel{
		notify.NewLogChannel("log", c.logger.Named("events")),
	}
	if c.cfg.Events.WebSocketAddr != "" {
		c.hub = notify.NewWebSocketHub("websocket", c.logger.Named("ws"))
		channels = append(channels, c.hub)
	}

	var err error
	c.notifier, err = notify.NewManager(channels, c.cfg.Events.Throttle, c.cfg.Events.Workers,
		notify.WithLogger(c.logger.Named("notify")),
		notify.WithRecorder(c.monitor),
	)
	return err
}

func (c *Container) buildRegistry() error {
	root, err := filepath.Abs(c.cfg.Root)
	if err != nil {
		return fmt.Errorf("resolve root: %w", err)
	}

	var scheduler reload.Scheduler = reload.TickerScheduler{}
	if c.cfg.Reload.Scheduler == "cron" {
		scheduler = reload.CronScheduler{Spec: c.cfg.Reload.Cron, Logger: c.logger.Logger}
	}

	c.registry, err = reload.New(reload.Dir(root), c.logger.Logger,
		reload.WithScheduler(scheduler),
		reload.WithEventSink(c.notifier),
		reload.WithMetrics(c.monitor),
	)
	if err != nil {
		return err
	}
	c.loop = &registryComponent{
		registry: c.registry,
		interval: c.cfg.Reload.Interval,
		enabled:  c.cfg.Reload.Enabled,
	}
	return nil
}

func (c *Container) buildWatches() error {
	for _, wc := range c.cfg.Watches {
		w, err := buildWatch(c.registry, wc, c.logger.Logger)
		if err != nil {
			return fmt.Errorf("watch %s: %w", wc.Path, err)
		}
		if w.err != nil {
			c.logger.Warn("initial read failed", zap.String("path", wc.Path), zap.Error(w.err))
		}
		c.watches = append(c.watches, w)
	}
	return nil
}

// watchDirs 返回需要 fsnotify 监听的目录：每个文件的父目录和每个文件夹本身
func (c *Container) watchDirs() []string {
	seen := map[string]bool{}
	for _, w := range c.watches {
		full := c.registry.Resolve(w.Config.Path)
		dir := filepath.Dir(full)
		if w.Config.Kind == config.KindFolder {
			dir = full
		}
		seen[dir] = true
	}
	dirs := make([]string, 0, len(seen))
	for d := range seen {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs
}

func (c *Container) buildTrigger() error {
	if !c.cfg.Trigger.Enabled {
		return nil
	}
	var err error
	c.trigger, err = trigger.New(c.registry, c.watchDirs(), trigger.Config{
		Enabled:  true,
		Cooldown: c.cfg.Trigger.Cooldown,
	}, c.logger.Named("trigger"))
	return err
}

func (c *Container) registerLifecycleComponents() {
	if c.cfg.Metrics.Addr != "" {
		c.metricsServer = &httpServerComponent{
			name:    "metrics_server",
			handler: c.monitor.Handler(),
			addr:    c.cfg.Metrics.Addr,
			logger:  c.logger,
		}
		c.lifecycle.Register(c.metricsServer)
	}
	if c.hub != nil {
		mux := http.NewServeMux()
		mux.Handle("/events", c.hub)
		c.eventsServer = &httpServerComponent{
			name:    "events_server",
			handler: mux,
			addr:    c.cfg.Events.WebSocketAddr,
			logger:  c.logger,
		}
		c.lifecycle.Register(c.eventsServer)
	}
	c.lifecycle.Register(c.loop)
	if c.trigger != nil {
		c.lifecycle.Register(&triggerComponent{watcher: c.trigger})
	}
	if c.configPath != "" {
		c.lifecycle.Register(&configWatchComponent{
			watcher:  config.Watcher{Path: c.configPath, Interval: c.cfg.Reload.Interval},
			onUpdate: c.applyConfig,
			onError: func(err error) {
				c.logger.LogError(err, map[string]interface{}{"action": "reload_daemon_config"})
			},
		})
	}
}

// applyConfig 热更新守护进程配置。只有 reload 周期和开关可以在运行时生效，
// 其余变化需要重启。
func (c *Container) applyConfig(next config.AppConfig) {
	changed, err := c.loop.Reschedule(next.Reload.Interval, next.Reload.Enabled)
	if err != nil {
		c.logger.LogError(err, map[string]interface{}{"action": "reschedule"})
		return
	}
	if changed {
		c.logger.Info("reload loop rescheduled",
			zap.Duration("interval", next.Reload.Interval),
			zap.Bool("enabled", next.Reload.Enabled))
	}
	if len(next.Watches) != len(c.cfg.Watches) || next.Root != c.cfg.Root {
		c.logger.Warn("watch list or root changed; restart required")
	}
}

func (c *Container) Start(ctx context.Context) error {
	c.logger.Info("starting container...")

	if err := c.lifecycle.StartAll(ctx); err != nil {
		return fmt.Errorf("start failed: %w", err)
	}

	c.logger.Info("container started")
	return nil
}

// Stop 停止所有组件并释放 registry。之后 Container 不可再用。
func (c *Container) Stop() error {
	c.logger.Info("stopping container...")

	err := c.lifecycle.StopAll()
	err = multierr.Append(err, c.release())
	if err != nil {
		c.logger.LogError(err, map[string]interface{}{"action": "stop"})
	}
	_ = c.logger.Close()
	return err
}

func (c *Container) release() error {
	var err error
	if c.trigger != nil {
		err = multierr.Append(err, c.trigger.Stop())
	}
	for _, w := range c.watches {
		err = multierr.Append(err, w.Close())
	}
	c.watches = nil
	if c.registry != nil {
		err = multierr.Append(err, c.registry.Close())
		c.registry = nil
	}
	if c.notifier != nil {
		err = multierr.Append(err, c.notifier.Close(5*time.Second))
		c.notifier = nil
	}
	if c.hub != nil {
		err = multierr.Append(err, c.hub.Close())
	}
	return err
}

func (c *Container) HealthCheck() error {
	return c.lifecycle.CheckHealth()
}

// Check reports the status of every watch without starting anything.
func (c *Container) Check() []WatchStatus {
	out := make([]WatchStatus, 0, len(c.watches))
	for _, w := range c.watches {
		out = append(out, w.Status())
	}
	return out
}

// Watches returns the built watches in configuration order.
func (c *Container) Watches() []*Watch { return c.watches }

// Registry exposes the reload registry.
func (c *Container) Registry() *reload.Registry { return c.registry }

// Monitor exposes the metrics collector.
func (c *Container) Monitor() *monitor.Monitor { return c.monitor }

// Logger exposes the container logger.
func (c *Container) Logger() *logger.Logger { return c.logger }

// MetricsAddr returns the bound metrics address once started.
func (c *Container) MetricsAddr() net.Addr {
	if c.metricsServer == nil {
		return nil
	}
	return c.metricsServer.Addr()
}

// EventsAddr returns the bound websocket address once started.
func (c *Container) EventsAddr() net.Addr {
	if c.eventsServer == nil {
		return nil
	}
	return c.eventsServer.Addr()
}

// Subscribers returns the number of connected websocket clients.
func (c *Container) Subscribers() int {
	if c.hub == nil {
		return 0
	}
	return c.hub.Clients()
}
