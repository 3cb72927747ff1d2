package container

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"hotfile-go/config"
	"hotfile-go/infrastructure/logger"
	"hotfile-go/internal/trigger"
	"hotfile-go/reload"
)

// Lifecycle 生命周期接口
type Lifecycle interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Health() error
}

// LifecycleManager 生命周期管理器
type LifecycleManager struct {
	components []Lifecycle
	mu         sync.RWMutex
}

// NewLifecycleManager 创建新的生命周期管理器
func NewLifecycleManager() *LifecycleManager {
	return &LifecycleManager{
		components: make([]Lifecycle, 0),
	}
}

// Register 注册组件
func (m *LifecycleManager) Register(component Lifecycle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components = append(m.components, component)
}

// Names lists registered components in start order.
func (m *LifecycleManager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.components))
	for _, c := range m.components {
		names = append(names, c.Name())
	}
	return names
}

// StartAll 按顺序启动所有组件
func (m *LifecycleManager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i, component := range m.components {
		if err := component.Start(ctx); err != nil {
			// 启动失败，回滚已启动的组件
			for j := i - 1; j >= 0; j-- {
				_ = m.components[j].Stop()
			}
			return fmt.Errorf("start %s failed: %w", component.Name(), err)
		}
	}
	return nil
}

// StopAll 逆序停止所有组件，汇总所有错误
func (m *LifecycleManager) StopAll() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var err error
	for i := len(m.components) - 1; i >= 0; i-- {
		err = multierr.Append(err, m.components[i].Stop())
	}
	return err
}

// CheckHealth 检查所有组件健康状态
func (m *LifecycleManager) CheckHealth() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, component := range m.components {
		if err := component.Health(); err != nil {
			return fmt.Errorf("%s unhealthy: %w", component.Name(), err)
		}
	}
	return nil
}

// httpServerComponent HTTP服务器组件。Start 先绑定端口，绑定失败直接返回。
type httpServerComponent struct {
	name    string
	handler http.Handler
	addr    string
	logger  *logger.Logger
	server  *http.Server
	bound   net.Addr
	done    chan struct{}
	started bool
	mu      sync.Mutex
}

func (h *httpServerComponent) Name() string { return h.name }

func (h *httpServerComponent) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return nil
	}

	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("%s listen %s: %w", h.name, h.addr, err)
	}
	srv := &http.Server{
		Handler:           h.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	h.server = srv
	h.bound = ln.Addr()
	h.done = make(chan struct{})

	// 在后台启动服务器
	go func(done chan struct{}) {
		defer close(done)
		h.logger.Info("http server listening", zap.String("component", h.name), zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.LogError(err, map[string]interface{}{
				"component": h.name,
				"action":    "serve",
			})
		}
	}(h.done)

	h.started = true
	return nil
}

func (h *httpServerComponent) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started || h.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := h.server.Shutdown(ctx)
	<-h.done
	h.started = false
	if err != nil {
		return fmt.Errorf("%s shutdown failed: %w", h.name, err)
	}

	h.logger.Info("http server stopped", zap.String("component", h.name))
	return nil
}

func (h *httpServerComponent) Health() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started {
		return fmt.Errorf("%s not started", h.name)
	}
	return nil
}

// Addr returns the bound address once started.
func (h *httpServerComponent) Addr() net.Addr {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.bound
}

// registryComponent 把 registry 的自动轮询纳入生命周期
type registryComponent struct {
	registry *reload.Registry
	interval time.Duration
	enabled  bool
	mu       sync.Mutex
}

func (r *registryComponent) Name() string { return "reload_loop" }

func (r *registryComponent) Start(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.registry.StartAutoReloading(r.interval, r.enabled)
	return err
}

// Reschedule restarts the loop when the interval or the enabled flag changed.
func (r *registryComponent) Reschedule(interval time.Duration, enabled bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.interval == interval && r.enabled == enabled {
		return false, nil
	}
	if err := r.registry.StopAutoReloading(); err != nil {
		return false, err
	}
	r.interval, r.enabled = interval, enabled
	_, err := r.registry.StartAutoReloading(interval, enabled)
	return true, err
}

func (r *registryComponent) Stop() error {
	err := r.registry.StopAutoReloading()
	if errors.Is(err, reload.ErrNotInitialized) {
		return nil
	}
	return err
}

func (r *registryComponent) Health() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enabled && !r.registry.IsAutoReloading() {
		return errors.New("reload loop not running")
	}
	return nil
}

// triggerComponent fsnotify 触发器
type triggerComponent struct {
	watcher *trigger.Watcher
}

func (t *triggerComponent) Name() string { return "fs_trigger" }

func (t *triggerComponent) Start(ctx context.Context) error { return t.watcher.Start(ctx) }

func (t *triggerComponent) Stop() error { return t.watcher.Stop() }

func (t *triggerComponent) Health() error { return nil }

// configWatchComponent 监听守护进程自身的配置文件
type configWatchComponent struct {
	watcher  config.Watcher
	onUpdate func(config.AppConfig)
	onError  func(error)
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex
}

func (c *configWatchComponent) Name() string { return "config_watch" }

func (c *configWatchComponent) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		_ = c.watcher.Start(ctx, c.onUpdate, c.onError)
	}(c.done)
	return nil
}

func (c *configWatchComponent) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil {
		return nil
	}
	c.cancel()
	<-c.done
	c.cancel = nil
	return nil
}

func (c *configWatchComponent) Health() error { return nil }
