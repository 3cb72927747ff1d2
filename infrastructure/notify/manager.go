package notify

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"hotfile-go/reload"
)

// Channel 事件通道接口
type Channel interface {
	Send(e reload.Event) error
	Name() string
}

// Recorder 统计每个通道的投递结果
type Recorder interface {
	RecordEvent(channel string, err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordEvent(string, error) {}

// Manager 把 reload 事件分发到所有通道。实现 reload.EventSink。
type Manager struct {
	channels []Channel
	throttle *Throttler
	pool     *ants.Pool
	log      *zap.Logger
	rec      Recorder
	inflight sync.WaitGroup
	mu       sync.RWMutex
}

// Throttler 按 key 限流
type Throttler struct {
	lastSent map[string]time.Time
	interval time.Duration
	mu       sync.RWMutex
}

// NewThrottler 创建限流器
func NewThrottler(interval time.Duration) *Throttler {
	return &Throttler{
		lastSent: make(map[string]time.Time),
		interval: interval,
	}
}

// Allow 检查是否允许发送（限流）
func (t *Throttler) Allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	lastTime, exists := t.lastSent[key]

	if !exists || now.Sub(lastTime) >= t.interval {
		t.lastSent[key] = now
		return true
	}

	return false
}

// Reset 重置单个 key
func (t *Throttler) Reset(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.lastSent, key)
}

// Clear 清空所有限流记录
func (t *Throttler) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSent = make(map[string]time.Time)
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for dropped or failed deliveries.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithRecorder counts deliveries per channel.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) {
		if r != nil {
			m.rec = r
		}
	}
}

// NewManager 创建事件管理器。workers 为异步投递的协程池大小。
func NewManager(channels []Channel, throttleInterval time.Duration, workers int, opts ...Option) (*Manager, error) {
	if workers <= 0 {
		workers = 4
	}
	m := &Manager{
		channels: channels,
		throttle: NewThrottler(throttleInterval),
		log:      zap.NewNop(),
		rec:      nopRecorder{},
	}
	for _, opt := range opts {
		opt(m)
	}

	pool, err := ants.NewPool(workers,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(p interface{}) {
			m.log.Error("notify worker panic", zap.Any("panic", p))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create notify pool: %w", err)
	}
	m.pool = pool
	return m, nil
}

// Publish 异步投递事件，从不阻塞 reload 循环。池满时丢弃并记录。
func (m *Manager) Publish(e reload.Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	if !m.throttle.Allow(e.Path) {
		return
	}

	m.inflight.Add(1)
	err := m.pool.Submit(func() {
		defer m.inflight.Done()
		if err := m.Dispatch(e); err != nil {
			m.log.Warn("event delivery failed", zap.String("path", e.Path), zap.Error(err))
		}
	})
	if err != nil {
		m.inflight.Done()
		m.rec.RecordEvent("pool", err)
		m.log.Warn("event dropped", zap.String("path", e.Path), zap.Error(err))
	}
}

// Dispatch 同步发送到所有通道。全部失败时返回最后一个错误。
func (m *Manager) Dispatch(e reload.Event) error {
	m.mu.RLock()
	channels := make([]Channel, len(m.channels))
	copy(channels, m.channels)
	m.mu.RUnlock()

	var lastErr error
	successCount := 0

	for _, ch := range channels {
		err := ch.Send(e)
		m.rec.RecordEvent(ch.Name(), err)
		if err != nil {
			lastErr = fmt.Errorf("channel %s failed: %w", ch.Name(), err)
		} else {
			successCount++
		}
	}

	if successCount == 0 && lastErr != nil {
		return lastErr
	}
	return nil
}

// Wait blocks until every submitted delivery has finished.
func (m *Manager) Wait() {
	m.inflight.Wait()
}

// Close drains in-flight deliveries and releases the pool.
func (m *Manager) Close(timeout time.Duration) error {
	m.inflight.Wait()
	if err := m.pool.ReleaseTimeout(timeout); err != nil && !errors.Is(err, ants.ErrPoolClosed) {
		return fmt.Errorf("release notify pool: %w", err)
	}
	return nil
}

// AddChannel 添加通道
func (m *Manager) AddChannel(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, ch)
}

// RemoveChannel 移除通道
func (m *Manager) RemoveChannel(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	filtered := make([]Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		if ch.Name() != name {
			filtered = append(filtered, ch)
		}
	}
	m.channels = filtered
}

// GetChannels 获取所有通道名
func (m *Manager) GetChannels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.channels))
	for _, ch := range m.channels {
		names = append(names, ch.Name())
	}
	return names
}

// ResetThrottle 重置限流器
func (m *Manager) ResetThrottle() {
	m.throttle.Clear()
}
