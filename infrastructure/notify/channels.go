package notify

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"hotfile-go/reload"
)

// LogChannel 把事件写入 zap 日志
type LogChannel struct {
	logger *zap.Logger
	name   string
}

// NewLogChannel 创建日志通道
func NewLogChannel(name string, logger *zap.Logger) *LogChannel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogChannel{
		logger: logger,
		name:   name,
	}
}

// Send 记录事件
func (c *LogChannel) Send(e reload.Event) error {
	c.logger.Info("file reloaded",
		zap.String("path", e.Path),
		zap.String("kind", string(e.Kind)),
		zap.Time("at", e.At),
	)
	return nil
}

// Name 返回通道名称
func (c *LogChannel) Name() string {
	return c.name
}

var errMock = errors.New("mock error")

// MockChannel 模拟通道（用于测试）
type MockChannel struct {
	name      string
	events    []reload.Event
	shouldErr bool
	delay     time.Duration
	mu        sync.Mutex
}

// NewMockChannel 创建模拟通道
func NewMockChannel(name string) *MockChannel {
	return &MockChannel{name: name}
}

// Send 记录事件（用于测试验证）
func (c *MockChannel) Send(e reload.Event) error {
	c.mu.Lock()
	delay := c.delay
	c.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shouldErr {
		return errMock
	}
	c.events = append(c.events, e)
	return nil
}

// Name 返回通道名称
func (c *MockChannel) Name() string {
	return c.name
}

// Events 获取所有接收到的事件
func (c *MockChannel) Events() []reload.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]reload.Event, len(c.events))
	copy(out, c.events)
	return out
}

// SetShouldError 设置是否返回错误
func (c *MockChannel) SetShouldError(shouldErr bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shouldErr = shouldErr
}

// SetDelay slows every Send down by d.
func (c *MockChannel) SetDelay(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delay = d
}

// Clear 清空记录
func (c *MockChannel) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}

// Count 返回接收到的事件数量
func (c *MockChannel) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}
