// Package trigger wakes the reload registry as soon as fsnotify reports a
// change under a watched directory, instead of waiting for the next tick.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Reloader is the part of the registry the trigger drives.
type Reloader interface {
	ReloadNow(ctx context.Context) []string
}

// Config 触发器配置
type Config struct {
	Enabled  bool          // 是否启用
	Cooldown time.Duration // 两次唤醒之间的最小间隔
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		Enabled:  true,
		Cooldown: 500 * time.Millisecond,
	}
}

// Watcher 监听目录变化并唤醒 registry
type Watcher struct {
	config   Config
	dirs     []string
	reloader Reloader
	watcher  *fsnotify.Watcher
	log      *zap.Logger

	mu         sync.Mutex
	lastReload time.Time
	pending    *time.Timer
	ctx        context.Context
	firing     sync.WaitGroup

	fired    chan struct{}
	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
	started  bool
}

// New 创建触发器
func New(reloader Reloader, dirs []string, cfg Config, logger *zap.Logger) (*Watcher, error) {
	if reloader == nil {
		return nil, errors.New("trigger: nil reloader")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Watcher{
		config:   cfg,
		dirs:     dirs,
		reloader: reloader,
		watcher:  watcher,
		log:      logger,
		fired:    make(chan struct{}, 1),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}, nil
}

// Start 开始监听。不存在的目录会被跳过并记录警告。
func (w *Watcher) Start(ctx context.Context) error {
	if !w.config.Enabled {
		return nil
	}

	watched := 0
	for _, dir := range w.dirs {
		if err := w.watcher.Add(dir); err != nil {
			if errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err) {
				w.log.Warn("trigger: directory missing, not watched", zap.String("dir", dir))
				continue
			}
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		watched++
	}

	w.mu.Lock()
	w.ctx = ctx
	w.started = true
	w.mu.Unlock()

	w.log.Info("trigger started", zap.Int("dirs", watched), zap.Duration("cooldown", w.config.Cooldown))
	go w.watch(ctx)
	return nil
}

// Stop 停止监听，取消挂起的唤醒
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopChan)

		w.mu.Lock()
		started := w.started
		if w.pending != nil && w.pending.Stop() {
			w.firing.Done()
		}
		w.pending = nil
		w.mu.Unlock()

		if started {
			<-w.doneChan
		}
		w.firing.Wait()
		err = w.watcher.Close()
	})
	return err
}

// LastReload 最后一次唤醒时间
func (w *Watcher) LastReload() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastReload
}

// Fired signals (non-blocking, coalesced) every time the trigger woke the
// registry.
func (w *Watcher) Fired() <-chan struct{} { return w.fired }

func (w *Watcher) watch(ctx context.Context) {
	defer close(w.doneChan)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Chmod) != 0 {
				w.handleChange(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher error", zap.Error(err))
		}
	}
}

// handleChange 在冷却期内的变化不会丢失：推迟到冷却结束后再唤醒一次
func (w *Watcher) handleChange(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending != nil {
		return
	}
	wait := w.config.Cooldown - time.Since(w.lastReload)
	if wait < 0 {
		wait = 0
	}
	w.log.Debug("change detected", zap.String("file", name), zap.Duration("delay", wait))
	w.firing.Add(1)
	w.pending = time.AfterFunc(wait, w.fire)
}

func (w *Watcher) fire() {
	defer w.firing.Done()

	select {
	case <-w.stopChan:
		return
	default:
	}

	w.mu.Lock()
	w.pending = nil
	w.lastReload = time.Now()
	ctx := w.ctx
	w.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	reloaded := w.reloader.ReloadNow(ctx)
	if len(reloaded) > 0 {
		w.log.Debug("trigger reloaded handlers", zap.Strings("paths", reloaded))
	}

	select {
	case w.fired <- struct{}{}:
	default:
	}
}
