// Package reload holds the registry of auto-reloading handlers and the
// periodic walk that keeps them fresh.
package reload

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Handler is anything the registry can refresh.
// OnReload reports whether content or structure actually changed.
type Handler interface {
	Path() string
	Kind() Kind
	OnReload() (bool, error)
}

// Recorder 接收 reload 循环的指标
type Recorder interface {
	ObserveTick(d time.Duration)
	ReloadSucceeded(kind Kind)
	ReloadFailed(kind Kind)
	PanicRecovered()
	WorkingSet(n int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveTick(time.Duration) {}
func (nopRecorder) ReloadSucceeded(Kind) {}
func (nopRecorder) ReloadFailed(Kind) {}
func (nopRecorder) PanicRecovered() {}
func (nopRecorder) WorkingSet(int) {}

// live guards the one-registry-per-process rule.
var live atomic.Bool

// Registry owns the working set of auto-reloading handlers and the single
// recurring task that walks it.
type Registry struct {
	host      Host
	log       *zap.Logger
	scheduler Scheduler
	events    EventSink
	metrics   Recorder

	handlers *handlerSet
	closed   atomic.Bool

	mu       sync.Mutex // guards cancel/interval
	cancel   func()
	interval time.Duration

	walkMu sync.Mutex
}

// Option configures a Registry.
type Option func(*Registry)

// WithScheduler replaces the default TickerScheduler.
func WithScheduler(s Scheduler) Option {
	return func(r *Registry) {
		if s != nil {
			r.scheduler = s
		}
	}
}

// WithEventSink sets where reload-completed events are published.
func WithEventSink(sink EventSink) Option {
	return func(r *Registry) {
		if sink != nil {
			r.events = sink
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(rec Recorder) Option {
	return func(r *Registry) {
		if rec != nil {
			r.metrics = rec
		}
	}
}

// New creates the process registry. It fails with ErrAlreadyInitialized
// while another registry is live; Close releases the slot.
func New(host Host, log *zap.Logger, opts ...Option) (*Registry, error) {
	if host == nil {
		return nil, ErrNilHost
	}
	if !live.CompareAndSwap(false, true) {
		return nil, ErrAlreadyInitialized
	}
	if log == nil {
		log = zap.NewNop()
	}
	r := &Registry{
		host:      host,
		log:       log.Named("reload"),
		scheduler: TickerScheduler{},
		events:    discardSink{},
		metrics:   nopRecorder{},
		handlers:  newHandlerSet(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Registry) check() error {
	if r == nil || r.closed.Load() {
		return ErrNotInitialized
	}
	return nil
}

// Root returns the host data directory as of now.
func (r *Registry) Root() string {
	if r == nil {
		return ""
	}
	return r.host.DataDir()
}

// Resolve joins a handler-relative path onto the current root.
func (r *Registry) Resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(r.Root(), path)
}

// Logger returns the registry logger.
func (r *Registry) Logger() *zap.Logger {
	if r == nil {
		return zap.NewNop()
	}
	return r.log
}

// Events returns the sink handlers publish to.
func (r *Registry) Events() EventSink {
	if r == nil {
		return discardSink{}
	}
	return r.events
}

// AddHandler subscribes h to the periodic walk. Adding a present handler
// is a no-op.
func (r *Registry) AddHandler(h Handler) error {
	if err := r.check(); err != nil {
		return err
	}
	if r.handlers.add(h) {
		r.metrics.WorkingSet(r.handlers.len())
		r.log.Debug("handler added", zap.String("path", h.Path()))
	}
	return nil
}

// RemoveHandler unsubscribes h. Removing an absent handler is a no-op.
func (r *Registry) RemoveHandler(h Handler) error {
	if err := r.check(); err != nil {
		return err
	}
	if r.handlers.remove(h) {
		r.metrics.WorkingSet(r.handlers.len())
		r.log.Debug("handler removed", zap.String("path", h.Path()))
	}
	return nil
}

// ContainsHandler reports whether h is in the working set.
func (r *Registry) ContainsHandler(h Handler) (bool, error) {
	if err := r.check(); err != nil {
		return false, err
	}
	return r.handlers.contains(h), nil
}

// Len returns the working set size.
func (r *Registry) Len() int {
	if r.check() != nil {
		return 0
	}
	return r.handlers.len()
}

// StartAutoReloading starts the recurring walk. With enabled=false it stops
// any running loop and returns false. Starting while already running keeps
// the existing loop and its interval.
func (r *Registry) StartAutoReloading(interval time.Duration, enabled bool) (bool, error) {
	if err := r.check(); err != nil {
		return false, err
	}
	if !enabled {
		return false, r.StopAutoReloading()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return true, nil
	}
	if interval <= 0 {
		return false, ErrInvalidInterval
	}
	cancel, err := r.scheduler.Every(interval, func() {
		r.ReloadNow(context.Background())
	})
	if err != nil {
		return false, fmt.Errorf("schedule reload loop: %w", err)
	}
	r.cancel = cancel
	r.interval = interval
	r.log.Info("auto reloading started", zap.Duration("interval", interval))
	return true, nil
}

// StopAutoReloading cancels the recurring walk if one is running. A walk
// already in progress runs to completion.
func (r *Registry) StopAutoReloading() error {
	if r == nil {
		return ErrNotInitialized
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel == nil {
		return nil
	}
	r.cancel()
	r.cancel = nil
	r.interval = 0
	r.log.Info("auto reloading stopped")
	return nil
}

// IsAutoReloading reports whether the recurring walk is scheduled.
func (r *Registry) IsAutoReloading() bool {
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

// Interval returns the running loop interval, or 0 when stopped.
func (r *Registry) Interval() time.Duration {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.interval
}

// ReloadNow walks the working set once and returns the paths that reloaded.
// Walks are serialized. A failing or panicking handler is logged and the walk
// continues with the next one.
func (r *Registry) ReloadNow(ctx context.Context) []string {
	if r.check() != nil {
		return nil
	}
	r.walkMu.Lock()
	defer r.walkMu.Unlock()

	start := time.Now()
	var reloaded []string
	for _, h := range r.handlers.snapshot() {
		if ctx.Err() != nil {
			break
		}
		// removed by another handler earlier in this walk
		if !r.handlers.contains(h) {
			continue
		}
		ok, err := r.reloadOne(h)
		if err != nil {
			r.metrics.ReloadFailed(h.Kind())
			r.log.Warn("reload failed", zap.String("path", h.Path()), zap.String("kind", string(h.Kind())), zap.Error(err))
		}
		// a folder may report a partial reload together with child errors
		if ok {
			r.metrics.ReloadSucceeded(h.Kind())
			r.log.Debug("reloaded", zap.String("path", h.Path()), zap.String("kind", string(h.Kind())))
			reloaded = append(reloaded, h.Path())
		}
	}
	r.metrics.ObserveTick(time.Since(start))
	return reloaded
}

func (r *Registry) reloadOne(h Handler) (ok bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.metrics.PanicRecovered()
			ok, err = false, fmt.Errorf("panic in handler %s: %v", h.Path(), p)
		}
	}()
	return h.OnReload()
}

// Close stops the loop, drops every handler and releases the process slot.
// Any later call returns ErrNotInitialized.
func (r *Registry) Close() error {
	if r == nil || !r.closed.CompareAndSwap(false, true) {
		return ErrNotInitialized
	}
	_ = r.StopAutoReloading()
	r.handlers.clear()
	r.metrics.WorkingSet(0)
	live.Store(false)
	return nil
}
