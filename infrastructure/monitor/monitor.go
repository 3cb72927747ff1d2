// Package monitor exposes Prometheus metrics for the reload loop.
package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hotfile-go/reload"
)

var _ reload.Recorder = (*Monitor)(nil)

// Monitor Prometheus 指标收集器，实现 reload.Recorder
type Monitor struct {
	registry *prometheus.Registry

	reloads      *prometheus.CounterVec
	reloadErrors *prometheus.CounterVec
	panics       prometheus.Counter
	workingSet   prometheus.Gauge
	tickDuration prometheus.Histogram
	events       *prometheus.CounterVec
}

// Config 监控配置
type Config struct {
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Namespace: "hotfile",
		Subsystem: "reload",
	}
}

// New 创建新的Monitor实例，指标注册到私有 registry
func New(cfg Config) *Monitor {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Monitor{
		registry: reg,

		reloads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "reloads_total",
				Help:      "成功 reload 次数",
			},
			[]string{"kind"},
		),
		reloadErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "reload_errors_total",
				Help:      "reload 失败次数（解析或 IO 错误）",
			},
			[]string{"kind"},
		),
		panics: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "reload_panics_total",
			Help:      "handler panic 恢复次数",
		}),
		workingSet: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "working_set_handlers",
			Help:      "当前自动 reload 的 handler 数量",
		}),
		tickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "tick_duration_seconds",
			Help:      "单次遍历耗时分布（秒）",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "events_published_total",
				Help:      "发布的 reload 事件数",
			},
			[]string{"channel", "result"},
		),
	}
}

func (m *Monitor) ObserveTick(d time.Duration) {
	m.tickDuration.Observe(d.Seconds())
}

func (m *Monitor) ReloadSucceeded(kind reload.Kind) {
	m.reloads.WithLabelValues(string(kind)).Inc()
}

func (m *Monitor) ReloadFailed(kind reload.Kind) {
	m.reloadErrors.WithLabelValues(string(kind)).Inc()
}

func (m *Monitor) PanicRecovered() {
	m.panics.Inc()
}

func (m *Monitor) WorkingSet(n int) {
	m.workingSet.Set(float64(n))
}

// RecordEvent counts one event delivery attempt on a notify channel.
func (m *Monitor) RecordEvent(channel string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.events.WithLabelValues(channel, result).Inc()
}

// Registry 返回底层 registry（测试/组合用）
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回 /metrics HTTP handler
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
