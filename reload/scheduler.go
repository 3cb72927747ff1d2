package reload

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs task every interval until the returned cancel is called.
// cancel only prevents future runs; it does not wait for a run in progress.
type Scheduler interface {
	Every(interval time.Duration, task func()) (cancel func(), err error)
}

// TickerScheduler drives the task from a time.Ticker in its own goroutine.
// Runs never overlap.
type TickerScheduler struct{}

func (TickerScheduler) Every(interval time.Duration, task func()) (func(), error) {
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}
	ticker := time.NewTicker(interval)
	stop := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				// stop 与 tick 同时就绪时优先退出
				select {
				case <-stop:
					return
				default:
				}
				task()
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(stop) }) }, nil
}

// CronScheduler drives the task with robfig/cron. When Spec is empty the
// interval is scheduled as "@every <interval>"; cron rounds sub-second
// intervals up to one second. A custom Spec may carry an optional seconds field.
type CronScheduler struct {
	Spec   string
	Logger *zap.Logger
}

func (s CronScheduler) Every(interval time.Duration, task func()) (func(), error) {
	spec := s.Spec
	if spec == "" {
		if interval <= 0 {
			return nil, ErrInvalidInterval
		}
		spec = "@every " + interval.String()
	}
	log := s.Logger
	if log == nil {
		log = zap.NewNop()
	}
	cl := cron.PrintfLogger(zap.NewStdLog(log.Named("cron")))
	c := cron.New(
		cron.WithParser(cron.NewParser(cron.SecondOptional|cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		cron.WithLogger(cl),
	)
	if _, err := c.AddFunc(spec, task); err != nil {
		return nil, fmt.Errorf("cron spec %q: %w", spec, err)
	}
	c.Start()
	var once sync.Once
	return func() { once.Do(func() { c.Stop() }) }, nil
}
