package config

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWatcherSkipsOnStatError(t *testing.T) {
	orig := readFileInfo
	defer func() { readFileInfo = orig }()
	readFileInfo = func(string) (interface{ ModTime() time.Time }, error) {
		return nil, errors.New("boom")
	}
	w := Watcher{Path: "noop", Interval: 10 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately
	if err := w.Start(ctx, nil, nil); err == nil {
		t.Fatalf("expected context cancellation")
	}
}

func stubModTimes(t *testing.T, first, rest time.Time) {
	t.Helper()
	orig := readFileInfo
	t.Cleanup(func() { readFileInfo = orig })
	calls := 0
	readFileInfo = func(string) (interface{ ModTime() time.Time }, error) {
		calls++
		if calls == 1 {
			return fakeInfo{mod: first}, nil
		}
		return fakeInfo{mod: rest}, nil
	}
}

func TestWatcherTriggersOnChange(t *testing.T) {
	path := writeTempConfig(t, sampleConfig)
	now := time.Now()
	stubModTimes(t, now, now.Add(time.Second))

	w := Watcher{Path: path, Interval: 5 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := make(chan AppConfig, 1)
	go func() {
		_ = w.Start(ctx, func(cfg AppConfig) {
			select {
			case ch <- cfg:
			default:
			}
		}, nil)
	}()
	select {
	case cfg := <-ch:
		if cfg.Root != "/srv/data" {
			t.Fatalf("unexpected root %q", cfg.Root)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("expected update callback")
	}
}

func TestWatcherReportsInvalidConfig(t *testing.T) {
	path := writeTempConfig(t, "root: \"\"\n")
	now := time.Now()
	stubModTimes(t, now, now.Add(time.Second))

	w := Watcher{Path: path, Interval: 5 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errs := make(chan error, 1)
	go func() {
		_ = w.Start(ctx, func(AppConfig) { t.Error("invalid config must not be applied") }, func(err error) {
			select {
			case errs <- err:
			default:
			}
		})
	}()
	select {
	case err := <-errs:
		var inv ErrInvalid
		if !errors.As(err, &inv) {
			t.Fatalf("expected ErrInvalid, got %v", err)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("expected error callback")
	}
}

type fakeInfo struct{ mod time.Time }

func (f fakeInfo) ModTime() time.Time { return f.mod }
