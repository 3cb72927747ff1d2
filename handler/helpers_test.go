package handler

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"hotfile-go/reload"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// eventLog 收集 handler 发布的 reload 事件
type eventLog struct {
	mu     sync.Mutex
	events []reload.Event
}

func (l *eventLog) Publish(e reload.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) paths() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Path)
	}
	return out
}

func newRegistry(t *testing.T) (*reload.Registry, string, *eventLog) {
	t.Helper()
	root := t.TempDir()
	events := &eventLog{}
	reg, err := reload.New(reload.Dir(root), nil, reload.WithEventSink(events))
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })
	return reg, root, events
}

var baseTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// writeFile writes content and pins the mtime to baseTime+offset so staleness
// checks do not depend on filesystem timestamp resolution.
func writeFile(t *testing.T, path, content string, offset time.Duration) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	touch(t, path, offset)
}

func touch(t *testing.T, path string, offset time.Duration) {
	t.Helper()
	ts := baseTime.Add(offset)
	require.NoError(t, os.Chtimes(path, ts, ts))
}

// testContext 等价于 Go 1.24 的 t.Context()：测试结束时取消
func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
