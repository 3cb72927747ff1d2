package trigger

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"hotfile-go/converter"
	"hotfile-go/handler"
	"hotfile-go/reload"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingReloader struct {
	mu    sync.Mutex
	calls []time.Time
}

func (r *countingReloader) ReloadNow(context.Context) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, time.Now())
	return nil
}

func (r *countingReloader) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func waitFired(t *testing.T, w *Watcher) {
	t.Helper()
	select {
	case <-w.Fired():
	case <-time.After(3 * time.Second):
		t.Fatal("trigger did not fire")
	}
}

func TestNewRejectsNilReloader(t *testing.T) {
	_, err := New(nil, nil, DefaultConfig(), nil)
	assert.Error(t, err)
}

func TestWatcherFiresOnWrite(t *testing.T) {
	dir := t.TempDir()
	rec := &countingReloader{}
	w, err := New(rec, []string{dir}, Config{Enabled: true, Cooldown: 10 * time.Millisecond}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yml"), []byte("a: 1"), 0o644))
	waitFired(t, w)

	assert.GreaterOrEqual(t, rec.count(), 1)
	assert.False(t, w.LastReload().IsZero())
}

func TestWatcherCooldownDefersInsteadOfDropping(t *testing.T) {
	dir := t.TempDir()
	rec := &countingReloader{}
	cooldown := 300 * time.Millisecond
	w, err := New(rec, []string{dir}, Config{Enabled: true, Cooldown: cooldown}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	path := filepath.Join(dir, "a.yml")
	require.NoError(t, os.WriteFile(path, []byte("a: 1"), 0o644))
	waitFired(t, w)
	first := w.LastReload()

	// a burst inside the cooldown window collapses into one deferred wake
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("a: 2"), 0o644))
	}
	waitFired(t, w)

	assert.GreaterOrEqual(t, w.LastReload().Sub(first), cooldown-20*time.Millisecond)
}

func TestWatcherDisabled(t *testing.T) {
	dir := t.TempDir()
	rec := &countingReloader{}
	w, err := New(rec, []string{dir}, Config{Enabled: false}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yml"), []byte("a: 1"), 0o644))
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, w.Stop())
	assert.Equal(t, 0, rec.count())
}

func TestWatcherSkipsMissingDir(t *testing.T) {
	dir := t.TempDir()
	w, err := New(&countingReloader{}, []string{filepath.Join(dir, "nope"), dir}, DefaultConfig(), nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}

func TestWatcherStopsWithContext(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	w, err := New(&countingReloader{}, []string{dir}, DefaultConfig(), nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(ctx))

	cancel()
	assert.NoError(t, w.Stop())
}

type settings struct {
	Name string `yaml:"name"`
}

func TestWatcherWakesRegistry(t *testing.T) {
	root := t.TempDir()
	reg, err := reload.New(reload.Dir(root), nil)
	require.NoError(t, err)
	defer reg.Close()

	path := filepath.Join(root, "app.yml")
	require.NoError(t, os.WriteFile(path, []byte("name: first"), 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	h, err := handler.NewFileHandler[settings](reg, "app.yml", converter.YAML[settings]{}, true)
	require.NoError(t, err)
	defer h.Close()
	require.NoError(t, h.Read())
	require.Equal(t, "first", h.Object().Name)

	w, err := New(reg, []string{root}, Config{Enabled: true, Cooldown: 10 * time.Millisecond}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	// the registry loop is not running; only the trigger can pick this up
	require.NoError(t, os.WriteFile(path, []byte("name: second"), 0o644))
	require.Eventually(t, func() bool { return h.Object().Name == "second" }, 3*time.Second, 20*time.Millisecond)
}
