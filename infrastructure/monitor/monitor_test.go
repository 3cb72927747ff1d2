package monitor

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"hotfile-go/reload"
)

func TestMonitorCounters(t *testing.T) {
	m := New(DefaultConfig())

	m.ReloadSucceeded(reload.KindFile)
	m.ReloadSucceeded(reload.KindFile)
	m.ReloadSucceeded(reload.KindFolder)
	m.ReloadFailed(reload.KindFolder)
	m.PanicRecovered()
	m.WorkingSet(3)
	m.RecordEvent("log", nil)
	m.RecordEvent("ws", errors.New("closed"))

	if got := testutil.ToFloat64(m.reloads.WithLabelValues("file")); got != 2 {
		t.Errorf("file reloads = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.reloads.WithLabelValues("folder")); got != 1 {
		t.Errorf("folder reloads = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.reloadErrors.WithLabelValues("folder")); got != 1 {
		t.Errorf("folder errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.panics); got != 1 {
		t.Errorf("panics = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.workingSet); got != 3 {
		t.Errorf("working set = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.events.WithLabelValues("ws", "error")); got != 1 {
		t.Errorf("ws errors = %v, want 1", got)
	}
}

func TestMonitorHandler(t *testing.T) {
	m := New(DefaultConfig())
	m.ObserveTick(3 * time.Millisecond)
	m.WorkingSet(1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		"hotfile_reload_tick_duration_seconds_count 1",
		"hotfile_reload_working_set_handlers 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
