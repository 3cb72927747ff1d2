// Package handler tracks files and directories on disk, parses them through a
// converter and refreshes the parsed content when their modification time
// moves.
package handler

import (
	"errors"
	"io/fs"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"hotfile-go/reload"
)

// absent is both the "never observed" marker and the mtime of a missing path.
const absent int64 = 0

// statPath is swapped in tests to simulate filesystem failures.
var statPath = os.Stat

// FileHandle is the identity and staleness primitive shared by FileHandler
// and FolderHandler. Its path is resolved against the registry root on every
// access.
type FileHandle struct {
	reg  *reload.Registry
	path string
	self reload.Handler
	log  *zap.Logger

	marker atomic.Int64

	flagMu     sync.Mutex
	autoReload bool
}

func (h *FileHandle) init(reg *reload.Registry, path string, self reload.Handler, o options) {
	h.reg = reg
	h.path = path
	h.self = self
	h.log = o.logger
	if h.log == nil {
		h.log = reg.Logger()
	}
	h.log = h.log.With(zap.String("path", path))
}

// Path returns the path as given, relative to the registry root.
func (h *FileHandle) Path() string { return h.path }

// FullPath resolves Path against the current registry root.
func (h *FileHandle) FullPath() string { return h.reg.Resolve(h.path) }

// Registry returns the registry this handle subscribes to.
func (h *FileHandle) Registry() *reload.Registry { return h.reg }

// ModTime returns the current modification time in Unix nanoseconds, or 0
// when the path does not exist.
func (h *FileHandle) ModTime() (int64, error) {
	info, err := statPath(h.FullPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return absent, nil
		}
		return absent, &IOError{Path: h.path, Op: "stat", Err: err}
	}
	ns := info.ModTime().UnixNano()
	if ns == absent {
		// keep epoch-stamped files distinguishable from a missing one
		ns = 1
	}
	return ns, nil
}

// Marker returns the last observed modification time, 0 if never observed.
func (h *FileHandle) Marker() int64 { return h.marker.Load() }

// IsStale reports whether the modification time moved since the last
// MarkFresh. A deleted file is stale until its absence is recorded. On an
// unexpected stat failure it reports false together with the error.
func (h *FileHandle) IsStale() (bool, error) {
	cur, err := h.ModTime()
	if err != nil {
		return false, err
	}
	return cur != h.marker.Load(), nil
}

// MarkFresh records the current modification time as observed.
func (h *FileHandle) MarkFresh() error {
	cur, err := h.ModTime()
	if err != nil {
		return err
	}
	h.marker.Store(cur)
	return nil
}

func (h *FileHandle) markFreshAt(stamp int64) { h.marker.Store(stamp) }

// Exists reports whether the path exists.
func (h *FileHandle) Exists() bool {
	_, err := statPath(h.FullPath())
	return err == nil
}

// IsEmpty reports whether the file has zero length. Missing files count as
// empty.
func (h *FileHandle) IsEmpty() bool {
	info, err := statPath(h.FullPath())
	return err != nil || info.Size() == 0
}

// IsDir reports whether the path is a directory.
func (h *FileHandle) IsDir() bool {
	info, err := statPath(h.FullPath())
	return err == nil && info.IsDir()
}

// IsAutoReloading reports whether the handle is in the registry working set.
func (h *FileHandle) IsAutoReloading() bool {
	h.flagMu.Lock()
	defer h.flagMu.Unlock()
	return h.autoReload
}

// SetAutoReloading adds or removes the handler from the registry working
// set. Setting the current value again is a no-op.
func (h *FileHandle) SetAutoReloading(enabled bool) error {
	h.flagMu.Lock()
	defer h.flagMu.Unlock()
	if h.autoReload == enabled {
		return nil
	}
	var err error
	if enabled {
		err = h.reg.AddHandler(h.self)
	} else {
		err = h.reg.RemoveHandler(h.self)
	}
	// a closed registry has already dropped every handler
	if err != nil && (enabled || !errors.Is(err, reload.ErrNotInitialized)) {
		return err
	}
	h.autoReload = enabled
	return nil
}

// Close deregisters the handler. Call it before dropping the last reference
// to an auto-reloading handler.
func (h *FileHandle) Close() error {
	return h.SetAutoReloading(false)
}

func (h *FileHandle) publish(kind reload.Kind) {
	h.reg.Events().Publish(reload.Event{Path: h.path, Kind: kind, At: time.Now()})
}
