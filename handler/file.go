package handler

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"hotfile-go/converter"
	"hotfile-go/reload"
)

// FileHandler owns the parsed value of one file.
//
// Object never blocks: the value is swapped atomically, so readers see the
// previous or the new value, never a partial one. Read, Write and OnReload are
// serialized per handler.
type FileHandler[T any] struct {
	FileHandle

	conv  converter.Converter[T]
	opts  options
	value atomic.Pointer[T]

	loadMu sync.Mutex

	// afterReload runs after a successful OnReload, outside loadMu.
	afterReload func()
}

// NewFileHandler creates a handler for path (relative to the registry root).
// No read happens until Read or the first stale OnReload.
func NewFileHandler[T any](reg *reload.Registry, path string, conv converter.Converter[T], autoReload bool, opts ...Option) (*FileHandler[T], error) {
	h, err := newFileHandler(reg, path, conv, opts...)
	if err != nil {
		return nil, err
	}
	if err := h.SetAutoReloading(autoReload); err != nil {
		return nil, err
	}
	return h, nil
}

func newFileHandler[T any](reg *reload.Registry, path string, conv converter.Converter[T], opts ...Option) (*FileHandler[T], error) {
	if reg == nil {
		return nil, reload.ErrNotInitialized
	}
	if conv == nil {
		return nil, fmt.Errorf("handler %s: converter is required", path)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	h := &FileHandler[T]{conv: conv, opts: o}
	h.init(reg, path, h, o)
	return h, nil
}

// Kind implements reload.Handler.
func (h *FileHandler[T]) Kind() reload.Kind { return reload.KindFile }

// Object returns the current value, or the zero value if nothing has been
// read successfully yet.
func (h *FileHandler[T]) Object() T {
	if p := h.value.Load(); p != nil {
		return *p
	}
	var zero T
	return zero
}

// Loaded reports whether a value has been read successfully.
func (h *FileHandler[T]) Loaded() bool { return h.value.Load() != nil }

// Read parses the file unconditionally and replaces the value. On failure the
// previous value and the staleness marker are left untouched. On success the
// marker is set to the modification time observed before the read, so a write
// racing the read shows up as stale on the next tick.
func (h *FileHandler[T]) Read() error {
	h.loadMu.Lock()
	defer h.loadMu.Unlock()
	stamp, err := h.load()
	if err != nil {
		return err
	}
	h.markFreshAt(stamp)
	return nil
}

func (h *FileHandler[T]) load() (int64, error) {
	if err := h.restoreDefault(); err != nil {
		return absent, err
	}
	stamp, err := h.ModTime()
	if err != nil {
		return absent, err
	}
	if stamp == absent {
		return absent, &IOError{Path: h.path, Op: "read", Err: fs.ErrNotExist}
	}
	raw, err := os.ReadFile(h.FullPath())
	if err != nil {
		return absent, &IOError{Path: h.path, Op: "read", Err: err}
	}
	v, err := h.conv.Parse(raw)
	if err != nil {
		return absent, &ParseError{Path: h.path, Err: err}
	}
	h.value.Store(&v)
	return stamp, nil
}

// OnReload re-reads the file if it is stale and reports whether it did.
//
// A deleted file is reported once as an IOError wrapping fs.ErrNotExist; the
// last good value is kept and the marker records the absence, so later ticks
// stay quiet until the file comes back.
func (h *FileHandler[T]) OnReload() (bool, error) {
	h.loadMu.Lock()
	stale, err := h.IsStale()
	if err != nil || !stale {
		h.loadMu.Unlock()
		return false, err
	}
	stamp, err := h.load()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			h.markFreshAt(absent)
		}
		h.loadMu.Unlock()
		return false, err
	}
	h.markFreshAt(stamp)
	h.loadMu.Unlock()

	if h.afterReload != nil {
		h.afterReload()
	}
	h.publish(reload.KindFile)
	return true, nil
}

// Write serializes v, replaces the file and marks the handler fresh so its
// own write does not trigger a reload.
func (h *FileHandler[T]) Write(v T) error {
	raw, err := h.conv.Serialize(v)
	if err != nil {
		return fmt.Errorf("serialize %s: %w", h.path, err)
	}

	h.loadMu.Lock()
	defer h.loadMu.Unlock()
	if err := writeAtomic(h.FullPath(), raw); err != nil {
		return &IOError{Path: h.path, Op: "write", Err: err}
	}
	h.value.Store(&v)
	return h.MarkFresh()
}

func (h *FileHandler[T]) restoreDefault() error {
	if h.opts.defaults == nil {
		return nil
	}
	full := h.FullPath()
	if _, err := statPath(full); !errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	raw, err := fs.ReadFile(h.opts.defaults, h.opts.defaultName)
	if err != nil {
		return &IOError{Path: h.path, Op: "open default", Err: err}
	}
	if err := writeAtomic(full, raw); err != nil {
		return &IOError{Path: h.path, Op: "write default", Err: err}
	}
	h.log.Info("default copied", zap.String("default", h.opts.defaultName))
	return nil
}

// writeAtomic writes through a hidden temp file in the target directory and
// renames it into place.
func writeAtomic(full string, raw []byte) error {
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(full)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), full)
}
