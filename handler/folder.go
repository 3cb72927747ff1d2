package handler

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"hotfile-go/converter"
	"hotfile-go/reload"
)

// Entry is one child of a FolderHandler.
type Entry[T any] struct {
	Path   string
	Value  T
	Loaded bool
}

// FolderHandler owns one FileHandler per file in a directory.
//
// A directory's mtime moves when entries are added or removed, not when an
// existing file is rewritten. OnReload uses that: a moved directory mtime
// rebuilds the whole child list, otherwise each child checks itself.
type FolderHandler[T any] struct {
	FileHandle

	conv     converter.Converter[T]
	opts     options
	children atomic.Pointer[[]*FileHandler[T]]

	loadMu sync.Mutex
}

// NewFolderHandler creates a handler for the directory at path and performs
// one eager Rescan. Child parse failures are logged; only a listing failure
// is returned.
func NewFolderHandler[T any](reg *reload.Registry, path string, conv converter.Converter[T], autoReload bool, opts ...Option) (*FolderHandler[T], error) {
	if reg == nil {
		return nil, reload.ErrNotInitialized
	}
	if conv == nil {
		return nil, fmt.Errorf("folder %s: converter is required", path)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	h := &FolderHandler[T]{conv: conv, opts: o}
	h.init(reg, path, h, o)
	h.children.Store(&[]*FileHandler[T]{})

	if err := h.Rescan(); err != nil && !isChildError(err) {
		return nil, err
	}
	if err := h.SetAutoReloading(autoReload); err != nil {
		return nil, err
	}
	return h, nil
}

// Kind implements reload.Handler.
func (h *FolderHandler[T]) Kind() reload.Kind { return reload.KindFolder }

// OnReload rebuilds the children when the directory structure changed, and
// otherwise reloads each stale child. It reports whether anything reloaded.
// Child failures are aggregated into the returned error.
func (h *FolderHandler[T]) OnReload() (bool, error) {
	h.loadMu.Lock()
	stale, err := h.IsStale()
	if err != nil {
		h.loadMu.Unlock()
		return false, err
	}

	if stale {
		stamp, err := h.rescan()
		if err != nil && !isChildError(err) {
			h.loadMu.Unlock()
			return false, err
		}
		h.markFreshAt(stamp)
		h.loadMu.Unlock()
		h.log.Debug("folder rebuilt", zap.Int("files", h.Len()))
		h.publish(reload.KindFolder)
		return true, err
	}

	var (
		changed bool
		errs    error
	)
	for _, child := range h.Handlers() {
		ok, err := child.OnReload()
		errs = multierr.Append(errs, err)
		changed = changed || ok
	}
	h.loadMu.Unlock()
	if changed {
		h.publish(reload.KindFolder)
	}
	return changed, errs
}

// Rescan lists the directory, builds a fresh child per file, reads each one
// eagerly and marks the folder fresh. A missing directory yields no
// children. The returned error aggregates child failures, if any.
func (h *FolderHandler[T]) Rescan() error {
	h.loadMu.Lock()
	defer h.loadMu.Unlock()
	stamp, err := h.rescan()
	if err != nil && !isChildError(err) {
		return err
	}
	h.markFreshAt(stamp)
	return err
}

func (h *FolderHandler[T]) rescan() (int64, error) {
	stamp, err := h.ModTime()
	if err != nil {
		return absent, err
	}
	entries, err := os.ReadDir(h.FullPath())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return absent, &IOError{Path: h.path, Op: "list", Err: err}
	}

	children := make([]*FileHandler[T], 0, len(entries))
	var errs error
	for _, e := range entries {
		if e.IsDir() || !h.opts.accept(e.Name()) {
			continue
		}
		child, err := newFileHandler(h.reg, filepath.Join(h.path, e.Name()), h.conv, WithLogger(h.opts.logger))
		if err != nil {
			errs = multierr.Append(errs, &childError{err})
			continue
		}
		if err := child.Read(); err != nil {
			h.log.Warn("child read failed", zap.String("file", e.Name()), zap.Error(err))
			errs = multierr.Append(errs, &childError{err})
		}
		children = append(children, child)
	}
	h.children.Store(&children)
	return stamp, errs
}

// childError marks failures of individual children, which never abort a
// rebuild.
type childError struct{ err error }

func (e *childError) Error() string { return e.err.Error() }
func (e *childError) Unwrap() error { return e.err }

func isChildError(err error) bool {
	for _, e := range multierr.Errors(err) {
		var ce *childError
		if !errors.As(e, &ce) {
			return false
		}
	}
	return true
}

// Handlers returns a snapshot of the child handlers in listing order.
func (h *FolderHandler[T]) Handlers() []*FileHandler[T] {
	list := *h.children.Load()
	out := make([]*FileHandler[T], len(list))
	copy(out, list)
	return out
}

// Len returns the number of children at the last rescan.
func (h *FolderHandler[T]) Len() int { return len(*h.children.Load()) }

// Objects returns every child's current value in listing order. A child
// that never parsed contributes the zero value (nil for map, slice and
// pointer types), so index i always matches the i-th listed file.
func (h *FolderHandler[T]) Objects() []T {
	list := *h.children.Load()
	out := make([]T, len(list))
	for i, c := range list {
		out[i] = c.Object()
	}
	return out
}

// Entries is Objects with the path and load state of each child.
func (h *FolderHandler[T]) Entries() []Entry[T] {
	list := *h.children.Load()
	out := make([]Entry[T], len(list))
	for i, c := range list {
		out[i] = Entry[T]{Path: c.Path(), Value: c.Object(), Loaded: c.Loaded()}
	}
	return out
}

// Files returns the child file names in listing order.
func (h *FolderHandler[T]) Files() []string {
	list := *h.children.Load()
	out := make([]string, len(list))
	for i, c := range list {
		out[i] = filepath.Base(c.Path())
	}
	return out
}

// IsFolderEmpty reports whether the directory is missing or has no entries.
func (h *FolderHandler[T]) IsFolderEmpty() bool {
	entries, err := os.ReadDir(h.FullPath())
	return err != nil || len(entries) == 0
}
