package container

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"hotfile-go/config"
	"hotfile-go/handler"
	"hotfile-go/reload"
)

// Watch is one configured file, folder or configuration handler.
type Watch struct {
	Config  config.WatchConfig
	Handler reload.Handler

	file   *handler.FileHandler[map[string]any]
	folder *handler.FolderHandler[map[string]any]
	conf   *handler.ConfigurationHandler
	err    error
}

// WatchStatus 汇总一个 watch 的当前状态，用于 check 命令和健康检查
type WatchStatus struct {
	Path       string
	Kind       string
	Exists     bool
	AutoReload bool
	Entries    int
	Err        error
}

// Status reports what the handler currently holds.
func (w *Watch) Status() WatchStatus {
	st := WatchStatus{Path: w.Config.Path, Kind: w.Config.Kind, Err: w.err}
	switch {
	case w.file != nil:
		st.Exists = w.file.Exists()
		st.AutoReload = w.file.IsAutoReloading()
		st.Entries = len(w.file.Object())
	case w.folder != nil:
		st.Exists = w.folder.Exists()
		st.AutoReload = w.folder.IsAutoReloading()
		st.Entries = w.folder.Len()
		if st.Err == nil {
			st.Err = unloadedChildren(w.Config.Path, w.folder.Entries())
		}
	case w.conf != nil:
		st.Exists = w.conf.FileHandler().Exists()
		st.AutoReload = w.conf.FileHandler().IsAutoReloading()
		st.Entries = len(w.conf.Configuration())
	}
	return st
}

// Close deregisters the handler.
func (w *Watch) Close() error {
	switch {
	case w.file != nil:
		return w.file.Close()
	case w.folder != nil:
		return w.folder.Close()
	case w.conf != nil:
		return w.conf.Close()
	}
	return nil
}

// Configuration returns the parsed map of a file or config watch.
func (w *Watch) Configuration() map[string]any {
	switch {
	case w.file != nil:
		return w.file.Object()
	case w.conf != nil:
		return w.conf.Configuration()
	}
	return nil
}

// Folder returns the folder handler of a folder watch, nil otherwise.
func (w *Watch) Folder() *handler.FolderHandler[map[string]any] { return w.folder }

// buildWatch creates the handler for wc and performs its first read. A first
// read that fails leaves the handler registered so the loop can recover once
// the file is fixed; the failure is kept in Status.
func buildWatch(reg *reload.Registry, wc config.WatchConfig, log *zap.Logger) (*Watch, error) {
	w := &Watch{Config: wc}
	opts := []handler.Option{handler.WithLogger(log.With(zap.String("watch", wc.Path)))}

	switch wc.Kind {
	case config.KindFile:
		conv, err := wc.Converter()
		if err != nil {
			return nil, err
		}
		h, err := handler.NewFileHandler[map[string]any](reg, wc.Path, conv, wc.AutoReloadEnabled(), opts...)
		if err != nil {
			return nil, err
		}
		w.file, w.Handler = h, h
		w.err = h.Read()

	case config.KindConfig:
		conv, err := wc.Converter()
		if err != nil {
			return nil, err
		}
		h, err := handler.NewConfigurationHandler(reg, wc.Path, conv, wc.AutoReloadEnabled(), opts...)
		if h == nil {
			return nil, err
		}
		w.conf, w.Handler = h, h.FileHandler()
		w.err = err

	case config.KindFolder:
		conv, err := wc.Converter()
		if err != nil {
			return nil, err
		}
		opts = append(opts, handler.WithExtensions(extensionsFor(wc.Format)...))
		h, err := handler.NewFolderHandler[map[string]any](reg, wc.Path, conv, wc.AutoReloadEnabled(), opts...)
		if err != nil {
			return nil, err
		}
		w.folder, w.Handler = h, h

	default:
		return nil, fmt.Errorf("unknown watch kind %q", wc.Kind)
	}
	return w, nil
}

// unloadedChildren reports folder entries that hold no parsed value.
func unloadedChildren(path string, entries []handler.Entry[map[string]any]) error {
	var failed []string
	for _, e := range entries {
		if !e.Loaded {
			failed = append(failed, filepath.Base(e.Path))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("%s: %d of %d files failed to load: %s",
		path, len(failed), len(entries), strings.Join(failed, ", "))
}

func extensionsFor(format string) []string {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		return []string{".yaml", ".yml"}
	default:
		return []string{"." + strings.ToLower(format)}
	}
}
