package handler

import (
	"io/fs"
	"strings"

	"go.uber.org/zap"
)

type options struct {
	defaults    fs.FS
	defaultName string
	filter      func(name string) bool
	logger      *zap.Logger
}

// Option configures a handler.
type Option func(*options)

// WithDefaults copies name from fsys into place when the file is missing
// at read time (e.g. an embed.FS of bundled defaults).
func WithDefaults(fsys fs.FS, name string) Option {
	return func(o *options) {
		o.defaults = fsys
		o.defaultName = name
	}
}

// WithFilter restricts which directory entries a FolderHandler loads.
// Hidden entries and subdirectories are always skipped.
func WithFilter(fn func(name string) bool) Option {
	return func(o *options) { o.filter = fn }
}

// WithExtensions is a WithFilter accepting only the given extensions
// (".yml", ".json", ...), compared case-insensitively.
func WithExtensions(exts ...string) Option {
	return WithFilter(func(name string) bool {
		lower := strings.ToLower(name)
		for _, ext := range exts {
			if strings.HasSuffix(lower, strings.ToLower(ext)) {
				return true
			}
		}
		return false
	})
}

// WithLogger overrides the registry logger for this handler.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

func (o options) accept(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	return o.filter == nil || o.filter(name)
}
