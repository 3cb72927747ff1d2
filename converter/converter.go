// Package converter translates raw file bytes to and from typed values.
package converter

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrNotSupported is returned by Serialize on read-only converters.
var ErrNotSupported = errors.New("converter: serialize not supported")

// Converter parses raw bytes into T and, when writable, serializes T back.
type Converter[T any] interface {
	Parse(raw []byte) (T, error)
	Serialize(v T) ([]byte, error)
}

// Func adapts a parse function into a read-only Converter.
type Func[T any] func(raw []byte) (T, error)

func (f Func[T]) Parse(raw []byte) (T, error) { return f(raw) }

func (f Func[T]) Serialize(T) ([]byte, error) { return nil, ErrNotSupported }

// Map 根据扩展名选择 map 类型的转换器
func Map(name string) (Converter[map[string]any], error) {
	return ForFormat[map[string]any](strings.TrimPrefix(filepath.Ext(name), "."))
}

// ForFormat returns the converter registered for a format name
// (yaml, yml, json, toml).
func ForFormat[T any](format string) (Converter[T], error) {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		return YAML[T]{}, nil
	case "json":
		return JSON[T]{}, nil
	case "toml":
		return TOML[T]{}, nil
	default:
		return nil, fmt.Errorf("converter: unknown format %q", format)
	}
}
