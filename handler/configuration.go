package handler

import (
	"errors"
	"fmt"
	"io/fs"
	"math"

	"github.com/go-viper/mapstructure/v2"
	"go.uber.org/zap"

	"hotfile-go/converter"
	"hotfile-go/reload"
)

// AutoReloadKey is the reserved key through which a configuration file
// controls its own reload subscription.
const AutoReloadKey = "autoReload"

// ConfigurationHandler is a typed read-only view over a FileHandler whose
// value is a string-keyed mapping. Accessors read the current snapshot and
// never trigger a reload; each returns ok=false when the key is absent or
// holds a value of another type.
type ConfigurationHandler struct {
	file *FileHandler[map[string]any]
	log  *zap.Logger
}

// NewConfigurationHandler reads path once and then applies the autoReload
// key from its content. A missing file is an empty configuration unless
// WithDefaults supplies one. On a parse failure the handler is returned
// together with the *ParseError; it holds no configuration until the file
// parses. Other read failures return a nil handler.
func NewConfigurationHandler(reg *reload.Registry, path string, conv converter.Converter[map[string]any], autoReload bool, opts ...Option) (*ConfigurationHandler, error) {
	fh, err := newFileHandler(reg, path, conv, opts...)
	if err != nil {
		return nil, err
	}
	c := &ConfigurationHandler{file: fh, log: fh.log}
	fh.afterReload = c.reapply

	if err := fh.SetAutoReloading(autoReload); err != nil {
		return nil, err
	}
	if err := fh.Read(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		if errors.Is(err, ErrParse) {
			// stays subscribed so a corrected file is picked up by the loop
			return c, err
		}
		_ = fh.Close()
		return nil, err
	}
	if err := c.ApplySelfConfiguredFlags(); err != nil {
		_ = fh.Close()
		return nil, err
	}
	return c, nil
}

// SelfConfiguredAutoReload extracts the autoReload flag from cfg. ok is
// false when the key is missing or not a boolean.
func SelfConfiguredAutoReload(cfg map[string]any) (enabled, ok bool) {
	enabled, ok = cfg[AutoReloadKey].(bool)
	return enabled, ok
}

// ApplySelfConfiguredFlags sets the auto-reload flag from the loaded
// autoReload key. A missing key leaves the flag alone; a non-boolean value
// is logged and ignored.
func (c *ConfigurationHandler) ApplySelfConfiguredFlags() error {
	cfg := c.Configuration()
	enabled, ok := SelfConfiguredAutoReload(cfg)
	if !ok {
		if v, present := cfg[AutoReloadKey]; present {
			c.log.Warn("ignoring non-boolean autoReload", zap.Any("value", v))
		}
		return nil
	}
	return c.file.SetAutoReloading(enabled)
}

func (c *ConfigurationHandler) reapply() {
	if err := c.ApplySelfConfiguredFlags(); err != nil {
		c.log.Warn("apply autoReload failed", zap.Error(err))
	}
}

// Reload re-reads the file now and re-applies the autoReload key.
func (c *ConfigurationHandler) Reload() error {
	if err := c.file.Read(); err != nil {
		return err
	}
	return c.ApplySelfConfiguredFlags()
}

// Close deregisters the underlying file handler.
func (c *ConfigurationHandler) Close() error { return c.file.Close() }

// Path returns the configuration path relative to the registry root.
func (c *ConfigurationHandler) Path() string { return c.file.Path() }

// FileHandler exposes the underlying handler (for registry checks, Write).
func (c *ConfigurationHandler) FileHandler() *FileHandler[map[string]any] { return c.file }

// Configuration returns the current mapping, nil if nothing is loaded.
// The map is shared with other readers and must not be modified.
func (c *ConfigurationHandler) Configuration() map[string]any {
	return c.file.Object()
}

// Get returns the raw value for key.
func (c *ConfigurationHandler) Get(key string) (any, bool) {
	cfg := c.Configuration()
	if cfg == nil {
		return nil, false
	}
	v, ok := cfg[key]
	return v, ok
}

// Text returns key as a string.
func (c *ConfigurationHandler) Text(key string) (string, bool) {
	v, _ := c.Get(key)
	s, ok := v.(string)
	return s, ok
}

// Number returns key as float64 if it holds any numeric type.
func (c *ConfigurationHandler) Number(key string) (float64, bool) {
	v, _ := c.Get(key)
	return toNumber(v)
}

// Int returns key if it holds an integer type.
func (c *ConfigurationHandler) Int(key string) (int64, bool) {
	v, _ := c.Get(key)
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

// Bool returns key as a boolean.
func (c *ConfigurationHandler) Bool(key string) (bool, bool) {
	v, _ := c.Get(key)
	b, ok := v.(bool)
	return b, ok
}

// List returns key as a list.
func (c *ConfigurationHandler) List(key string) ([]any, bool) {
	v, _ := c.Get(key)
	l, ok := v.([]any)
	return l, ok
}

// StringList returns key as a list with every element stringified.
func (c *ConfigurationHandler) StringList(key string) ([]string, bool) {
	l, ok := c.List(key)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(l))
	for _, e := range l {
		out = append(out, stringify(e))
	}
	return out, true
}

// NumberList returns the numeric elements of the list at key; others are
// dropped.
func (c *ConfigurationHandler) NumberList(key string) ([]float64, bool) {
	l, ok := c.List(key)
	if !ok {
		return nil, false
	}
	out := make([]float64, 0, len(l))
	for _, e := range l {
		if n, ok := toNumber(e); ok {
			out = append(out, n)
		}
	}
	return out, true
}

// Section returns the nested mapping at key with all keys stringified.
func (c *ConfigurationHandler) Section(key string) (map[string]any, bool) {
	v, _ := c.Get(key)
	switch m := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(m))
		for k, e := range m {
			out[k] = e
		}
		return out, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, e := range m {
			out[stringify(k)] = e
		}
		return out, true
	}
	return nil, false
}

// Map returns the nested map stored under key without copying it. Unlike
// Section it only accepts maps with string keys.
func (c *ConfigurationHandler) Map(key string) (map[string]any, bool) {
	v, _ := c.Get(key)
	m, ok := v.(map[string]any)
	return m, ok
}

// StringMap returns the top-level mapping with every value stringified.
func (c *ConfigurationHandler) StringMap() map[string]string {
	cfg := c.Configuration()
	if cfg == nil {
		return nil
	}
	out := make(map[string]string, len(cfg))
	for k, v := range cfg {
		out[k] = stringify(v)
	}
	return out
}

// Decode decodes the section at key into out (a pointer) using mapstructure.
// An empty key decodes the whole configuration.
func (c *ConfigurationHandler) Decode(key string, out any) error {
	var src any
	if key == "" {
		src = c.Configuration()
	} else {
		sec, ok := c.Section(key)
		if !ok {
			return fmt.Errorf("config %s: section %q not found", c.Path(), key)
		}
		src = sec
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: false,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return fmt.Errorf("config %s: %w", c.Path(), err)
	}
	if err := dec.Decode(src); err != nil {
		return fmt.Errorf("config %s: decode %q: %w", c.Path(), key, err)
	}
	return nil
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func stringify(v any) string {
	if v == nil {
		return "null"
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
