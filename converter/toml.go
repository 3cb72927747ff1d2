package converter

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
)

// TOML decodes and encodes with go-toml v2. Integers decode as int64.
type TOML[T any] struct{}

func (TOML[T]) Parse(raw []byte) (T, error) {
	var v T
	if err := toml.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("parse toml: %w", err)
	}
	return v, nil
}

func (TOML[T]) Serialize(v T) ([]byte, error) {
	out, err := toml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode toml: %w", err)
	}
	return out, nil
}
