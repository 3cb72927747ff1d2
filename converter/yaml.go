package converter

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// YAML decodes and encodes with gopkg.in/yaml.v3.
type YAML[T any] struct{}

func (YAML[T]) Parse(raw []byte) (T, error) {
	var v T
	if err := yaml.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("parse yaml: %w", err)
	}
	return v, nil
}

func (YAML[T]) Serialize(v T) ([]byte, error) {
	out, err := yaml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return out, nil
}
