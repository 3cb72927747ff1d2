package converter

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// JSON decodes and encodes with sonic; numbers decode as float64.
type JSON[T any] struct{}

func (JSON[T]) Parse(raw []byte) (T, error) {
	var v T
	if err := sonic.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("parse json: %w", err)
	}
	return v, nil
}

func (JSON[T]) Serialize(v T) ([]byte, error) {
	out, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return out, nil
}
