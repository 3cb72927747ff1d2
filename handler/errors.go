package handler

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is checks against ParseError and IOError.
var (
	ErrParse = errors.New("handler: parse failed")
	ErrIO    = errors.New("handler: filesystem operation failed")
)

// ParseError wraps a converter failure. The handler keeps its previous value
// and its staleness marker, so the next tick retries.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("handler: parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// IOError wraps an unexpected filesystem failure during stat, list, read or
// write.
type IOError struct {
	Path string
	Op   string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("handler: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) Is(target error) bool { return target == ErrIO }

var (
	_ error = (*ParseError)(nil)
	_ error = (*IOError)(nil)
)
