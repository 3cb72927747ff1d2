package reload

import "errors"

// Registry lifecycle errors. These indicate programmer error and are
// returned to the caller immediately.
var (
	ErrNotInitialized     = errors.New("reload: registry has not been initialized")
	ErrAlreadyInitialized = errors.New("reload: only one registry may be live at a time")
	ErrNilHost            = errors.New("reload: host is required")
	ErrInvalidInterval    = errors.New("reload: interval must be > 0")
)
