package reload

// Host supplies the base directory that handler paths are resolved against.
// DataDir is consulted on every access so the root may move between calls.
type Host interface {
	DataDir() string
}

// Dir is a fixed Host root.
type Dir string

func (d Dir) DataDir() string { return string(d) }

// HostFunc adapts a function into a Host.
type HostFunc func() string

func (f HostFunc) DataDir() string { return f() }
