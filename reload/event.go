package reload

import "time"

// Kind 区分单文件与目录处理器
type Kind string

const (
	KindFile   Kind = "file"
	KindFolder Kind = "folder"
)

// Event announces that a handler finished a reload.
type Event struct {
	Path string
	Kind Kind
	At   time.Time
}

// EventSink receives reload notifications. Publish is fire-and-forget and
// must not block the reload walk for long.
type EventSink interface {
	Publish(Event)
}

// SinkFunc adapts a function into an EventSink.
type SinkFunc func(Event)

func (f SinkFunc) Publish(e Event) { f(e) }

type discardSink struct{}

func (discardSink) Publish(Event) {}
