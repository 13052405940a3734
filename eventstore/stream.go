package eventstore

import "github.com/occurrent-go/occurrent/cloudevent"

// EventStream is the result of reading a stream: its current version and the
// CloudEvents recorded on it, in write order.
type EventStream struct {
	ID      string
	Version uint64
	Events  []cloudevent.Event
}

// IsEmpty reports whether the stream has never been written to.
func (s EventStream) IsEmpty() bool {
	return len(s.Events) == 0
}
