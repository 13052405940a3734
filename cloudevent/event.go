// Package cloudevent provides a minimal CloudEvents v1 envelope and a
// pluggable wire format, used by the eventstore package as the unit of
// storage and retrieval.
package cloudevent

import (
	"errors"
	"time"
)

var (
	// ErrMissingID is returned when an Event is built without an id.
	ErrMissingID = errors.New("cloudevent: id must not be empty")

	// ErrMissingSource is returned when an Event is built without a source.
	ErrMissingSource = errors.New("cloudevent: source must not be empty")

	// ErrMissingType is returned when an Event is built without a type.
	ErrMissingType = errors.New("cloudevent: type must not be empty")
)

// Event is a CloudEvents v1 envelope. Extensions carries extension
// attributes by name; the store uses it to stash "streamid" on ingress
// (removed on egress) and "streamposition" on subscription delivery.
type Event struct {
	ID              string
	Source          string
	Type            string
	Time            time.Time // zero Time means "time" was absent
	Subject         string
	DataContentType string
	Data            []byte
	Extensions      map[string]string
}

// Builder constructs an Event field by field, validating required
// attributes only at Build time.
type Builder struct {
	event Event
}

// New starts building an Event with the three mandatory CloudEvents
// attributes.
func New(id, source, eventType string) *Builder {
	return &Builder{event: Event{ID: id, Source: source, Type: eventType}}
}

func (b *Builder) WithTime(t time.Time) *Builder {
	b.event.Time = t
	return b
}

func (b *Builder) WithSubject(subject string) *Builder {
	b.event.Subject = subject
	return b
}

func (b *Builder) WithDataContentType(contentType string) *Builder {
	b.event.DataContentType = contentType
	return b
}

func (b *Builder) WithData(data []byte) *Builder {
	b.event.Data = data
	return b
}

func (b *Builder) WithExtension(key, value string) *Builder {
	if b.event.Extensions == nil {
		b.event.Extensions = make(map[string]string)
	}
	b.event.Extensions[key] = value
	return b
}

// Build validates and returns the assembled Event.
func (b *Builder) Build() (Event, error) {
	if b.event.ID == "" {
		return Event{}, ErrMissingID
	}

	if b.event.Source == "" {
		return Event{}, ErrMissingSource
	}

	if b.event.Type == "" {
		return Event{}, ErrMissingType
	}

	return b.event, nil
}

// WithExtension returns a copy of e with the extension attribute set.
func (e Event) WithExtension(key, value string) Event {
	clone := e.clone()

	clone.Extensions[key] = value

	return clone
}

// Extension returns the value of an extension attribute and whether it
// was present.
func (e Event) Extension(key string) (string, bool) {
	if e.Extensions == nil {
		return "", false
	}

	v, ok := e.Extensions[key]

	return v, ok
}

// WithoutExtension returns a copy of e with the extension attribute removed.
func (e Event) WithoutExtension(key string) Event {
	clone := e.clone()

	delete(clone.Extensions, key)

	return clone
}

func (e Event) clone() Event {
	clone := e
	clone.Extensions = make(map[string]string, len(e.Extensions)+1)

	for k, v := range e.Extensions {
		clone.Extensions[k] = v
	}

	return clone
}
