package cloudevent

// ExtensionStreamID is the one extension attribute the core event store
// relies on: it is written on every event on ingress and stripped again
// on egress (spec §3).
const ExtensionStreamID = "streamid"

// ExtensionStreamPosition is attached by the change feed adapter to every
// decoded Event, carrying the opaque resume token of the underlying
// change notification (spec §4.5).
const ExtensionStreamPosition = "streamposition"

// StreamID returns the streamid extension attribute, if present.
func (e Event) StreamID() (string, bool) {
	return e.Extension(ExtensionStreamID)
}

// WithStreamID returns a copy of e with the streamid extension set.
func (e Event) WithStreamID(streamID string) Event {
	return e.WithExtension(ExtensionStreamID, streamID)
}

// WithoutStreamID returns a copy of e with the streamid extension removed.
// Used when decoding an event back out of storage for the caller.
func (e Event) WithoutStreamID() Event {
	return e.WithoutExtension(ExtensionStreamID)
}

// StreamPosition returns the streamposition extension attribute, if present.
func (e Event) StreamPosition() (string, bool) {
	return e.Extension(ExtensionStreamPosition)
}

// WithStreamPosition returns a copy of e with the streamposition extension set.
func (e Event) WithStreamPosition(position string) Event {
	return e.WithExtension(ExtensionStreamPosition, position)
}
