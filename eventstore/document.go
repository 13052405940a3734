package eventstore

import (
	"errors"
	"time"

	"github.com/occurrent-go/occurrent/cloudevent"
)

// TimeRepresentation selects how an Event's "time" attribute is persisted by
// the document store, mirroring the two strategies supported by the
// reference Occurrent document mapper.
type TimeRepresentation int

const (
	// TimeRepresentationRFC3339String stores "time" as the CloudEvent's own
	// RFC 3339 string, inside the same JSON document as every other
	// attribute. Comparisons against it are lexical string comparisons.
	TimeRepresentationRFC3339String TimeRepresentation = iota

	// TimeRepresentationDate stores "time" as a native, millisecond-precision
	// UTC timestamp outside the JSON document, so the store can compare and
	// sort on it natively. Encoding rejects times carrying sub-millisecond
	// precision or a non-UTC location.
	TimeRepresentationDate
)

// StoredDocument is the document-store representation of a single CloudEvent:
// the serialized envelope plus the bookkeeping the store needs to place it in
// a stream and, for TimeRepresentationDate, its time split out as a native
// value.
type StoredDocument struct {
	StreamID  string
	EventID   string
	EventType string
	JSONDoc   []byte
	EventTime *time.Time
}

// Encode turns a CloudEvent into a StoredDocument: it stamps the streamid
// extension attribute, serializes the event via format, and — for
// TimeRepresentationDate — lifts "time" out of the JSON document into a
// native timestamp, enforcing millisecond precision and UTC.
func Encode(
	format cloudevent.Format,
	timeRepresentation TimeRepresentation,
	streamID string,
	event cloudevent.Event,
) (StoredDocument, error) {
	stamped := event.WithStreamID(streamID)

	var nativeTime *time.Time

	if timeRepresentation == TimeRepresentationDate && !stamped.Time.IsZero() {
		if err := validateDateRepresentation(stamped.Time); err != nil {
			return StoredDocument{}, err
		}

		t := stamped.Time
		nativeTime = &t
		stamped.Time = time.Time{}
	}

	raw, err := format.Serialize(stamped)
	if err != nil {
		return StoredDocument{}, errors.Join(ErrEncodingEventFailed, err)
	}

	return StoredDocument{
		StreamID:  streamID,
		EventID:   event.ID,
		EventType: event.Type,
		JSONDoc:   raw,
		EventTime: nativeTime,
	}, nil
}

// Decode turns a StoredDocument back into a CloudEvent: it deserializes the
// document with format, then, when the document carries a native EventTime
// (TimeRepresentationDate), sets the event's time to it in UTC, and strips
// the streamid extension on egress.
func Decode(format cloudevent.Format, doc StoredDocument) (cloudevent.Event, error) {
	event, err := format.Deserialize(doc.JSONDoc)
	if err != nil {
		return cloudevent.Event{}, errors.Join(ErrDecodingEventFailed, err)
	}

	if doc.EventTime != nil {
		event.Time = doc.EventTime.UTC()
	}

	return event.WithoutStreamID(), nil
}

func validateDateRepresentation(t time.Time) error {
	if _, offset := t.Zone(); offset != 0 {
		return ErrInvalidTimeZone
	}

	if t.Nanosecond()%int(time.Millisecond) != 0 {
		return ErrInvalidTimePrecision
	}

	return nil
}
