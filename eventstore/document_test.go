package eventstore_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/occurrent-go/occurrent/cloudevent"
	"github.com/occurrent-go/occurrent/eventstore"
)

func buildTestEvent(t *testing.T, when time.Time) cloudevent.Event {
	t.Helper()

	event, err := cloudevent.New("id-1", "urn:test", "com.test.thing").
		WithTime(when).
		WithSubject("subject-1").
		WithDataContentType("application/json").
		WithData([]byte(`{"a":1}`)).
		Build()
	require.NoError(t, err)

	return event
}

func Test_Encode_Decode_RFC3339StringRoundTrip(t *testing.T) {
	when := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	event := buildTestEvent(t, when)

	doc, err := eventstore.Encode(cloudevent.JSON(), eventstore.TimeRepresentationRFC3339String, "stream-1", event)
	require.NoError(t, err)

	assert.Equal(t, "stream-1", doc.StreamID)
	assert.Equal(t, "id-1", doc.EventID)
	assert.Equal(t, "com.test.thing", doc.EventType)
	assert.Nil(t, doc.EventTime)

	decoded, err := eventstore.Decode(cloudevent.JSON(), doc)
	require.NoError(t, err)

	assert.Equal(t, event.ID, decoded.ID)
	assert.True(t, when.Equal(decoded.Time))

	_, ok := decoded.StreamID()
	assert.False(t, ok, "streamid extension must be stripped on decode")
}

func Test_Encode_Decode_DateRepresentationRoundTrip(t *testing.T) {
	when := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	event := buildTestEvent(t, when)

	doc, err := eventstore.Encode(cloudevent.JSON(), eventstore.TimeRepresentationDate, "stream-1", event)
	require.NoError(t, err)

	require.NotNil(t, doc.EventTime)
	assert.True(t, when.Equal(*doc.EventTime))

	decoded, err := eventstore.Decode(cloudevent.JSON(), doc)
	require.NoError(t, err)

	assert.True(t, when.Equal(decoded.Time))
}

func Test_Encode_DateRepresentation_RejectsNonUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	when := time.Date(2026, 1, 2, 3, 4, 5, 0, loc)
	event := buildTestEvent(t, when)

	_, err := eventstore.Encode(cloudevent.JSON(), eventstore.TimeRepresentationDate, "stream-1", event)
	assert.ErrorIs(t, err, eventstore.ErrInvalidTimeZone)
}

func Test_Encode_DateRepresentation_RejectsSubMillisecondPrecision(t *testing.T) {
	when := time.Date(2026, 1, 2, 3, 4, 5, 123456, time.UTC)
	event := buildTestEvent(t, when)

	_, err := eventstore.Encode(cloudevent.JSON(), eventstore.TimeRepresentationDate, "stream-1", event)
	assert.ErrorIs(t, err, eventstore.ErrInvalidTimePrecision)
}

func Test_Encode_StampsStreamID(t *testing.T) {
	event := buildTestEvent(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	doc, err := eventstore.Encode(cloudevent.JSON(), eventstore.TimeRepresentationRFC3339String, "stream-42", event)
	require.NoError(t, err)

	decoded, err := eventstore.Decode(cloudevent.JSON(), doc)
	require.NoError(t, err)

	assert.Equal(t, "id-1", decoded.ID)
	assert.Equal(t, "stream-42", doc.StreamID)
}

func Test_Encode_ZeroTime_SkipsDateLift(t *testing.T) {
	event, err := cloudevent.New("id-1", "urn:test", "com.test.thing").Build()
	require.NoError(t, err)

	doc, err := eventstore.Encode(cloudevent.JSON(), eventstore.TimeRepresentationDate, "stream-1", event)
	require.NoError(t, err)

	assert.Nil(t, doc.EventTime)
}
