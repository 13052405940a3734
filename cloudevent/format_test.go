package cloudevent_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/occurrent-go/occurrent/cloudevent"
)

func Test_JSON_SerializeDeserialize_RoundTrip(t *testing.T) {
	when := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	event, err := cloudevent.New("id-1", "urn:test", "com.test.thing").
		WithTime(when).
		WithSubject("subject-1").
		WithDataContentType("application/json").
		WithData([]byte(`{"a":1}`)).
		WithExtension("streamid", "stream-1").
		Build()
	require.NoError(t, err)

	format := cloudevent.JSON()

	raw, err := format.Serialize(event)
	require.NoError(t, err)

	decoded, err := format.Deserialize(raw)
	require.NoError(t, err)

	assert.Equal(t, event.ID, decoded.ID)
	assert.Equal(t, event.Source, decoded.Source)
	assert.Equal(t, event.Type, decoded.Type)
	assert.True(t, when.Equal(decoded.Time))
	assert.Equal(t, event.Subject, decoded.Subject)
	assert.Equal(t, event.DataContentType, decoded.DataContentType)
	assert.JSONEq(t, string(event.Data), string(decoded.Data))

	streamID, ok := decoded.Extension("streamid")
	assert.True(t, ok)
	assert.Equal(t, "stream-1", streamID)
}

func Test_JSON_Serialize_NonJSONData_IsBase64Encoded(t *testing.T) {
	event, err := cloudevent.New("id-1", "urn:test", "com.test.thing").
		WithDataContentType("application/octet-stream").
		WithData([]byte{0x00, 0x01, 0x02, 0xff}).
		Build()
	require.NoError(t, err)

	format := cloudevent.JSON()

	raw, err := format.Serialize(event)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "data_base64")

	decoded, err := format.Deserialize(raw)
	require.NoError(t, err)
	assert.Equal(t, event.Data, decoded.Data)
}

func Test_JSON_Deserialize_RejectsMalformedDocument(t *testing.T) {
	_, err := cloudevent.JSON().Deserialize([]byte(`not json`))
	assert.ErrorIs(t, err, cloudevent.ErrMalformedDocument)
}

func Test_JSON_Deserialize_RejectsUnsupportedSpecVersion(t *testing.T) {
	_, err := cloudevent.JSON().Deserialize([]byte(`{"specversion":"0.3","id":"x","source":"s","type":"t"}`))
	assert.ErrorIs(t, err, cloudevent.ErrUnsupportedSpecVersion)
}

func Test_JSON_Deserialize_WithoutTime_LeavesTimeZero(t *testing.T) {
	decoded, err := cloudevent.JSON().Deserialize([]byte(`{"specversion":"1.0","id":"x","source":"s","type":"t"}`))
	require.NoError(t, err)
	assert.True(t, decoded.Time.IsZero())
}
