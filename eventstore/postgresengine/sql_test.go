package postgresengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/occurrent-go/occurrent/eventstore"
)

func Test_LiteralInsertStatement_NullEventTime(t *testing.T) {
	docs := []eventstore.StoredDocument{
		{
			StreamID:  "stream-1",
			EventID:   "event-1",
			EventType: "com.test.thing",
			JSONDoc:   []byte(`{"id":"event-1"}`),
			EventTime: nil,
		},
	}

	sqlQuery, err := literalInsertStatement("events", docs)
	require.NoError(t, err)

	assert.Contains(t, sqlQuery, "INSERT INTO")
	assert.Contains(t, sqlQuery, "'stream-1'")
	assert.Contains(t, sqlQuery, "'event-1'")
	assert.Contains(t, sqlQuery, "NULL")
}

func Test_LiteralInsertStatement_WithEventTime(t *testing.T) {
	when := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	docs := []eventstore.StoredDocument{
		{
			StreamID:  "stream-1",
			EventID:   "event-1",
			EventType: "com.test.thing",
			JSONDoc:   []byte(`{"id":"event-1"}`),
			EventTime: &when,
		},
	}

	sqlQuery, err := literalInsertStatement("events", docs)
	require.NoError(t, err)

	assert.Contains(t, sqlQuery, "timestamp with time zone")
}

func Test_LiteralInsertStatement_MultipleRows(t *testing.T) {
	docs := []eventstore.StoredDocument{
		{StreamID: "s1", EventID: "e1", EventType: "t1", JSONDoc: []byte(`{}`)},
		{StreamID: "s1", EventID: "e2", EventType: "t2", JSONDoc: []byte(`{}`)},
	}

	sqlQuery, err := literalInsertStatement("events", docs)
	require.NoError(t, err)

	assert.Contains(t, sqlQuery, "'e1'")
	assert.Contains(t, sqlQuery, "'e2'")
}

func Test_UpsertVersionSQL(t *testing.T) {
	sqlQuery, err := upsertVersionSQL("stream_versions", "stream-1", 5)
	require.NoError(t, err)

	assert.Contains(t, sqlQuery, "INSERT INTO")
	assert.Contains(t, sqlQuery, "stream_versions")
	assert.Contains(t, sqlQuery, "'stream-1'")
	assert.Contains(t, sqlQuery, "5")
	assert.Contains(t, sqlQuery, "ON CONFLICT")
	assert.Contains(t, sqlQuery, "DO UPDATE SET")
}

func Test_UpsertVersionSQL_QuotesHostileStreamID(t *testing.T) {
	hostile := `o'); DROP TABLE stream_versions;--`

	sqlQuery, err := upsertVersionSQL("stream_versions", hostile, 1)
	require.NoError(t, err)

	assert.NotContains(t, sqlQuery, "'o');")
	assert.Contains(t, sqlQuery, `'o''); DROP TABLE stream_versions;--'`)
}

func Test_IsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"postgres_phrasing", assertErr("duplicate key value violates unique constraint \"events_pkey\""), true},
		{"sqlite_phrasing", assertErr("UNIQUE constraint failed: events.event_id"), true},
		{"unrelated_error", assertErr("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUniqueViolation(tt.err))
		})
	}
}

type stringError string

func (e stringError) Error() string { return string(e) }

func assertErr(msg string) error { return stringError(msg) }
