package postgresengine

import (
	"context"
	"errors"
	"fmt"

	"github.com/occurrent-go/occurrent/eventstore"
)

// EnsureSchema creates the events and (if the configured ConsistencyGuarantee
// tracks versions) stream-versions tables, along with the unique indexes
// invariant 2 (spec §3) requires: one on (streamid, event_id) guarding
// against duplicate events, and one on the versions table's streamid.
func (es EventStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]s (
			%[2]s BIGSERIAL PRIMARY KEY,
			%[3]s TEXT NOT NULL,
			%[4]s TEXT NOT NULL,
			%[5]s TEXT NOT NULL,
			%[6]s JSONB NOT NULL,
			%[7]s TIMESTAMPTZ
		)`, es.eventsTableName, colSeq, colStreamID, colEventID, colEventType, colDocument, colEventTime),

		fmt.Sprintf(
			`CREATE UNIQUE INDEX IF NOT EXISTS %[1]s_streamid_eventid_idx ON %[1]s (%[2]s, %[3]s)`,
			es.eventsTableName, colStreamID, colEventID,
		),

		fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS %[1]s_streamid_seq_idx ON %[1]s (%[2]s, %[3]s)`,
			es.eventsTableName, colStreamID, colSeq,
		),
	}

	if es.guarantee.TracksVersion() {
		statements = append(statements,
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]s (
				%[2]s TEXT PRIMARY KEY,
				%[3]s BIGINT NOT NULL
			)`, es.versionsTableName, colStreamID, colVersion),
		)
	}

	for _, stmt := range statements {
		if _, err := es.db.Exec(ctx, stmt); err != nil {
			return errors.Join(eventstore.ErrStoreUnavailable, err)
		}
	}

	return nil
}
