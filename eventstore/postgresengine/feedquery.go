package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/doug-martin/goqu/v9"

	"github.com/occurrent-go/occurrent/cloudevent"
	"github.com/occurrent-go/occurrent/eventstore"
)

// FeedEvent pairs a decoded CloudEvent with the opaque resume token
// (the row's sequence number, stringified) identifying its place in the
// global change feed.
type FeedEvent struct {
	Event    cloudevent.Event
	Position string
}

// ReadChangeFeedSince returns, in insertion order, every event appended
// after afterPosition (the empty string means "from the beginning"), up to
// limit rows (limit <= 0 means unbounded). It is the polling primitive the
// changefeed subpackage's LISTEN/NOTIFY adapter uses to catch up after a
// notification or a reconnect (spec §4.5 "on transient failure reopen the
// feed from the last-known resume token").
// rawPredicate, if non-empty, is a literal SQL boolean expression ANDed
// into the WHERE clause — the pushdown target of a subscription.Raw filter
// (spec §6): the rows it excludes are never fetched from the database at
// all, rather than fetched and discarded by a Go-side Matcher.
func (es EventStore) ReadChangeFeedSince(ctx context.Context, afterPosition string, limit int, rawPredicate string) ([]FeedEvent, error) {
	afterSeq, err := parsePosition(afterPosition)
	if err != nil {
		return nil, err
	}

	selectStmt := goqu.Dialect(dialectPostgres).
		From(es.eventsTableName).
		Select(colSeq, colStreamID, colEventID, colEventType, colDocument, colEventTime).
		Where(goqu.C(colSeq).Gt(afterSeq)).
		Order(goqu.I(colSeq).Asc())

	if rawPredicate != "" {
		selectStmt = selectStmt.Where(goqu.L(rawPredicate))
	}

	if limit > 0 {
		selectStmt = selectStmt.Limit(uint(limit))
	}

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return nil, errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	rows, queryErr := es.db.Query(ctx, sqlQuery)
	if queryErr != nil {
		return nil, errors.Join(eventstore.ErrQueryingEventsFailed, queryErr)
	}
	defer es.closeRows(rows)

	feedEvents := make([]FeedEvent, 0)

	for rows.Next() {
		var (
			seq       uint64
			streamID  string
			eventID   string
			eventType string
			document  []byte
			eventTime sql.NullTime
		)

		if scanErr := rows.Scan(&seq, &streamID, &eventID, &eventType, &document, &eventTime); scanErr != nil {
			return nil, errors.Join(eventstore.ErrScanningDBRowFailed, scanErr)
		}

		doc := eventstore.StoredDocument{StreamID: streamID, EventID: eventID, EventType: eventType, JSONDoc: document}

		if eventTime.Valid {
			t := eventTime.Time.UTC()
			doc.EventTime = &t
		}

		event, decodeErr := eventstore.Decode(es.format, doc)
		if decodeErr != nil {
			return nil, decodeErr
		}

		feedEvents = append(feedEvents, FeedEvent{
			Event:    event.WithStreamPosition(strconv.FormatUint(seq, 10)),
			Position: strconv.FormatUint(seq, 10),
		})
	}

	return feedEvents, nil
}

// LatestChangeFeedPosition returns the resume token of the most recently
// appended event, or "0" if the events table is empty. Used to resolve
// StartAtNow() to a concrete position before opening a feed.
func (es EventStore) LatestChangeFeedPosition(ctx context.Context) (string, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(es.eventsTableName).
		Select(goqu.COALESCE(goqu.MAX(goqu.C(colSeq)), 0))

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	rows, queryErr := es.db.Query(ctx, sqlQuery)
	if queryErr != nil {
		return "", errors.Join(eventstore.ErrQueryingEventsFailed, queryErr)
	}
	defer es.closeRows(rows)

	var latest uint64

	if rows.Next() {
		if scanErr := rows.Scan(&latest); scanErr != nil {
			return "", errors.Join(eventstore.ErrScanningDBRowFailed, scanErr)
		}
	}

	return strconv.FormatUint(latest, 10), nil
}

// EnsureChangeFeedTrigger installs the trigger function and AFTER INSERT
// trigger that notify channel with the new row's sequence number every time
// an event is appended. Idempotent: safe to call on every startup.
func (es EventStore) EnsureChangeFeedTrigger(ctx context.Context, channel string) error {
	functionName := channel + "_notify_fn"
	triggerName := channel + "_notify_trg"

	statements := []string{
		fmt.Sprintf(`CREATE OR REPLACE FUNCTION %[1]s() RETURNS trigger AS $$
			BEGIN
				PERFORM pg_notify('%[2]s', NEW.%[3]s::text);
				RETURN NEW;
			END;
		$$ LANGUAGE plpgsql`, functionName, channel, colSeq),

		fmt.Sprintf(`DROP TRIGGER IF EXISTS %[1]s ON %[2]s`, triggerName, es.eventsTableName),

		fmt.Sprintf(
			`CREATE TRIGGER %[1]s AFTER INSERT ON %[2]s FOR EACH ROW EXECUTE FUNCTION %[3]s()`,
			triggerName, es.eventsTableName, functionName,
		),
	}

	for _, stmt := range statements {
		if _, err := es.db.Exec(ctx, stmt); err != nil {
			return errors.Join(eventstore.ErrStoreUnavailable, err)
		}
	}

	return nil
}

func parsePosition(position string) (uint64, error) {
	if position == "" {
		return 0, nil
	}

	parsed, err := strconv.ParseUint(position, 10, 64)
	if err != nil {
		return 0, errors.Join(eventstore.ErrSubscriptionFailed, err)
	}

	return parsed, nil
}
