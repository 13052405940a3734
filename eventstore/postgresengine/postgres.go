// Package postgresengine implements the event store on top of PostgreSQL,
// realizing the document-store abstraction the spec describes as
// MongoDB-shaped with JSONB documents, goqu-built SQL statements, and
// LISTEN/NOTIFY-backed change feeds (see the changefeed subpackage).
package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // driver import
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/occurrent-go/occurrent/cloudevent"
	"github.com/occurrent-go/occurrent/eventstore"
	"github.com/occurrent-go/occurrent/eventstore/postgresengine/internal/adapters"
)

const (
	defaultEventsTableName   = "events"
	defaultVersionsTableName = "stream_versions"
	dialectPostgres          = "postgres"

	colSeq        = "seq"
	colStreamID   = "streamid"
	colEventID    = "event_id"
	colEventType  = "event_type"
	colDocument   = "document"
	colEventTime  = "event_time"
	colVersion    = "version"

	aliasVersion = "version"
)

// EventStore is a PostgreSQL-backed event store. It is
// configured with functional options; the zero value is not usable.
type EventStore struct {
	db                 adapters.DBAdapter
	readDB             adapters.DBAdapter
	eventsTableName    string
	versionsTableName  string
	timeRepresentation eventstore.TimeRepresentation
	guarantee          eventstore.ConsistencyGuarantee
	format             cloudevent.Format
	logger             eventstore.Logger
	metricsCollector   eventstore.MetricsCollector
	tracingCollector   eventstore.TracingCollector
	contextualLogger   eventstore.ContextualLogger
}

// NewEventStoreFromPGXPool creates a new EventStore backed by a pgxpool.Pool.
func NewEventStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (EventStore, error) {
	if db == nil {
		return EventStore{}, eventstore.ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewPGXAdapter(db), options...)
}

// NewEventStoreFromSQLDB creates a new EventStore backed by a *sql.DB.
func NewEventStoreFromSQLDB(db *sql.DB, options ...Option) (EventStore, error) {
	if db == nil {
		return EventStore{}, eventstore.ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewSQLAdapter(db), options...)
}

// NewEventStoreFromSQLX creates a new EventStore backed by a *sqlx.DB.
func NewEventStoreFromSQLX(db *sqlx.DB, options ...Option) (EventStore, error) {
	if db == nil {
		return EventStore{}, eventstore.ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewSQLXAdapter(db), options...)
}

func newEventStore(db adapters.DBAdapter, options ...Option) (EventStore, error) {
	es := EventStore{
		db:                 db,
		eventsTableName:    defaultEventsTableName,
		versionsTableName:  defaultVersionsTableName,
		timeRepresentation: eventstore.TimeRepresentationRFC3339String,
		guarantee:          eventstore.TransactionalGuarantee(defaultVersionsTableName),
		format:             cloudevent.JSON(),
	}

	for _, option := range options {
		if err := option(&es); err != nil {
			return EventStore{}, err
		}
	}

	return es, nil
}

// Append writes events onto the end of stream streamID, enforcing condition
// according to the store's configured ConsistencyGuarantee (spec §4.3).
func (es EventStore) Append(
	ctx context.Context,
	streamID string,
	condition eventstore.WriteCondition,
	events ...cloudevent.Event,
) error {
	if streamID == "" {
		return eventstore.ErrEmptyStreamID
	}

	for _, event := range events {
		if id, ok := event.StreamID(); ok && id != streamID {
			return eventstore.ErrStreamIDMismatch
		}
	}

	if len(events) == 0 {
		return nil
	}

	start := time.Now()

	var err error

	switch es.guarantee.Kind() {
	case eventstore.GuaranteeNone:
		err = es.appendNone(ctx, streamID, condition, events)
	case eventstore.GuaranteeTransactional:
		err = es.appendTransactional(ctx, streamID, condition, events)
	case eventstore.GuaranteeTransactionalAnnotation:
		err = es.appendTransactionalAnnotation(ctx, streamID, condition, events)
	default:
		err = es.appendTransactional(ctx, streamID, condition, events)
	}

	duration := time.Since(start)

	if err != nil {
		es.recordAppendError(ctx, duration, err)
		return err
	}

	es.recordAppendSuccess(ctx, duration, len(events))

	return nil
}

// Read loads the events of stream streamID starting after skip events, up to
// limit events (limit <= 0 means unbounded), plus the stream's current
// version.
func (es EventStore) Read(ctx context.Context, streamID string, skip, limit int) (eventstore.EventStream, error) {
	if streamID == "" {
		return eventstore.EventStream{}, eventstore.ErrEmptyStreamID
	}

	start := time.Now()

	rows, err := es.readAdapter(ctx).Query(ctx, es.buildSelectSQL(streamID, skip, limit))
	if err != nil {
		es.logError("query failed", err)
		return eventstore.EventStream{}, errors.Join(eventstore.ErrQueryingEventsFailed, err)
	}
	defer es.closeRows(rows)

	events := make([]cloudevent.Event, 0)

	for rows.Next() {
		doc, scanErr := es.scanDocument(rows)
		if scanErr != nil {
			return eventstore.EventStream{}, scanErr
		}

		event, decodeErr := eventstore.Decode(es.format, doc)
		if decodeErr != nil {
			es.logError("decoding event failed", decodeErr)
			return eventstore.EventStream{}, decodeErr
		}

		events = append(events, event)
	}

	version, err := es.currentVersion(ctx, streamID)
	if err != nil {
		return eventstore.EventStream{}, err
	}

	es.recordQuerySuccess(ctx, time.Since(start), len(events))

	return eventstore.EventStream{ID: streamID, Version: version, Events: events}, nil
}

// Exists reports whether streamID has ever been written to.
func (es EventStore) Exists(ctx context.Context, streamID string) (bool, error) {
	version, err := es.currentVersion(ctx, streamID)
	if err != nil {
		return false, err
	}

	return version > 0, nil
}

// StreamVersion returns the current version of streamID (0 if it has never
// been written to).
func (es EventStore) StreamVersion(ctx context.Context, streamID string) (uint64, error) {
	return es.currentVersion(ctx, streamID)
}

func (es EventStore) currentVersion(ctx context.Context, streamID string) (uint64, error) {
	if !es.guarantee.TracksVersion() {
		return es.countEvents(ctx, streamID)
	}

	selectStmt := goqu.Dialect(dialectPostgres).
		From(es.versionsTableName).
		Select(colVersion).
		Where(goqu.C(colStreamID).Eq(streamID))

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return 0, errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	rows, queryErr := es.readAdapter(ctx).Query(ctx, sqlQuery)
	if queryErr != nil {
		return 0, errors.Join(eventstore.ErrQueryingEventsFailed, queryErr)
	}
	defer es.closeRows(rows)

	var version uint64

	if rows.Next() {
		if scanErr := rows.Scan(&version); scanErr != nil {
			return 0, errors.Join(eventstore.ErrScanningDBRowFailed, scanErr)
		}
	}

	return version, nil
}

func (es EventStore) countEvents(ctx context.Context, streamID string) (uint64, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(es.eventsTableName).
		Select(goqu.COUNT(colSeq)).
		Where(goqu.C(colStreamID).Eq(streamID))

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return 0, errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	rows, queryErr := es.readAdapter(ctx).Query(ctx, sqlQuery)
	if queryErr != nil {
		return 0, errors.Join(eventstore.ErrQueryingEventsFailed, queryErr)
	}
	defer es.closeRows(rows)

	var count uint64

	if rows.Next() {
		if scanErr := rows.Scan(&count); scanErr != nil {
			return 0, errors.Join(eventstore.ErrScanningDBRowFailed, scanErr)
		}
	}

	return count, nil
}

func (es EventStore) buildSelectSQL(streamID string, skip, limit int) string {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(es.eventsTableName).
		Select(colStreamID, colEventID, colEventType, colDocument, colEventTime).
		Where(goqu.C(colStreamID).Eq(streamID)).
		Order(goqu.I(colSeq).Asc())

	if skip > 0 {
		selectStmt = selectStmt.Offset(uint(skip))
	}

	if limit > 0 {
		selectStmt = selectStmt.Limit(uint(limit))
	}

	sqlQuery, _, _ := selectStmt.ToSQL()

	return sqlQuery
}

func (es EventStore) scanDocument(rows adapters.DBRows) (eventstore.StoredDocument, error) {
	var (
		streamID  string
		eventID   string
		eventType string
		document  []byte
		eventTime sql.NullTime
	)

	if err := rows.Scan(&streamID, &eventID, &eventType, &document, &eventTime); err != nil {
		return eventstore.StoredDocument{}, errors.Join(eventstore.ErrScanningDBRowFailed, err)
	}

	doc := eventstore.StoredDocument{
		StreamID:  streamID,
		EventID:   eventID,
		EventType: eventType,
		JSONDoc:   document,
	}

	if eventTime.Valid {
		t := eventTime.Time.UTC()
		doc.EventTime = &t
	}

	return doc, nil
}

// readAdapter picks the replica adapter for eventstore.EventualConsistency
// reads when one is configured (see WithReadReplicaPGXPool), falling back to the
// primary for eventstore.StrongConsistency (the default) or when no replica
// was wired in.
func (es EventStore) readAdapter(ctx context.Context) adapters.DBAdapter {
	if es.readDB != nil && eventstore.GetConsistencyLevel(ctx) == eventstore.EventualConsistency {
		return es.readDB
	}

	return es.db
}

func (es EventStore) closeRows(rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		es.logWarn("closing rows failed", closeErr)
	}
}

func literalInsertStatement(tableName string, docs []eventstore.StoredDocument) (string, error) {
	rowsExpr := make([][]interface{}, 0, len(docs))

	for _, doc := range docs {
		var eventTimeLit any = goqu.L("NULL")
		if doc.EventTime != nil {
			eventTimeLit = goqu.L("?::timestamp with time zone", *doc.EventTime)
		}

		rowsExpr = append(rowsExpr, goqu.Vals{
			doc.StreamID,
			doc.EventID,
			doc.EventType,
			goqu.L("?::jsonb", string(doc.JSONDoc)),
			eventTimeLit,
		})
	}

	insertStmt := goqu.Dialect(dialectPostgres).
		Insert(tableName).
		Cols(colStreamID, colEventID, colEventType, colDocument, colEventTime).
		Vals(rowsExpr...)

	sqlQuery, _, err := insertStmt.ToSQL()
	if err != nil {
		return "", errors.Join(eventstore.ErrBuildingQueryFailed, err)
	}

	return sqlQuery, nil
}

func upsertVersionSQL(versionsTableName, streamID string, newVersion uint64) (string, error) {
	insertStmt := goqu.Dialect(dialectPostgres).
		Insert(versionsTableName).
		Cols(colStreamID, colVersion).
		Vals(goqu.Vals{streamID, newVersion}).
		OnConflict(goqu.DoUpdate(colStreamID, goqu.Record{colVersion: goqu.L("EXCLUDED." + colVersion)}))

	sqlQuery, _, err := insertStmt.ToSQL()
	if err != nil {
		return "", errors.Join(eventstore.ErrBuildingQueryFailed, err)
	}

	return sqlQuery, nil
}
