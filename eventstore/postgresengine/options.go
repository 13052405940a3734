package postgresengine

import (
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/occurrent-go/occurrent/cloudevent"
	"github.com/occurrent-go/occurrent/eventstore"
	"github.com/occurrent-go/occurrent/eventstore/postgresengine/internal/adapters"
)

// Option defines a functional option for configuring EventStore.
type Option func(*EventStore) error

// WithEventsTableName sets the table name events are stored in.
func WithEventsTableName(tableName string) Option {
	return func(es *EventStore) error {
		if tableName == "" {
			return eventstore.ErrEmptyEventsTableName
		}

		es.eventsTableName = tableName

		return nil
	}
}

// WithVersionsTableName sets the table name stream versions are tracked in.
// Only meaningful together with a version-tracking ConsistencyGuarantee.
func WithVersionsTableName(tableName string) Option {
	return func(es *EventStore) error {
		if tableName == "" {
			return eventstore.ErrEmptyVersionsTableName
		}

		es.versionsTableName = tableName

		return nil
	}
}

// WithConsistencyGuarantee selects the write-time consistency strategy
// (spec §4.3). Defaults to eventstore.TransactionalGuarantee.
func WithConsistencyGuarantee(guarantee eventstore.ConsistencyGuarantee) Option {
	return func(es *EventStore) error {
		es.guarantee = guarantee

		if guarantee.VersionsTableName() != "" {
			es.versionsTableName = guarantee.VersionsTableName()
		}

		return nil
	}
}

// WithTimeRepresentation selects how the "time" CloudEvents attribute is
// persisted. Defaults to eventstore.TimeRepresentationRFC3339String.
func WithTimeRepresentation(representation eventstore.TimeRepresentation) Option {
	return func(es *EventStore) error {
		es.timeRepresentation = representation
		return nil
	}
}

// WithEventFormat overrides the cloudevent.Format used to serialize and
// deserialize stored documents. Defaults to cloudevent.JSON().
func WithEventFormat(format cloudevent.Format) Option {
	return func(es *EventStore) error {
		es.format = format
		return nil
	}
}

// WithLogger sets the logger for the EventStore.
// The logger will receive messages at different levels based on the
// logger's configured level:
//
// Debug level: SQL queries with execution timing (development use)
// Info level: Event counts, durations (production-safe)
// Warn level: Non-critical issues like cleanup failures
// Error level: Critical failures that cause operation failures.
func WithLogger(logger eventstore.Logger) Option {
	return func(es *EventStore) error {
		es.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the EventStore.
func WithMetrics(collector eventstore.MetricsCollector) Option {
	return func(es *EventStore) error {
		es.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the EventStore.
func WithTracing(collector eventstore.TracingCollector) Option {
	return func(es *EventStore) error {
		es.tracingCollector = collector
		return nil
	}
}

// WithContextualLogger sets the context-aware logger for the EventStore.
func WithContextualLogger(logger eventstore.ContextualLogger) Option {
	return func(es *EventStore) error {
		es.contextualLogger = logger
		return nil
	}
}

// WithReadReplicaPGXPool routes reads made under eventstore.EventualConsistency
// contexts to a separate pgxpool.Pool (e.g. a PostgreSQL streaming replica).
// Writes and eventstore.StrongConsistency reads always go through the
// primary connection the EventStore was constructed with.
func WithReadReplicaPGXPool(db *pgxpool.Pool) Option {
	return func(es *EventStore) error {
		if db == nil {
			return eventstore.ErrNilDatabaseConnection
		}

		es.readDB = adapters.NewPGXAdapter(db)

		return nil
	}
}

// WithReadReplicaSQLDB is the database/sql equivalent of WithReadReplicaPGXPool.
func WithReadReplicaSQLDB(db *sql.DB) Option {
	return func(es *EventStore) error {
		if db == nil {
			return eventstore.ErrNilDatabaseConnection
		}

		es.readDB = adapters.NewSQLAdapter(db)

		return nil
	}
}

// WithReadReplicaSQLX is the sqlx equivalent of WithReadReplicaPGXPool.
func WithReadReplicaSQLX(db *sqlx.DB) Option {
	return func(es *EventStore) error {
		if db == nil {
			return eventstore.ErrNilDatabaseConnection
		}

		es.readDB = adapters.NewSQLXAdapter(db)

		return nil
	}
}
