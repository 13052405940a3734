package postgreswrapper

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"

	"github.com/occurrent-go/occurrent/eventstore/postgresengine"
	"github.com/occurrent-go/occurrent/testutil/postgresengine/config"
)

// Engine type constants
const (
	typePGXPool = "pgx.pool"
	typeSQLDB   = "sql.db"
	typeSQLXDB  = "sqlx.db"
)

// Wrapper interface to abstract over different engine types
type Wrapper interface {
	GetEventStore() postgresengine.EventStore
	Close()
}

// PGXPoolWrapper wraps pgxpool-based testing
type PGXPoolWrapper struct {
	pool *pgxpool.Pool
	es   postgresengine.EventStore
}

func (e *PGXPoolWrapper) GetEventStore() postgresengine.EventStore {
	return e.es
}

func (e *PGXPoolWrapper) Close() {
	e.pool.Close()
}

// SQLDBWrapper wraps sql.DB-based testing
type SQLDBWrapper struct {
	db *sql.DB
	es postgresengine.EventStore
}

func (e *SQLDBWrapper) GetEventStore() postgresengine.EventStore {
	return e.es
}

func (e *SQLDBWrapper) Close() {
	_ = e.db.Close() // ignore error
}

// SQLXWrapper wraps sqlx.DB-based testing
type SQLXWrapper struct {
	db *sqlx.DB
	es postgresengine.EventStore
}

func (e *SQLXWrapper) GetEventStore() postgresengine.EventStore {
	return e.es
}

func (e *SQLXWrapper) Close() {
	_ = e.db.Close() // ignore error
}

// CreateWrapperWithTestConfig creates the appropriate wrapper based on the ADAPTER_TYPE environment variable.
func CreateWrapperWithTestConfig(t testing.TB) Wrapper {
	return createWrapperWithTestConfig(t, "events")
}

// TryCreateEventStoreWithTableName tries to create an event store with the given table name and returns the error (for testing error cases).
func TryCreateEventStoreWithTableName(t testing.TB, tableName string) error {
	engineTypeFromEnv := strings.ToLower(os.Getenv("ADAPTER_TYPE"))

	var options []postgresengine.Option
	if tableName != "events" {
		options = append(options, postgresengine.WithEventsTableName(tableName))
	}

	switch engineTypeFromEnv {
	case typePGXPool, "":
		connPool, err := pgxpool.NewWithConfig(context.Background(), config.PostgresPGXPoolSingleConfig())
		assert.NoError(t, err, "error connecting to DB pool in test setup")
		defer connPool.Close()

		_, err = postgresengine.NewEventStoreFromPGXPool(connPool, options...)
		return err

	case typeSQLDB:
		db := config.PostgresSQLDBSingleConfig()
		defer func(db *sql.DB) {
			_ = db.Close() // makes no sense to handle this
		}(db)

		_, err := postgresengine.NewEventStoreFromSQLDB(db, options...)
		return err

	case typeSQLXDB:
		db := config.PostgresSQLXSingleConfig()
		defer func(db *sqlx.DB) {
			_ = db.Close() // makes no sense to handle this
		}(db)

		_, err := postgresengine.NewEventStoreFromSQLX(db, options...)
		return err

	default: // neither one of the known types nor empty
		panic(fmt.Sprintf("unsupported wrapper type from env: %s", engineTypeFromEnv))
	}
}

// createWrapperWithTestConfig is the internal function that handles both default and custom table names.
func createWrapperWithTestConfig(t testing.TB, tableName string) Wrapper {
	engineTypeFromEnv := strings.ToLower(os.Getenv("ADAPTER_TYPE"))

	var options []postgresengine.Option
	if tableName != "events" {
		options = append(options, postgresengine.WithEventsTableName(tableName))
	}

	switch engineTypeFromEnv {
	case typePGXPool, "":
		connPool, err := pgxpool.NewWithConfig(context.Background(), config.PostgresPGXPoolSingleConfig())
		assert.NoError(t, err, "error connecting to DB pool in test setup")

		es, err := postgresengine.NewEventStoreFromPGXPool(connPool, options...)
		assert.NoError(t, err, "error creating event store")

		assert.NoError(t, es.EnsureSchema(context.Background()), "error ensuring schema in test setup")

		return &PGXPoolWrapper{pool: connPool, es: es}

	case typeSQLDB:
		db := config.PostgresSQLDBSingleConfig()

		es, err := postgresengine.NewEventStoreFromSQLDB(db, options...)
		assert.NoError(t, err, "error creating event store")

		assert.NoError(t, es.EnsureSchema(context.Background()), "error ensuring schema in test setup")

		return &SQLDBWrapper{db: db, es: es}

	case typeSQLXDB:
		db := config.PostgresSQLXSingleConfig()

		es, err := postgresengine.NewEventStoreFromSQLX(db, options...)
		assert.NoError(t, err, "error creating event store")

		assert.NoError(t, es.EnsureSchema(context.Background()), "error ensuring schema in test setup")

		return &SQLXWrapper{db: db, es: es}

	default: // neither one of the known types nor empty
		panic(fmt.Sprintf("unsupported wrapper type from env: %s", engineTypeFromEnv))
	}
}

// CreateWrapperWithBenchmarkConfig creates the appropriate wrapper based on the ADAPTER_TYPE environment variable.
func CreateWrapperWithBenchmarkConfig(t testing.TB) Wrapper {
	engineTypeFromEnv := strings.ToLower(os.Getenv("ADAPTER_TYPE"))

	switch engineTypeFromEnv {
	case typePGXPool, "":
		connPool, err := pgxpool.NewWithConfig(context.Background(), config.PostgresPGXPoolPrimaryConfig())
		assert.NoError(t, err, "error connecting to DB pool in test setup")
		es, err := postgresengine.NewEventStoreFromPGXPool(connPool)
		assert.NoError(t, err, "error creating event store")

		return &PGXPoolWrapper{pool: connPool, es: es}

	case typeSQLDB:
		db := config.PostgresSQLDBPrimaryConfig()
		es, err := postgresengine.NewEventStoreFromSQLDB(db)
		assert.NoError(t, err, "error creating event store")

		return &SQLDBWrapper{db: db, es: es}

	case typeSQLXDB:
		db := config.PostgresSQLXPrimaryConfig()
		es, err := postgresengine.NewEventStoreFromSQLX(db)
		assert.NoError(t, err, "error creating event store")

		return &SQLXWrapper{db: db, es: es}

	default: // neither one of the known types nor empty
		panic(fmt.Sprintf("unsupported wrapper type from env: %s", engineTypeFromEnv))
	}
}

// CleanUp truncates the events table for the given wrapper.
func CleanUp(t testing.TB, wrapper Wrapper) {
	switch e := wrapper.(type) {
	case *PGXPoolWrapper:
		_, err := e.pool.Exec(context.Background(), "TRUNCATE TABLE events RESTART IDENTITY")
		assert.NoError(t, err, "error cleaning up the events table")

	case *SQLDBWrapper:
		_, err := e.db.Exec("TRUNCATE TABLE events RESTART IDENTITY")
		assert.NoError(t, err, "error cleaning up the events table")

	case *SQLXWrapper:
		_, err := e.db.Exec("TRUNCATE TABLE events RESTART IDENTITY")
		assert.NoError(t, err, "error cleaning up the events table")

	default:
		panic(fmt.Sprintf("unsupported wrapper type: %T", e))
	}
}

// GetGreatestEventTimeFromDB gets the maximum event_time from the events table for the given wrapper.
func GetGreatestEventTimeFromDB(t testing.TB, wrapper Wrapper) time.Time {
	var greatestEventTime time.Time
	var err error

	switch e := wrapper.(type) {
	case *PGXPoolWrapper:
		row := e.pool.QueryRow(context.Background(), `select max(event_time) from events`)
		err = row.Scan(&greatestEventTime)

	case *SQLDBWrapper:
		row := e.db.QueryRow(`select max(event_time) from events`)
		err = row.Scan(&greatestEventTime)

	case *SQLXWrapper:
		row := e.db.QueryRow(`select max(event_time) from events`)
		err = row.Scan(&greatestEventTime)

	default:
		panic(fmt.Sprintf("unsupported wrapper type: %T", e))
	}

	assert.NoError(t, err, "error in arranging test data")
	return greatestEventTime
}

// GetLatestStreamIDFromDB gets the streamid of the most recently inserted event for the given wrapper.
func GetLatestStreamIDFromDB(t testing.TB, wrapper Wrapper) string {
	var streamID string
	var err error

	switch e := wrapper.(type) {
	case *PGXPoolWrapper:
		row := e.pool.QueryRow(context.Background(), `select streamid from events order by seq desc limit 1`)
		err = row.Scan(&streamID)

	case *SQLDBWrapper:
		row := e.db.QueryRow(`select streamid from events order by seq desc limit 1`)
		err = row.Scan(&streamID)

	case *SQLXWrapper:
		row := e.db.QueryRow(`select streamid from events order by seq desc limit 1`)
		err = row.Scan(&streamID)

	default:
		panic(fmt.Sprintf("unsupported wrapper type: %T", e))
	}

	assert.NoError(t, err, "error in arranging test data")
	assert.NotEmpty(t, streamID, "error in arranging test data")
	return streamID
}

// GuardThatThereAreEnoughFixtureEventsInStore checks if there are enough fixture events in the store for the given wrapper.
func GuardThatThereAreEnoughFixtureEventsInStore(wrapper Wrapper, expectedNumEvents int) {
	var cnt int
	var err error

	switch e := wrapper.(type) {
	case *PGXPoolWrapper:
		row := e.pool.QueryRow(context.Background(), `SELECT count(*) FROM events`)
		err = row.Scan(&cnt)

	case *SQLDBWrapper:
		row := e.db.QueryRow(`SELECT count(*) FROM events`)
		err = row.Scan(&cnt)

	case *SQLXWrapper:
		row := e.db.QueryRow(`SELECT count(*) FROM events`)
		err = row.Scan(&cnt)

	default:
		panic(fmt.Sprintf("unsupported wrapper type: %T", e))
	}

	if err != nil {
		panic(err)
	}

	if cnt < expectedNumEvents {
		panic("not enough fixture events in the DB")
	}
}

// CleanUpStreamEvents deletes all events belonging to streamID, for benchmark cleanup.
func CleanUpStreamEvents(wrapper Wrapper, streamID string) (rowsAffected int64, err error) {
	query := fmt.Sprintf(`DELETE FROM events WHERE streamid = '%s'`, streamID)

	switch e := wrapper.(type) {
	case *PGXPoolWrapper:
		cmdTag, execErr := e.pool.Exec(context.Background(), query)
		if execErr != nil {
			return 0, execErr
		}
		return cmdTag.RowsAffected(), nil

	case *SQLDBWrapper:
		result, execErr := e.db.Exec(query)
		if execErr != nil {
			return 0, execErr
		}
		return result.RowsAffected()

	case *SQLXWrapper:
		result, execErr := e.db.Exec(query)
		if execErr != nil {
			return 0, execErr
		}
		return result.RowsAffected()

	default:
		panic(fmt.Sprintf("unsupported wrapper type: %T", e))
	}
}

// OptimizeDBForWhileBenchmarking runs VACUUM ANALYZE on the events table for the given wrapper.
func OptimizeDBForWhileBenchmarking(wrapper Wrapper) error {
	query := `VACUUM ANALYZE EVENTS`

	switch e := wrapper.(type) {
	case *PGXPoolWrapper:
		_, execErr := e.pool.Exec(context.Background(), query)
		if execErr != nil {
			return execErr
		}

		return nil

	case *SQLDBWrapper:
		_, execErr := e.db.Exec(query)
		if execErr != nil {
			return execErr
		}

		return nil

	case *SQLXWrapper:
		_, execErr := e.db.Exec(query)
		if execErr != nil {
			return execErr
		}

		return nil

	default:
		panic(fmt.Sprintf("unsupported wrapper type: %T", e))
	}
}
