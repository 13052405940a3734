// Package postgresengine provides a PostgreSQL implementation of the
// eventstore interfaces: an append-only events table, an optional stream
// version table, and the write-condition-enforcing Append operation
// dispatched per eventstore.ConsistencyGuarantee.
//
// Key features:
//   - Multiple database adapter support (pgx, sql.DB, sqlx)
//   - Write conditions enforced via the fetch/evaluate/insert/upsert
//     algorithm, or bypassed entirely for bulk, unconditional appends
//   - Configurable events/versions table names, time representation, and
//     wire format
//   - Logger, MetricsCollector, TracingCollector, and ContextualLogger seams
//
// Usage:
//
//	db, _ := pgxpool.New(context.Background(), dsn)
//	store, _ := postgresengine.NewEventStoreFromPGXPool(db)
//	_ = store.EnsureSchema(ctx)
//
//	err := store.Append(ctx, streamID, eventstore.StreamVersionEq(0), event)
//	stream, err := store.Read(ctx, streamID, 0, 0)
package postgresengine
