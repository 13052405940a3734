// Package helper provides CloudEvent fixtures and "Given..." arrangement
// functions for PostgreSQL event store integration tests. Generic observability
// test doubles (logger, metrics, tracing) live in testutil/observability
// instead, since this package imports postgresengine and cannot be imported
// back from postgresengine's own test files.
package helper
