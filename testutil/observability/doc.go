// Package observability provides in-memory test doubles for the dependency-free
// observability seams eventstore.Logger, eventstore.MetricsCollector,
// eventstore.TracingCollector and eventstore.ContextualLogger, so callers can
// assert on what an EventStore or subscription.Engine actually logged, counted,
// or traced without wiring a real backend.
//
// It carries no dependency on postgresengine or subscription, so it can be
// imported from either package's own test files without an import cycle.
package observability
