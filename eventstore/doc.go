// Package eventstore provides core, storage-agnostic abstractions for an
// append-only CloudEvents event store: the CloudEvent-to-document mapper,
// the write-condition algebra evaluated before every conditional write, the
// consistency-guarantee strategies dispatched at write time, and the
// observability seams (Logger, MetricsCollector, TracingCollector) that
// concrete engines report through.
//
// Concrete storage engines live in subpackages, e.g. postgresengine, which
// evaluate WriteCondition trees against a stream's stored version and drive the
// GuaranteeKind-selected write algorithm against a specific document store.
package eventstore
