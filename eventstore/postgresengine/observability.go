package postgresengine

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/occurrent-go/occurrent/eventstore"
)

const (
	metricAppendDuration      = "occurrent_append_duration_ms"
	metricQueryDuration       = "occurrent_query_duration_ms"
	metricEventsAppended      = "occurrent_events_appended"
	metricEventsQueried       = "occurrent_events_queried"
	metricDatabaseErrors      = "occurrent_database_errors"
	metricConcurrencyConflict = "occurrent_concurrency_conflicts"

	spanNameAppend = "eventstore.append"
	spanNameQuery  = "eventstore.read"

	operationAppend = "append"
	operationQuery  = "read"

	statusSuccess = "success"
	statusError   = "error"

	attrOperation = "operation"
	attrStatus    = "status"
	attrErrorType = "error_type"
)

func (es EventStore) logError(message string, err error, args ...any) {
	if es.logger == nil {
		return
	}

	allArgs := append([]any{"error", err.Error()}, args...)
	es.logger.Error(message, allArgs...)
}

func (es EventStore) logWarn(message string, err error) {
	if es.logger == nil {
		return
	}

	es.logger.Warn(message, "error", err.Error())
}

func (es EventStore) toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

func (es EventStore) recordDuration(ctx context.Context, metric string, duration time.Duration, operation, status string) {
	if es.metricsCollector == nil {
		return
	}

	labels := map[string]string{attrOperation: operation, attrStatus: status}

	if contextual, ok := es.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, metric, duration, labels)
		return
	}

	es.metricsCollector.RecordDuration(metric, duration, labels)
}

func (es EventStore) recordValue(ctx context.Context, metric string, value float64, operation, status string) {
	if es.metricsCollector == nil {
		return
	}

	labels := map[string]string{attrOperation: operation, attrStatus: status}

	if contextual, ok := es.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextual.RecordValueContext(ctx, metric, value, labels)
		return
	}

	es.metricsCollector.RecordValue(metric, value, labels)
}

func (es EventStore) recordErrorMetric(ctx context.Context, operation string, err error) {
	if es.metricsCollector == nil {
		return
	}

	labels := map[string]string{attrOperation: operation, attrStatus: statusError, attrErrorType: errorType(err)}

	if contextual, ok := es.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metricDatabaseErrors, labels)
		return
	}

	es.metricsCollector.IncrementCounter(metricDatabaseErrors, labels)
}

func (es EventStore) recordConcurrencyConflict(operation string) {
	if es.metricsCollector == nil {
		return
	}

	es.metricsCollector.IncrementCounter(metricConcurrencyConflict, map[string]string{attrOperation: operation})
}

func (es EventStore) recordAppendSuccess(ctx context.Context, duration time.Duration, eventCount int) {
	ctx, span := es.startSpan(ctx, spanNameAppend, operationAppend)
	defer es.finishSpan(span, statusSuccess)

	es.recordDuration(ctx, metricAppendDuration, duration, operationAppend, statusSuccess)
	es.recordValue(ctx, metricEventsAppended, float64(eventCount), operationAppend, statusSuccess)
	es.logOperation(ctx, "events appended", "event_count", eventCount, "duration_ms", es.toMilliseconds(duration))
}

func (es EventStore) recordAppendError(ctx context.Context, duration time.Duration, err error) {
	ctx, span := es.startSpan(ctx, spanNameAppend, operationAppend)
	defer es.finishSpan(span, statusError)

	es.recordDuration(ctx, metricAppendDuration, duration, operationAppend, statusError)
	es.recordErrorMetric(ctx, operationAppend, err)

	var notFulfilled *eventstore.WriteConditionNotFulfilledError
	if errors.As(err, &notFulfilled) {
		es.recordConcurrencyConflict(operationAppend)
	}
}

func (es EventStore) recordQuerySuccess(ctx context.Context, duration time.Duration, eventCount int) {
	ctx, span := es.startSpan(ctx, spanNameQuery, operationQuery)
	defer es.finishSpan(span, statusSuccess)

	es.recordDuration(ctx, metricQueryDuration, duration, operationQuery, statusSuccess)
	es.recordValue(ctx, metricEventsQueried, float64(eventCount), operationQuery, statusSuccess)
}

func (es EventStore) startSpan(ctx context.Context, name, operation string) (context.Context, eventstore.SpanContext) {
	if es.tracingCollector == nil {
		return ctx, nil
	}

	return es.tracingCollector.StartSpan(ctx, name, map[string]string{attrOperation: operation})
}

func (es EventStore) finishSpan(span eventstore.SpanContext, status string) {
	if es.tracingCollector == nil || span == nil {
		return
	}

	es.tracingCollector.FinishSpan(span, status, nil)
}

func (es EventStore) logOperation(ctx context.Context, message string, args ...any) {
	if es.contextualLogger != nil {
		es.contextualLogger.InfoContext(ctx, message, args...)
		return
	}

	if es.logger != nil {
		es.logger.Info(message, args...)
	}
}

func errorType(err error) string {
	var notFulfilled *eventstore.WriteConditionNotFulfilledError

	switch {
	case errors.As(err, &notFulfilled):
		return "write_condition_not_fulfilled"
	case errors.Is(err, eventstore.ErrDuplicateEventID):
		return "duplicate_event_id"
	case errors.Is(err, eventstore.ErrWriteConditionNotSupported):
		return "write_condition_not_supported"
	default:
		return "eventstore_error"
	}
}
