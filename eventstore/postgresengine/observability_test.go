package postgresengine

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/occurrent-go/occurrent/eventstore"
	"github.com/occurrent-go/occurrent/testutil/observability"
)

func Test_LogError_WritesErrorLevelWithErrorAttr(t *testing.T) {
	handler := observability.NewTestLogHandler(false)
	es := EventStore{logger: slog.New(handler)}

	es.logError("encoding event failed", errors.New("boom"), "stream_id", "s1")

	assert.True(t, handler.HasRecord(slog.LevelError, "encoding event failed"))
	assert.True(t, handler.HasRecordWithAttr(slog.LevelError, "encoding event failed", "error"))
}

func Test_LogError_NoopWithoutLogger(t *testing.T) {
	es := EventStore{}

	assert.NotPanics(t, func() { es.logError("encoding event failed", errors.New("boom")) })
}

func Test_LogWarn_WritesWarnLevel(t *testing.T) {
	handler := observability.NewTestLogHandler(false)
	es := EventStore{logger: slog.New(handler)}

	es.logWarn("closing rows failed", errors.New("boom"))

	assert.True(t, handler.HasRecord(slog.LevelWarn, "closing rows failed"))
}

func Test_RecordDuration_ForwardsToMetricsCollector(t *testing.T) {
	collector := observability.NewTestMetricsCollector()
	es := EventStore{metricsCollector: collector}

	es.recordDuration(context.Background(), metricAppendDuration, 5*time.Millisecond, operationAppend, statusSuccess)

	assert.True(t, collector.HasDurationRecord(metricAppendDuration))
}

func Test_RecordDuration_NoopWithoutCollector(t *testing.T) {
	es := EventStore{}

	assert.NotPanics(t, func() {
		es.recordDuration(context.Background(), metricAppendDuration, time.Millisecond, operationAppend, statusSuccess)
	})
}

func Test_RecordValue_ForwardsToMetricsCollector(t *testing.T) {
	collector := observability.NewTestMetricsCollector()
	es := EventStore{metricsCollector: collector}

	es.recordValue(context.Background(), metricEventsAppended, 3, operationAppend, statusSuccess)

	assert.True(t, collector.HasValueRecord(metricEventsAppended))
}

func Test_RecordErrorMetric_IncrementsDatabaseErrorCounter(t *testing.T) {
	collector := observability.NewTestMetricsCollector()
	es := EventStore{metricsCollector: collector}

	es.recordErrorMetric(context.Background(), operationAppend, eventstore.ErrStoreUnavailable)

	records := collector.CounterRecords()
	assert.Len(t, records, 1)
	assert.Equal(t, metricDatabaseErrors, records[0].Metric)
	assert.Equal(t, "eventstore_error", records[0].Labels[attrErrorType])
}

func Test_RecordConcurrencyConflict_IncrementsCounter(t *testing.T) {
	collector := observability.NewTestMetricsCollector()
	es := EventStore{metricsCollector: collector}

	es.recordConcurrencyConflict(operationAppend)

	assert.True(t, collector.HasCounterRecord(metricConcurrencyConflict))
}

func Test_StartAndFinishSpan_RecordsLifecycle(t *testing.T) {
	collector := observability.NewTestTracingCollector()
	es := EventStore{tracingCollector: collector}

	_, span := es.startSpan(context.Background(), spanNameAppend, operationAppend)
	es.finishSpan(span, statusSuccess)

	assert.True(t, collector.HasSpanRecord(spanNameAppend))

	records := collector.SpanRecords()
	assert.Equal(t, statusSuccess, records[0].Status)
}

func Test_StartSpan_NoopWithoutTracingCollector(t *testing.T) {
	es := EventStore{}

	ctx, span := es.startSpan(context.Background(), spanNameAppend, operationAppend)

	assert.Nil(t, span)
	assert.NotNil(t, ctx)

	assert.NotPanics(t, func() { es.finishSpan(span, statusSuccess) })
}

func Test_LogOperation_PrefersContextualLogger(t *testing.T) {
	contextual := observability.NewTestContextualLogger()
	handler := observability.NewTestLogHandler(false)
	es := EventStore{contextualLogger: contextual, logger: slog.New(handler)}

	es.logOperation(context.Background(), "events appended", "event_count", 2)

	assert.True(t, contextual.HasRecord("info", "events appended"))
	assert.Equal(t, 0, handler.RecordCount())
}

func Test_LogOperation_FallsBackToPlainLogger(t *testing.T) {
	handler := observability.NewTestLogHandler(false)
	es := EventStore{logger: slog.New(handler)}

	es.logOperation(context.Background(), "events appended", "event_count", 2)

	assert.True(t, handler.HasRecord(slog.LevelInfo, "events appended"))
}

func Test_RecordAppendSuccess_EmitsSpanMetricsAndLog(t *testing.T) {
	metrics := observability.NewTestMetricsCollector()
	tracing := observability.NewTestTracingCollector()
	handler := observability.NewTestLogHandler(false)
	es := EventStore{metricsCollector: metrics, tracingCollector: tracing, logger: slog.New(handler)}

	es.recordAppendSuccess(context.Background(), 2*time.Millisecond, 3)

	assert.True(t, tracing.HasSpanRecord(spanNameAppend))
	assert.True(t, metrics.HasDurationRecord(metricAppendDuration))
	assert.True(t, metrics.HasValueRecord(metricEventsAppended))
	assert.True(t, handler.HasRecord(slog.LevelInfo, "events appended"))
}

func Test_RecordAppendError_RecordsConcurrencyConflictOnWriteConditionFailure(t *testing.T) {
	metrics := observability.NewTestMetricsCollector()
	es := EventStore{metricsCollector: metrics}

	err := eventstore.NewWriteConditionNotFulfilledError("equal to 1", 2)
	es.recordAppendError(context.Background(), time.Millisecond, err)

	assert.True(t, metrics.HasCounterRecord(metricConcurrencyConflict))
	assert.True(t, metrics.HasCounterRecord(metricDatabaseErrors))
}

func Test_RecordQuerySuccess_EmitsSpanAndMetrics(t *testing.T) {
	metrics := observability.NewTestMetricsCollector()
	tracing := observability.NewTestTracingCollector()
	es := EventStore{metricsCollector: metrics, tracingCollector: tracing}

	es.recordQuerySuccess(context.Background(), time.Millisecond, 5)

	assert.True(t, tracing.HasSpanRecord(spanNameQuery))
	assert.True(t, metrics.HasDurationRecord(metricQueryDuration))
	assert.True(t, metrics.HasValueRecord(metricEventsQueried))
}

func Test_ErrorType(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"write_condition_not_fulfilled", eventstore.NewWriteConditionNotFulfilledError("equal to 1", 2), "write_condition_not_fulfilled"},
		{"duplicate_event_id", eventstore.ErrDuplicateEventID, "duplicate_event_id"},
		{"write_condition_not_supported", eventstore.ErrWriteConditionNotSupported, "write_condition_not_supported"},
		{"generic", eventstore.ErrStoreUnavailable, "eventstore_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorType(tt.err))
		})
	}
}
