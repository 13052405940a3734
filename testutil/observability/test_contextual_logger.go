package observability

import (
	"context"
	"sync"

	"github.com/occurrent-go/occurrent/eventstore"
)

// TestContextualLogger is an eventstore.ContextualLogger implementation that
// captures context-aware log calls for inspection in tests.
type TestContextualLogger struct {
	records []ContextualLogRecord
	mu      sync.Mutex
}

// ContextualLogRecord represents a recorded contextual log call.
type ContextualLogRecord struct {
	Level   string
	Message string
	Args    []any
}

// NewTestContextualLogger creates a new TestContextualLogger.
func NewTestContextualLogger() *TestContextualLogger {
	return &TestContextualLogger{}
}

func (l *TestContextualLogger) record(level, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append(l.records, ContextualLogRecord{Level: level, Message: msg, Args: args})
}

// DebugContext implements eventstore.ContextualLogger.
func (l *TestContextualLogger) DebugContext(_ context.Context, msg string, args ...any) {
	l.record("debug", msg, args...)
}

// InfoContext implements eventstore.ContextualLogger.
func (l *TestContextualLogger) InfoContext(_ context.Context, msg string, args ...any) {
	l.record("info", msg, args...)
}

// WarnContext implements eventstore.ContextualLogger.
func (l *TestContextualLogger) WarnContext(_ context.Context, msg string, args ...any) {
	l.record("warn", msg, args...)
}

// ErrorContext implements eventstore.ContextualLogger.
func (l *TestContextualLogger) ErrorContext(_ context.Context, msg string, args ...any) {
	l.record("error", msg, args...)
}

// Records returns a copy of all captured log records.
func (l *TestContextualLogger) Records() []ContextualLogRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]ContextualLogRecord(nil), l.records...)
}

// HasRecord reports whether a log record at level with the given message was captured.
func (l *TestContextualLogger) HasRecord(level, message string) bool {
	for _, record := range l.Records() {
		if record.Level == level && record.Message == message {
			return true
		}
	}

	return false
}

var _ eventstore.ContextualLogger = (*TestContextualLogger)(nil)
