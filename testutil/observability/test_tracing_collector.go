package observability

import (
	"context"
	"sync"

	"github.com/occurrent-go/occurrent/eventstore"
)

// TestSpanContext is an eventstore.SpanContext implementation that records
// status and attributes for inspection in tests.
type TestSpanContext struct {
	status     string
	attributes map[string]string
	mu         sync.Mutex
}

// SetStatus implements eventstore.SpanContext.
func (s *TestSpanContext) SetStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// AddAttribute implements eventstore.SpanContext.
func (s *TestSpanContext) AddAttribute(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attributes == nil {
		s.attributes = make(map[string]string)
	}

	s.attributes[key] = value
}

// Status returns the span's current status.
func (s *TestSpanContext) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// TestTracingCollector is an eventstore.TracingCollector implementation that
// captures span starts/finishes for inspection in tests.
type TestTracingCollector struct {
	spanRecords []SpanRecord
	mu          sync.Mutex
}

// SpanRecord represents a recorded span lifecycle.
type SpanRecord struct {
	Name            string
	StartAttributes map[string]string
	Status          string
	EndAttributes   map[string]string
	SpanContext     *TestSpanContext
}

// NewTestTracingCollector creates a new TestTracingCollector.
func NewTestTracingCollector() *TestTracingCollector {
	return &TestTracingCollector{}
}

// StartSpan implements eventstore.TracingCollector.
func (c *TestTracingCollector) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, eventstore.SpanContext) {
	c.mu.Lock()
	defer c.mu.Unlock()

	spanCtx := &TestSpanContext{attributes: make(map[string]string)}

	c.spanRecords = append(c.spanRecords, SpanRecord{
		Name:            name,
		StartAttributes: copyLabels(attrs),
		SpanContext:     spanCtx,
	})

	return ctx, spanCtx
}

// FinishSpan implements eventstore.TracingCollector.
func (c *TestTracingCollector) FinishSpan(spanCtx eventstore.SpanContext, status string, attrs map[string]string) {
	if spanCtx == nil {
		return
	}

	testSpanCtx, ok := spanCtx.(*TestSpanContext)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.spanRecords {
		if c.spanRecords[i].SpanContext == testSpanCtx {
			c.spanRecords[i].Status = status
			c.spanRecords[i].EndAttributes = copyLabels(attrs)
			break
		}
	}
}

// SpanRecords returns a copy of all captured span records.
func (c *TestTracingCollector) SpanRecords() []SpanRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]SpanRecord(nil), c.spanRecords...)
}

// HasSpanRecord reports whether a span record with the given name exists.
func (c *TestTracingCollector) HasSpanRecord(name string) bool {
	for _, record := range c.SpanRecords() {
		if record.Name == name {
			return true
		}
	}

	return false
}

var _ eventstore.TracingCollector = (*TestTracingCollector)(nil)
