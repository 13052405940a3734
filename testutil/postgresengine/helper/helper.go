// Package helper provides CloudEvent fixtures and "Given..." arrangement
// functions shared by the postgresengine integration tests.
package helper

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/occurrent-go/occurrent/cloudevent"
	"github.com/occurrent-go/occurrent/eventstore"
	"github.com/occurrent-go/occurrent/eventstore/postgresengine"
)

const testSource = "urn:occurrent:test"

// GivenUniqueStreamID returns a fresh, time-ordered stream id for test
// isolation.
func GivenUniqueStreamID(t testing.TB) string {
	id, err := uuid.NewV7()
	assert.NoError(t, err, "error in arranging test data")

	return id.String()
}

func mustEventID(t testing.TB) string {
	id, err := uuid.NewV7()
	assert.NoError(t, err, "error in arranging test data")

	return id.String()
}

// FixtureOrderPlaced builds a sample CloudEvent for an "order placed" fact.
func FixtureOrderPlaced(t testing.TB, orderID string, at time.Time) cloudevent.Event {
	event, err := cloudevent.New(mustEventID(t), testSource, "com.example.order.placed").
		WithTime(at).
		WithSubject(orderID).
		WithDataContentType("application/json").
		WithData([]byte(fmt.Sprintf(`{"orderId":%q,"amountCents":1999}`, orderID))).
		Build()
	assert.NoError(t, err, "error in arranging test data")

	return event
}

// FixtureOrderShipped builds a sample CloudEvent for an "order shipped" fact.
func FixtureOrderShipped(t testing.TB, orderID string, at time.Time) cloudevent.Event {
	event, err := cloudevent.New(mustEventID(t), testSource, "com.example.order.shipped").
		WithTime(at).
		WithSubject(orderID).
		WithDataContentType("application/json").
		WithData([]byte(fmt.Sprintf(`{"orderId":%q,"carrier":"parcel-post"}`, orderID))).
		Build()
	assert.NoError(t, err, "error in arranging test data")

	return event
}

// FixtureOrderCancelled builds a sample CloudEvent for an "order cancelled" fact.
func FixtureOrderCancelled(t testing.TB, orderID string, at time.Time) cloudevent.Event {
	event, err := cloudevent.New(mustEventID(t), testSource, "com.example.order.cancelled").
		WithTime(at).
		WithSubject(orderID).
		WithDataContentType("application/json").
		WithData([]byte(fmt.Sprintf(`{"orderId":%q,"reason":"customer request"}`, orderID))).
		Build()
	assert.NoError(t, err, "error in arranging test data")

	return event
}

// FixtureOtherDomainEvent builds a CloudEvent of an unrelated type, used to
// verify that subscription filters and stream reads do not leak events from
// other streams or types.
func FixtureOtherDomainEvent(t testing.TB, subject string, at time.Time) cloudevent.Event {
	event, err := cloudevent.New(mustEventID(t), testSource, "com.example.inventory.restocked").
		WithTime(at).
		WithSubject(subject).
		WithDataContentType("application/json").
		WithData([]byte(fmt.Sprintf(`{"sku":%q,"quantity":42}`, subject))).
		Build()
	assert.NoError(t, err, "error in arranging test data")

	return event
}

// GivenOrderPlacedWasAppended appends a FixtureOrderPlaced onto streamID,
// expecting the stream to not yet exist (version 0).
func GivenOrderPlacedWasAppended(
	t testing.TB,
	ctx context.Context,
	es postgresengine.EventStore,
	streamID string,
	orderID string,
	at time.Time,
) cloudevent.Event {
	event := FixtureOrderPlaced(t, orderID, at)

	err := es.Append(ctx, streamID, eventstore.StreamVersionEq(0), event)
	assert.NoError(t, err, "error in arranging test data")

	return event
}

// GivenEventsWereAppended appends events onto streamID unconditionally
// (eventstore.AnyStreamVersion) and returns the stream's version afterward.
func GivenEventsWereAppended(
	t testing.TB,
	ctx context.Context,
	es postgresengine.EventStore,
	streamID string,
	events ...cloudevent.Event,
) uint64 {
	err := es.Append(ctx, streamID, eventstore.AnyStreamVersion(), events...)
	assert.NoError(t, err, "error in arranging test data")

	stream, err := es.Read(ctx, streamID, 0, 0)
	assert.NoError(t, err, "error in arranging test data")

	return stream.Version
}

// GivenSomeOtherEventsWereAppended seeds an unrelated stream, used to assert
// that reads and subscriptions stay scoped to the stream/filter under test.
func GivenSomeOtherEventsWereAppended(
	t testing.TB,
	ctx context.Context,
	es postgresengine.EventStore,
	at time.Time,
) {
	otherStreamID := GivenUniqueStreamID(t)

	err := es.Append(
		ctx,
		otherStreamID,
		eventstore.AnyStreamVersion(),
		FixtureOtherDomainEvent(t, "sku-"+otherStreamID, at),
	)
	assert.NoError(t, err, "error in arranging test data")
}
