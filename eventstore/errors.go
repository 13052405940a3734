package eventstore

import (
	"errors"
	"strconv"
)

var (
	// ErrEmptyEventsTableName is returned when a configured events table name is empty.
	ErrEmptyEventsTableName = errors.New("empty events table name supplied")

	// ErrEmptyVersionsTableName is returned when a configured versions table name is empty.
	ErrEmptyVersionsTableName = errors.New("empty versions table name supplied")

	// ErrNilDatabaseConnection is returned when a nil database handle is supplied to a store constructor.
	ErrNilDatabaseConnection = errors.New("nil database connection supplied")

	// ErrEmptyStreamID is returned when an operation is called with an empty stream id.
	ErrEmptyStreamID = errors.New("empty stream id supplied")

	// ErrStreamIDMismatch is returned when an event in a write batch carries a streamid
	// extension attribute that does not match the target stream (invariant 1, spec §3).
	ErrStreamIDMismatch = errors.New("event streamid does not match target stream")

	// ErrWriteConditionNotSupported is returned when a non-trivial WriteCondition is
	// supplied to a store configured with the None consistency guarantee.
	ErrWriteConditionNotSupported = errors.New("write condition not supported by this consistency guarantee")

	// ErrDuplicateEventID is returned when an insert violates the (streamid, eventId)
	// uniqueness index.
	ErrDuplicateEventID = errors.New("duplicate event id")

	// ErrInvalidTimePrecision is returned when encoding a CloudEvent with
	// TimeRepresentationDate and a time value that carries sub-millisecond precision.
	ErrInvalidTimePrecision = errors.New("cloudevent time contains sub-millisecond precision")

	// ErrInvalidTimeZone is returned when encoding a CloudEvent with
	// TimeRepresentationDate and a time value that is not in UTC.
	ErrInvalidTimeZone = errors.New("cloudevent time is not in UTC")

	// ErrStoreUnavailable signals a transient fault in the underlying document store;
	// callers may retry.
	ErrStoreUnavailable = errors.New("event store unavailable")

	// ErrSubscriptionFailed signals that a change feed cursor could not be
	// re-established after retries.
	ErrSubscriptionFailed = errors.New("subscription failed")

	// ErrBuildingQueryFailed is returned when the SQL query builder fails.
	ErrBuildingQueryFailed = errors.New("building query failed")

	// ErrQueryingEventsFailed is returned when the underlying query execution fails.
	ErrQueryingEventsFailed = errors.New("querying events failed")

	// ErrAppendingEventFailed is returned when the underlying insert execution fails.
	ErrAppendingEventFailed = errors.New("appending event failed")

	// ErrScanningDBRowFailed is returned when a result row cannot be scanned.
	ErrScanningDBRowFailed = errors.New("scanning db row failed")

	// ErrDecodingEventFailed is returned when a stored document cannot be decoded
	// back into a CloudEvent.
	ErrDecodingEventFailed = errors.New("decoding event failed")

	// ErrEncodingEventFailed is returned when a CloudEvent cannot be encoded into
	// a storable document.
	ErrEncodingEventFailed = errors.New("encoding event failed")

	// ErrGettingRowsAffectedFailed is returned when the rows-affected count cannot be read.
	ErrGettingRowsAffectedFailed = errors.New("getting rows affected failed")
)

// WriteConditionNotFulfilledError is returned when a WriteCondition evaluates to false
// against the stream's current version. It carries the canonical, fixed-format
// message prescribed by spec §4.2.
type WriteConditionNotFulfilledError struct {
	Message string
}

func (e *WriteConditionNotFulfilledError) Error() string {
	return e.Message
}

// NewWriteConditionNotFulfilledError builds the canonical error message:
// "WriteCondition was not fulfilled. Expected version to be <phrase> but was <actual>."
func NewWriteConditionNotFulfilledError(phrase string, actual uint64) error {
	return &WriteConditionNotFulfilledError{
		Message: "WriteCondition was not fulfilled. Expected version to be " + phrase +
			" but was " + formatVersion(actual) + ".",
	}
}

func formatVersion(v uint64) string {
	return strconv.FormatUint(v, 10)
}
