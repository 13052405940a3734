package postgresengine

import (
	"context"
	"errors"
	"strings"

	"github.com/doug-martin/goqu/v9"

	"github.com/occurrent-go/occurrent/cloudevent"
	"github.com/occurrent-go/occurrent/eventstore"
	"github.com/occurrent-go/occurrent/eventstore/postgresengine/internal/adapters"
)

// queryExecer is the minimal surface both adapters.DBAdapter and
// adapters.Tx satisfy, letting the fetch-eval-insert-upsert algorithm below
// run identically whether or not it is wrapped in a transaction.
type queryExecer interface {
	Query(ctx context.Context, query string) (adapters.DBRows, error)
	Exec(ctx context.Context, query string) (adapters.DBResult, error)
}

func (es EventStore) appendNone(
	ctx context.Context,
	streamID string,
	condition eventstore.WriteCondition,
	events []cloudevent.Event,
) error {
	if !condition.IsAny() {
		return eventstore.ErrWriteConditionNotSupported
	}

	docs, err := es.encodeAll(streamID, events)
	if err != nil {
		return err
	}

	sqlQuery, err := literalInsertStatement(es.eventsTableName, docs)
	if err != nil {
		return err
	}

	if _, err := es.exec(ctx, es.db, sqlQuery); err != nil {
		if isUniqueViolation(err) {
			return eventstore.ErrDuplicateEventID
		}

		return err
	}

	return nil
}

func (es EventStore) appendTransactional(
	ctx context.Context,
	streamID string,
	condition eventstore.WriteCondition,
	events []cloudevent.Event,
) error {
	tx, err := es.db.BeginTx(ctx)
	if err != nil {
		return errors.Join(eventstore.ErrStoreUnavailable, err)
	}

	if err := es.runConditionalWrite(ctx, tx, streamID, condition, events); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Join(eventstore.ErrAppendingEventFailed, err)
	}

	return nil
}

// appendTransactionalAnnotation participates in an ambient transaction when
// the caller has set one via eventstore.WithAmbientTransaction. When none is
// present, it runs the same algorithm directly against the pool: atomicity
// between the version check and the insert is then sacrificed. This is a
// documented anomaly (spec §4.3), not a bug: it is the caller's
// responsibility to supply the ambient transaction when atomicity matters.
func (es EventStore) appendTransactionalAnnotation(
	ctx context.Context,
	streamID string,
	condition eventstore.WriteCondition,
	events []cloudevent.Event,
) error {
	if raw, ok := eventstore.AmbientTransaction(ctx); ok {
		if tx, wrapped := es.db.WrapTx(raw); wrapped {
			return es.runConditionalWrite(ctx, tx, streamID, condition, events)
		}
	}

	return es.runConditionalWrite(ctx, es.db, streamID, condition, events)
}

// runConditionalWrite is the literal fetch-version / evaluate-condition /
// insert / upsert-version algorithm (spec §4.3): it is the primary write
// path because it alone can render the exact failure message a rejected
// WriteCondition must carry.
func (es EventStore) runConditionalWrite(
	ctx context.Context,
	runner queryExecer,
	streamID string,
	condition eventstore.WriteCondition,
	events []cloudevent.Event,
) error {
	actualVersion, err := es.lockCurrentVersion(ctx, runner, streamID)
	if err != nil {
		return err
	}

	if !condition.Eval(actualVersion) {
		return eventstore.NewWriteConditionNotFulfilledError(condition.Render(), actualVersion)
	}

	docs, err := es.encodeAll(streamID, events)
	if err != nil {
		return err
	}

	insertSQL, err := literalInsertStatement(es.eventsTableName, docs)
	if err != nil {
		return err
	}

	if _, err := es.exec(ctx, runner, insertSQL); err != nil {
		if isUniqueViolation(err) {
			return eventstore.ErrDuplicateEventID
		}

		return err
	}

	newVersion := actualVersion + 1

	upsertSQL, err := upsertVersionSQL(es.versionsTableName, streamID, newVersion)
	if err != nil {
		return err
	}

	if _, err := es.exec(ctx, runner, upsertSQL); err != nil {
		return err
	}

	return nil
}

// lockCurrentVersion fetches a stream's current version, taking a row lock
// when running inside a transaction so concurrent writers serialize on it.
func (es EventStore) lockCurrentVersion(ctx context.Context, runner queryExecer, streamID string) (uint64, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(es.versionsTableName).
		Select(colVersion).
		Where(goqu.C(colStreamID).Eq(streamID))

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return 0, errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	if _, isTx := runner.(adapters.Tx); isTx {
		// Seed the row first so there is always a row to lock, including for
		// a stream's first write.
		seedSQL, _, seedErr := goqu.Dialect(dialectPostgres).
			Insert(es.versionsTableName).
			Cols(colStreamID, colVersion).
			Vals(goqu.Vals{streamID, 0}).
			OnConflict(goqu.DoNothing()).
			ToSQL()
		if seedErr != nil {
			return 0, errors.Join(eventstore.ErrBuildingQueryFailed, seedErr)
		}
		if _, execErr := runner.Exec(ctx, seedSQL); execErr != nil {
			return 0, errors.Join(eventstore.ErrQueryingEventsFailed, execErr)
		}
		sqlQuery += " FOR UPDATE"
	}

	rows, queryErr := runner.Query(ctx, sqlQuery)
	if queryErr != nil {
		return 0, errors.Join(eventstore.ErrQueryingEventsFailed, queryErr)
	}
	defer es.closeRows(rows)

	var version uint64

	if rows.Next() {
		if scanErr := rows.Scan(&version); scanErr != nil {
			return 0, errors.Join(eventstore.ErrScanningDBRowFailed, scanErr)
		}
	}

	return version, nil
}

func (es EventStore) encodeAll(streamID string, events []cloudevent.Event) ([]eventstore.StoredDocument, error) {
	docs := make([]eventstore.StoredDocument, 0, len(events))

	for _, event := range events {
		doc, err := eventstore.Encode(es.format, es.timeRepresentation, streamID, event)
		if err != nil {
			es.logError("encoding event failed", err)
			return nil, err
		}

		docs = append(docs, doc)
	}

	return docs, nil
}

func (es EventStore) exec(ctx context.Context, runner queryExecer, sqlQuery string) (adapters.DBResult, error) {
	result, err := runner.Exec(ctx, sqlQuery)
	if err != nil {
		es.logError("executing statement failed", err, "query", sqlQuery)
		return nil, errors.Join(eventstore.ErrAppendingEventFailed, err)
	}

	return result, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "duplicate key value violates unique constraint") ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}
