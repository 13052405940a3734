package postgresengine

import (
	"context"
	"errors"

	"github.com/doug-martin/goqu/v9"

	"github.com/occurrent-go/occurrent/eventstore"
)

// ConditionCurrentlyHolds reads streamID's current version in a single SQL
// round trip, without the row lock runConditionalWrite takes, and evaluates
// condition against it in Go with WriteCondition.Eval. It is a convenience
// surface for callers that only want a consistency check (e.g. before
// deciding whether to build a write at all) and explicitly do not need the
// write itself. The condition is not translated into SQL: neither this
// function nor the write path lowers a WriteCondition to a storage filter.
func (es EventStore) ConditionCurrentlyHolds(ctx context.Context, streamID string, condition eventstore.WriteCondition) (bool, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(es.versionsTableName).
		Select(goqu.COALESCE(goqu.C(colVersion), 0))

	sqlQuery, _, toSQLErr := selectStmt.
		Where(goqu.C(colStreamID).Eq(streamID)).
		ToSQL()
	if toSQLErr != nil {
		return false, errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	rows, queryErr := es.db.Query(ctx, sqlQuery)
	if queryErr != nil {
		return false, errors.Join(eventstore.ErrQueryingEventsFailed, queryErr)
	}
	defer es.closeRows(rows)

	var version uint64

	if rows.Next() {
		if scanErr := rows.Scan(&version); scanErr != nil {
			return false, errors.Join(eventstore.ErrScanningDBRowFailed, scanErr)
		}
	}

	return condition.Eval(version), nil
}
