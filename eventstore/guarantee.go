package eventstore

import "context"

// GuaranteeKind selects the strategy an EventStore uses to enforce
// WriteConditions at write time (spec §4.3).
type GuaranteeKind int

const (
	// GuaranteeNone performs a bulk insert with no version bookkeeping. Only
	// AnyStreamVersion is accepted; any other WriteCondition fails fast with
	// ErrWriteConditionNotSupported.
	GuaranteeNone GuaranteeKind = iota

	// GuaranteeTransactional wraps fetch-version, evaluate-condition, insert,
	// and upsert-version in a store-managed database transaction.
	GuaranteeTransactional

	// GuaranteeTransactionalAnnotation relies on an ambient transaction the
	// caller supplies via WithAmbientTransaction. If none is present, the
	// write proceeds without atomicity: this is a documented, intentional
	// anomaly, not a bug to silently paper over.
	GuaranteeTransactionalAnnotation
)

// ConsistencyGuarantee describes which write-time strategy a store uses and
// the versions table it relies on when that strategy tracks stream versions.
type ConsistencyGuarantee struct {
	kind              GuaranteeKind
	versionsTableName string
}

// NoGuarantee configures a store for bulk-insert writes with no version
// tracking.
func NoGuarantee() ConsistencyGuarantee {
	return ConsistencyGuarantee{kind: GuaranteeNone}
}

// TransactionalGuarantee configures a store to manage its own transaction
// around every conditional write, persisting stream versions in
// versionsTableName.
func TransactionalGuarantee(versionsTableName string) ConsistencyGuarantee {
	return ConsistencyGuarantee{kind: GuaranteeTransactional, versionsTableName: versionsTableName}
}

// TransactionalAnnotationGuarantee configures a store to participate in an
// ambient, caller-managed transaction, persisting stream versions in
// versionsTableName.
func TransactionalAnnotationGuarantee(versionsTableName string) ConsistencyGuarantee {
	return ConsistencyGuarantee{kind: GuaranteeTransactionalAnnotation, versionsTableName: versionsTableName}
}

func (g ConsistencyGuarantee) Kind() GuaranteeKind {
	return g.kind
}

func (g ConsistencyGuarantee) VersionsTableName() string {
	return g.versionsTableName
}

func (g ConsistencyGuarantee) TracksVersion() bool {
	return g.kind != GuaranteeNone
}

// ambientTxContextKey is a private type to prevent context key collisions,
// matching the ConsistencyLevel context-key pattern in consistency.go.
type ambientTxContextKey string

// AmbientTransactionKey is the context key under which an ambient
// transaction handle is stored for GuaranteeTransactionalAnnotation stores.
const AmbientTransactionKey ambientTxContextKey = "eventstore.ambient_transaction"

// WithAmbientTransaction returns a context carrying tx, so a
// GuaranteeTransactionalAnnotation store can participate in a
// caller-managed transaction instead of opening its own.
//
// tx is typically a *sql.Tx, pgx.Tx, or *sqlx.Tx, depending on the adapter in
// use; the postgresengine adapters type-assert it to their own driver's
// transaction type and treat a mismatch the same as "no ambient transaction".
func WithAmbientTransaction(ctx context.Context, tx any) context.Context {
	return context.WithValue(ctx, AmbientTransactionKey, tx)
}

// AmbientTransaction extracts the ambient transaction handle from ctx, if
// any.
func AmbientTransaction(ctx context.Context) (any, bool) {
	tx := ctx.Value(AmbientTransactionKey)
	return tx, tx != nil
}
