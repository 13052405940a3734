package eventstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/occurrent-go/occurrent/eventstore"
)

func Test_ConsistencyGuarantee_Kind(t *testing.T) {
	assert.Equal(t, eventstore.GuaranteeNone, eventstore.NoGuarantee().Kind())
	assert.Equal(t, eventstore.GuaranteeTransactional, eventstore.TransactionalGuarantee("versions").Kind())
	assert.Equal(t, eventstore.GuaranteeTransactionalAnnotation, eventstore.TransactionalAnnotationGuarantee("versions").Kind())
}

func Test_ConsistencyGuarantee_TracksVersion(t *testing.T) {
	assert.False(t, eventstore.NoGuarantee().TracksVersion())
	assert.True(t, eventstore.TransactionalGuarantee("versions").TracksVersion())
	assert.True(t, eventstore.TransactionalAnnotationGuarantee("versions").TracksVersion())
}

func Test_ConsistencyGuarantee_VersionsTableName(t *testing.T) {
	assert.Equal(t, "versions", eventstore.TransactionalGuarantee("versions").VersionsTableName())
	assert.Equal(t, "", eventstore.NoGuarantee().VersionsTableName())
}

func Test_AmbientTransaction_RoundTrip(t *testing.T) {
	ctx := context.Background()

	tx, found := eventstore.AmbientTransaction(ctx)
	assert.False(t, found)
	assert.Nil(t, tx)

	type fakeTx struct{ id int }
	want := &fakeTx{id: 1}

	ctx = eventstore.WithAmbientTransaction(ctx, want)

	got, found := eventstore.AmbientTransaction(ctx)
	assert.True(t, found)
	assert.Same(t, want, got)
}

func Test_ConsistencyLevel_DefaultsToStrong(t *testing.T) {
	assert.Equal(t, eventstore.StrongConsistency, eventstore.GetConsistencyLevel(context.Background()))
}

func Test_ConsistencyLevel_ContextRoundTrip(t *testing.T) {
	ctx := eventstore.WithEventualConsistency(context.Background())
	assert.Equal(t, eventstore.EventualConsistency, eventstore.GetConsistencyLevel(ctx))

	ctx = eventstore.WithStrongConsistency(ctx)
	assert.Equal(t, eventstore.StrongConsistency, eventstore.GetConsistencyLevel(ctx))
}
