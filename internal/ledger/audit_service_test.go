package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditServiceFilters(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	s.audit.now = fixedClock(base)
	require.NoError(t, s.audit.Record(ctx, ActionAccountCreated, EntityAccount, "acc-1", "alice", "opened"))
	require.NoError(t, s.audit.Record(ctx, ActionAccountDeactivated, EntityAccount, "acc-1", "bob", "closed"))
	s.audit.now = fixedClock(base.Add(time.Minute))
	require.NoError(t, s.audit.Record(ctx, ActionTransferExecuted, EntityTransaction, "txn-1", "alice", "moved"))
	require.NoError(t, s.audit.Record(ctx, ActionAccountCreated, EntityAccount, "acc-2", "", "opened"))

	all, err := s.audit.List(ctx, AuditFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "acc-2", all[0].EntityID)
	assert.Equal(t, SystemActor, all[0].Actor)
	assert.Equal(t, "txn-1", all[1].EntityID)
	assert.Equal(t, ActionAccountDeactivated, all[2].Action)
	assert.Equal(t, ActionAccountCreated, all[3].Action)

	byType, err := s.audit.List(ctx, AuditFilter{EntityType: EntityAccount})
	require.NoError(t, err)
	assert.Len(t, byType, 3)

	both, err := s.audit.List(ctx, AuditFilter{EntityType: EntityAccount, EntityID: "acc-1"})
	require.NoError(t, err)
	assert.Len(t, both, 2)

	mismatch, err := s.audit.List(ctx, AuditFilter{EntityType: EntityTransaction, EntityID: "acc-1"})
	require.NoError(t, err)
	assert.Empty(t, mismatch)

	byActor, err := s.audit.List(ctx, AuditFilter{Actor: "alice"})
	require.NoError(t, err)
	require.Len(t, byActor, 2)
	assert.True(t, byActor[0].Timestamp.Equal(base.Add(time.Minute)))
}
