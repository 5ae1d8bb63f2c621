package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/autobank/internal/common"
	"github.com/Veraticus/autobank/internal/model"
)

func TestAuditLog(t *testing.T) {
	store := setupStorage(t)
	ctx := context.Background()

	entry := model.NewAuditEntry(model.AuditRuleCreated, "api", map[string]string{"name": "netflix"}).
		WithResource("rule", "rule-1").
		WithRequest("127.0.0.1", "curl/8.0")
	require.NoError(t, store.LogAudit(ctx, entry))

	got, err := store.GetAuditEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AuditRuleCreated, got.EventType)
	assert.Equal(t, "api", got.Actor)
	assert.Equal(t, "rule", got.ResourceType)
	assert.Equal(t, "rule-1", got.ResourceID)
	assert.Equal(t, "127.0.0.1", got.IPAddress)
	assert.JSONEq(t, `{"name":"netflix"}`, string(got.Details))

	_, err = store.GetAuditEntry(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestQueryAuditNewestFirst(t *testing.T) {
	store := setupStorage(t)
	ctx := context.Background()

	for i, eventType := range []string{
		model.AuditServerStarted,
		model.AuditPollTriggered,
		model.AuditServerStopped,
	} {
		entry := model.NewAuditEntry(eventType, "system", nil)
		entry.Timestamp = int64(1000 * (i + 1))
		require.NoError(t, store.LogAudit(ctx, entry))
	}

	entries, err := store.QueryAudit(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, model.AuditServerStopped, entries[0].EventType)
	assert.Equal(t, model.AuditServerStarted, entries[2].EventType)

	entries, err = store.QueryAudit(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
