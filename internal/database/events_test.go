package database

import (
	"context"
	"encoding/json"
	"testing"

	"wpconn/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertWebhookEvent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	payload := json.RawMessage(`{"entry":[{"id":"waba-1"}]}`)
	event, err := db.InsertWebhookEvent(ctx, payload)
	require.NoError(t, err)

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, models.EventStatusPending, event.Status)
	assert.Equal(t, 0, event.RetryCount)
	assert.Nil(t, event.ErrorDetail)
	assert.JSONEq(t, string(payload), string(event.Payload))
}

func TestClaimPendingEvents(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first, err := db.InsertWebhookEvent(ctx, json.RawMessage(`{"n":1}`))
	require.NoError(t, err)
	second, err := db.InsertWebhookEvent(ctx, json.RawMessage(`{"n":2}`))
	require.NoError(t, err)

	claimed, err := db.ClaimPendingEvents(ctx, 10, 60)
	require.NoError(t, err)
	require.Len(t, claimed, 2)

	ids := []string{claimed[0].ID, claimed[1].ID}
	assert.Contains(t, ids, first.ID)
	assert.Contains(t, ids, second.ID)
	for _, ev := range claimed {
		assert.Equal(t, models.EventStatusProcessing, ev.Status)
		assert.NotNil(t, ev.ClaimedAt)
	}

	// Claimed rows are invisible to a second claimer.
	again, err := db.ClaimPendingEvents(ctx, 10, 60)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestClaimPendingEventsRespectsLimit(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := db.InsertWebhookEvent(ctx, json.RawMessage(`{}`))
		require.NoError(t, err)
	}

	claimed, err := db.ClaimPendingEvents(ctx, 3, 60)
	require.NoError(t, err)
	assert.Len(t, claimed, 3)

	rest, err := db.ClaimPendingEvents(ctx, 10, 60)
	require.NoError(t, err)
	assert.Len(t, rest, 2)
}

func TestClaimPendingEventsReclaimsExpired(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	event, err := db.InsertWebhookEvent(ctx, json.RawMessage(`{}`))
	require.NoError(t, err)

	claimed, err := db.ClaimPendingEvents(ctx, 10, 60)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	// Backdate the claim past the TTL, as if the claiming worker died.
	_, err = db.db.Exec(
		`UPDATE webhook_events SET claimed_at = datetime('now', '-120 seconds') WHERE id = ?`,
		event.ID,
	)
	require.NoError(t, err)

	reclaimed, err := db.ClaimPendingEvents(ctx, 10, 60)
	require.NoError(t, err)
	require.Len(t, reclaimed, 1)
	assert.Equal(t, event.ID, reclaimed[0].ID)
}

func TestResolveEvent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	event, err := db.InsertWebhookEvent(ctx, json.RawMessage(`{}`))
	require.NoError(t, err)

	_, err = db.ClaimPendingEvents(ctx, 1, 60)
	require.NoError(t, err)

	detail := "tenant lookup failed"
	require.NoError(t, db.ResolveEvent(ctx, event.ID, models.EventStatusPending, 1, &detail))

	got, err := db.GetWebhookEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusPending, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	require.NotNil(t, got.ErrorDetail)
	assert.Equal(t, detail, *got.ErrorDetail)
	assert.Nil(t, got.ClaimedAt)

	// Pending again means claimable again.
	claimed, err := db.ClaimPendingEvents(ctx, 1, 60)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	require.NoError(t, db.ResolveEvent(ctx, event.ID, models.EventStatusProcessed, 1, nil))
	got, err = db.GetWebhookEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusProcessed, got.Status)
	assert.Nil(t, got.ErrorDetail)
}

func TestResolveEventUnknownID(t *testing.T) {
	db := setupTestDB(t)

	err := db.ResolveEvent(context.Background(), "missing", models.EventStatusProcessed, 0, nil)
	assert.Error(t, err)
}

func TestGetWebhookEventNotFound(t *testing.T) {
	db := setupTestDB(t)

	event, err := db.GetWebhookEvent(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, event)
}

func TestProcessedEventsAreNeverReclaimed(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	event, err := db.InsertWebhookEvent(ctx, json.RawMessage(`{}`))
	require.NoError(t, err)

	_, err = db.ClaimPendingEvents(ctx, 1, 60)
	require.NoError(t, err)
	require.NoError(t, db.ResolveEvent(ctx, event.ID, models.EventStatusProcessed, 0, nil))

	claimed, err := db.ClaimPendingEvents(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}
