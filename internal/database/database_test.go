package database

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"wpconn/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *Database {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := New(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	return db
}

func createTestTenant(t *testing.T, db *Database, phoneNumberID string) *models.Tenant {
	t.Helper()

	tenant := &models.Tenant{
		Name:          "Acme " + phoneNumberID,
		WabaID:        "waba-" + phoneNumberID,
		PhoneNumberID: phoneNumberID,
		Token:         "token-" + phoneNumberID,
		APIKey:        "key-" + phoneNumberID,
	}
	require.NoError(t, db.CreateTenant(context.Background(), tenant))
	return tenant
}

func TestNewInvalidPath(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)

	_, err = New(filepath.Join(t.TempDir(), "no", "such", "dir", "test.db"))
	assert.Error(t, err)
}

func TestWithTxCommit(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	err := db.WithTx(ctx, func(tx *Database) error {
		_, err := tx.InsertWebhookEvent(ctx, json.RawMessage(`{"a":1}`))
		return err
	})
	require.NoError(t, err)

	events, err := db.ClaimPendingEvents(ctx, 10, 60)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestWithTxRollback(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	err := db.WithTx(ctx, func(tx *Database) error {
		if _, err := tx.InsertWebhookEvent(ctx, json.RawMessage(`{"a":1}`)); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	require.Error(t, err)

	events, err := db.ClaimPendingEvents(ctx, 10, 60)
	require.NoError(t, err)
	assert.Empty(t, events)
}
