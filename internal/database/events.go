package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"wpconn/internal/models"

	"github.com/google/uuid"
)

// InsertWebhookEvent durably captures one raw provider delivery as a pending
// event. This is the only work the ingestion path does, so the provider gets
// its ack fast.
func (d *Database) InsertWebhookEvent(ctx context.Context, payload json.RawMessage) (*models.WebhookEvent, error) {
	id := uuid.NewString()

	err := retryableDBOperation(ctx, func() error {
		_, execErr := d.q.ExecContext(ctx, InsertWebhookEventQuery, id, string(payload))
		return execErr
	}, "insert webhook event")
	if err != nil {
		return nil, fmt.Errorf("failed to insert webhook event: %w", err)
	}

	return d.GetWebhookEvent(ctx, id)
}

// ClaimPendingEvents claims up to limit events in creation order. The claim is
// a single atomic UPDATE, so two concurrent workers never receive overlapping
// rows; rows whose previous claim is older than claimTTLSec are reclaimed.
func (d *Database) ClaimPendingEvents(ctx context.Context, limit, claimTTLSec int) ([]models.WebhookEvent, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	rows, err := d.q.QueryContext(ctx, ClaimPendingEventsQuery, claimTTLSec, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim pending events: %w", err)
	}
	defer rows.Close()

	var events []models.WebhookEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}

// ResolveEvent records the outcome of a claimed event: processed, pending
// with a bumped retry count, or failed (dead-lettered) with the causing error.
func (d *Database) ResolveEvent(ctx context.Context, id string, status models.EventStatus, retryCount int, errorDetail *string) error {
	res, err := d.q.ExecContext(ctx, ResolveEventQuery, string(status), retryCount, errorDetail, id)
	if err != nil {
		return fmt.Errorf("failed to resolve event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to resolve event: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("event %s not found", id)
	}
	return nil
}

func (d *Database) GetWebhookEvent(ctx context.Context, id string) (*models.WebhookEvent, error) {
	row := d.q.QueryRowContext(ctx, SelectEventByIDQuery, id)
	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ev, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(s rowScanner) (*models.WebhookEvent, error) {
	var ev models.WebhookEvent
	var payload string
	var status string
	var errorDetail sql.NullString
	var claimedAt sql.NullTime

	err := s.Scan(&ev.ID, &payload, &status, &ev.RetryCount, &errorDetail, &claimedAt, &ev.CreatedAt, &ev.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan webhook event: %w", err)
	}

	ev.Payload = json.RawMessage(payload)
	ev.Status = models.EventStatus(status)
	if errorDetail.Valid {
		s := errorDetail.String
		ev.ErrorDetail = &s
	}
	if claimedAt.Valid {
		t := claimedAt.Time
		ev.ClaimedAt = &t
	}
	return &ev, nil
}
