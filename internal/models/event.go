package models

import (
	"encoding/json"
	"time"
)

type EventStatus string

const (
	// EventStatusPending events are eligible for claim.
	EventStatusPending EventStatus = "pending"
	// EventStatusProcessing marks a claimed event. It is transient: a worker
	// either resolves the event in the same pass or the claim expires and the
	// event becomes claimable again.
	EventStatusProcessing EventStatus = "processing"
	EventStatusProcessed  EventStatus = "processed"
	EventStatusFailed     EventStatus = "failed"
)

// WebhookEvent is one raw provider delivery, captured durably before any
// processing. Events are never deleted; failed rows are kept for replay.
type WebhookEvent struct {
	ID          string          `json:"id" db:"id"`
	Payload     json.RawMessage `json:"payload" db:"payload"`
	Status      EventStatus     `json:"status" db:"status"`
	RetryCount  int             `json:"retry_count" db:"retry_count"`
	ErrorDetail *string         `json:"error_detail" db:"error_detail"`
	ClaimedAt   *time.Time      `json:"-" db:"claimed_at"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// NextEventState decides how a claimed event resolves: success means
// processed; a failure consumes one attempt and goes back to pending until
// the retry budget is spent, after which the event is dead-lettered.
// retryCount is the number of attempts already recorded before this one.
func NextEventState(attemptErr error, retryCount, maxRetries int) (EventStatus, int) {
	if attemptErr == nil {
		return EventStatusProcessed, retryCount
	}
	retryCount++
	if retryCount >= maxRetries {
		return EventStatusFailed, retryCount
	}
	return EventStatusPending, retryCount
}
