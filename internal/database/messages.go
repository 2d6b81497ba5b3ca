package database

import (
	"context"
	"database/sql"
	"fmt"

	"wpconn/internal/models"

	"github.com/google/uuid"
)

// SaveMessage inserts a new message row. The caller owns idempotency: check
// GetMessageByWamid first for inbound messages.
func (d *Database) SaveMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	_, err := d.q.ExecContext(ctx, InsertMessageQuery,
		msg.ID,
		msg.TenantID,
		msg.Wamid,
		msg.Phone,
		string(msg.Direction),
		msg.Type,
		msg.Status,
		msg.Content,
		msg.MediaURL,
		msg.MediaType,
		msg.Caption,
		msg.MetaMediaID,
		msg.ReplyToWamid,
	)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// GetMessageByWamid is the idempotency lookup for inbound normalization.
// Returns nil, nil when no message carries the wamid.
func (d *Database) GetMessageByWamid(ctx context.Context, wamid string) (*models.Message, error) {
	msg, err := scanMessage(d.q.QueryRowContext(ctx, SelectMessageByWamidQuery, wamid))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return msg, err
}

func (d *Database) GetMessageByID(ctx context.Context, id string) (*models.Message, error) {
	msg, err := scanMessage(d.q.QueryRowContext(ctx, SelectMessageByIDQuery, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return msg, err
}

// UpdateMessageStatusByWamid applies a provider delivery-status update.
// Blind by wamid: zero matched rows is a valid no-op, since status updates may
// precede the message they describe. The rank guard in the query drops
// out-of-order updates.
func (d *Database) UpdateMessageStatusByWamid(ctx context.Context, wamid, status string) error {
	_, err := d.q.ExecContext(ctx, UpdateStatusByWamidQuery, status, wamid, models.StatusRank(status))
	if err != nil {
		return fmt.Errorf("failed to update message status: %w", err)
	}
	return nil
}

// ClaimMediaPending claims up to limit media_pending messages for the offload
// pipeline, oldest first, with the same atomic skip-claimed semantics as the
// event claim.
func (d *Database) ClaimMediaPending(ctx context.Context, limit, claimTTLSec int) ([]models.Message, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	rows, err := d.q.QueryContext(ctx, ClaimMediaPendingQuery, claimTTLSec, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim media-pending messages: %w", err)
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *msg)
	}
	return msgs, rows.Err()
}

// CompleteMedia finishes a successful offload: media_url set and status
// received in one statement, so no reader ever sees media_pending with a
// populated media_url or received without one.
func (d *Database) CompleteMedia(ctx context.Context, id, mediaURL string) error {
	_, err := d.q.ExecContext(ctx, CompleteMediaQuery, mediaURL, id)
	if err != nil {
		return fmt.Errorf("failed to complete media offload: %w", err)
	}
	return nil
}

// FailMedia marks a media message terminally failed. No automatic retry:
// provider media URLs expire quickly, so a stuck message needs manual
// re-queueing.
func (d *Database) FailMedia(ctx context.Context, id, errorDetail string) error {
	_, err := d.q.ExecContext(ctx, FailMediaQuery, errorDetail, id)
	if err != nil {
		return fmt.Errorf("failed to mark media failed: %w", err)
	}
	return nil
}

// UpdateSendResult records the provider's answer to an outbound send.
func (d *Database) UpdateSendResult(ctx context.Context, id, wamid, status string, metaMediaID, errorDetail *string) error {
	_, err := d.q.ExecContext(ctx, UpdateSendResultQuery, wamid, status, metaMediaID, errorDetail, id)
	if err != nil {
		return fmt.Errorf("failed to update send result: %w", err)
	}
	return nil
}

// FindCachedMetaMediaID returns the provider media ID of any message that
// already uploaded the given media_url, or nil when none did. This is the
// upload-dedup lookup for the outbound send path.
func (d *Database) FindCachedMetaMediaID(ctx context.Context, mediaURL string) (*string, error) {
	var metaMediaID sql.NullString
	err := d.q.QueryRowContext(ctx, SelectCachedMetaMediaIDQuery, mediaURL).Scan(&metaMediaID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up cached media id: %w", err)
	}
	if !metaMediaID.Valid {
		return nil, nil
	}
	s := metaMediaID.String
	return &s, nil
}

// ListMessages returns messages newest first, optionally scoped to a tenant
// and filtered by phone substring or content/wamid/caption search.
func (d *Database) ListMessages(ctx context.Context, tenantID, phone, search string, limit, offset int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := d.q.QueryContext(ctx, SelectMessagesQuery, tenantID, phone, search, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *msg)
	}
	return msgs, rows.Err()
}

func scanMessage(s rowScanner) (*models.Message, error) {
	var msg models.Message
	var direction string
	var content, mediaURL, mediaType, caption, metaMediaID, replyToWamid, errorDetail sql.NullString

	err := s.Scan(
		&msg.ID,
		&msg.TenantID,
		&msg.Wamid,
		&msg.Phone,
		&direction,
		&msg.Type,
		&msg.Status,
		&content,
		&mediaURL,
		&mediaType,
		&caption,
		&metaMediaID,
		&replyToWamid,
		&errorDetail,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan message: %w", err)
	}

	msg.Direction = models.MessageDirection(direction)
	msg.Content = nullableString(content)
	msg.MediaURL = nullableString(mediaURL)
	msg.MediaType = nullableString(mediaType)
	msg.Caption = nullableString(caption)
	msg.MetaMediaID = nullableString(metaMediaID)
	msg.ReplyToWamid = nullableString(replyToWamid)
	msg.ErrorDetail = nullableString(errorDetail)
	return &msg, nil
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
