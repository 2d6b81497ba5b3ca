package models

import (
	"time"
)

type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

// Message statuses. Inbound messages move media_pending -> received|failed;
// outbound messages move pending -> sent -> delivered -> read, or failed.
const (
	MessageStatusPending      = "pending"
	MessageStatusSent         = "sent"
	MessageStatusDelivered    = "delivered"
	MessageStatusRead         = "read"
	MessageStatusReceived     = "received"
	MessageStatusFailed       = "failed"
	MessageStatusMediaPending = "media_pending"
)

// MediaTypes are the provider message types that carry a downloadable
// attachment. Anything else is stored as serialized JSON content.
var MediaTypes = map[string]bool{
	"image":    true,
	"video":    true,
	"audio":    true,
	"document": true,
	"sticker":  true,
	"voice":    true,
}

type Message struct {
	ID           string           `json:"id" db:"id"`
	TenantID     string           `json:"tenant_id" db:"tenant_id"`
	Wamid        string           `json:"wamid" db:"wamid"`
	Phone        string           `json:"phone" db:"phone"`
	Direction    MessageDirection `json:"direction" db:"direction"`
	Type         string           `json:"type" db:"type"`
	Status       string           `json:"status" db:"status"`
	Content      *string          `json:"content" db:"content"`
	MediaURL     *string          `json:"media_url" db:"media_url"`
	MediaType    *string          `json:"media_type" db:"media_type"`
	Caption      *string          `json:"caption" db:"caption"`
	MetaMediaID  *string          `json:"meta_media_id" db:"meta_media_id"`
	ReplyToWamid *string          `json:"reply_to_wamid" db:"reply_to_wamid"`
	ErrorDetail  *string          `json:"error_detail,omitempty" db:"error_detail"`
	CreatedAt    time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at" db:"updated_at"`
}

// StatusRank orders provider delivery statuses so that a stale update can
// never overwrite a later one. "failed" is handled separately: it always
// applies. Unknown statuses rank at sent level so they only replace pending.
func StatusRank(status string) int {
	switch status {
	case MessageStatusPending:
		return 0
	case MessageStatusSent:
		return 1
	case MessageStatusDelivered:
		return 2
	case MessageStatusRead:
		return 3
	default:
		return 1
	}
}
