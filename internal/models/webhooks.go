package models

import (
	"encoding/json"
)

// Provider webhook payload shapes (Meta Cloud API). Only the fields the
// normalizer reads are typed; everything else is carried as raw JSON.

type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

type WebhookEntry struct {
	ID      string          `json:"id"`
	Changes []WebhookChange `json:"changes"`
}

type WebhookChange struct {
	Field string       `json:"field"`
	Value WebhookValue `json:"value"`
}

type WebhookValue struct {
	MessagingProduct string            `json:"messaging_product"`
	Metadata         WebhookMetadata   `json:"metadata"`
	Statuses         []WebhookStatus   `json:"statuses"`
	Messages         []json.RawMessage `json:"messages"`
}

type WebhookMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type WebhookStatus struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	RecipientID string `json:"recipient_id"`
}

// WebhookMessage is one item of value.messages. The attachment object lives
// under a key named after the message type (msg["image"], msg["video"], ...);
// the normalizer extracts it from the raw item since the key is dynamic.
type WebhookMessage struct {
	ID        string          `json:"id"`
	From      string          `json:"from"`
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Text      *WebhookText    `json:"text,omitempty"`
	Context   *WebhookContext `json:"context,omitempty"`
}

type WebhookText struct {
	Body string `json:"body"`
}

type WebhookContext struct {
	From string `json:"from"`
	ID   string `json:"id"`
}

type WebhookMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256"`
	Caption  string `json:"caption"`
}
