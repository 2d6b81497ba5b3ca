package models

import (
	"time"
)

// Tenant is one WhatsApp Business Account connected through the relay.
// PhoneNumberID is the routing key for inbound webhooks; APIKey authenticates
// the tenant on the REST surface; WebhookURL, when set, receives forwarded
// inbound messages.
type Tenant struct {
	ID            string    `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	WabaID        string    `json:"waba_id" db:"waba_id"`
	PhoneNumberID string    `json:"phone_number_id" db:"phone_number_id"`
	Token         string    `json:"-" db:"token"`
	APIKey        string    `json:"api_key" db:"api_key"`
	WebhookURL    *string   `json:"webhook_url" db:"webhook_url"`
	IsActive      bool      `json:"is_active" db:"is_active"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// User is a dashboard account. Passwords are stored as bcrypt hashes.
type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Name         string    `json:"name" db:"name"`
	Role         string    `json:"role" db:"role"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// AuditLog is a fire-and-forget operational record (forwarding failures,
// send failures, tenant lifecycle).
type AuditLog struct {
	ID        int64     `json:"id" db:"id"`
	TenantID  *string   `json:"tenant_id" db:"tenant_id"`
	Event     string    `json:"event" db:"event"`
	Detail    string    `json:"detail" db:"detail"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Audit event types.
const (
	AuditWebhookDeliveryFailed = "webhook_delivery_failed"
	AuditMessageSendFailed     = "message_send_failed"
	AuditMediaOffloadFailed    = "media_offload_failed"
	AuditTenantCreated         = "tenant_created"
	AuditTenantDeleted         = "tenant_deleted"
)
