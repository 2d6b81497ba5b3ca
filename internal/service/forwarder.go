package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"wpconn/internal/models"

	"github.com/sirupsen/logrus"
)

// Forwarder relays a persisted inbound message to a tenant's registered
// endpoint. Fire-and-forget: no retry, short timeout, and every failure is
// captured as exactly one audit record so it can be replayed out of band.
// Provider redelivery of the source webhook is the natural retry path.
type Forwarder interface {
	Forward(ctx context.Context, tenant *models.Tenant, msg *models.Message) error
}

// ForwardPayload is the message view POSTed to tenant endpoints.
type ForwardPayload struct {
	ID        string    `json:"id"`
	Wamid     string    `json:"wamid"`
	Phone     string    `json:"phone"`
	Direction string    `json:"direction"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	Content   *string   `json:"content"`
	MediaURL  *string   `json:"media_url"`
	MediaType *string   `json:"media_type"`
	Caption   *string   `json:"caption"`
	CreatedAt time.Time `json:"created_at"`
}

type webhookForwarder struct {
	httpClient *http.Client
	audit      AuditSink
	logger     *logrus.Logger
}

func NewForwarder(timeout time.Duration, audit AuditSink, logger *logrus.Logger) Forwarder {
	return &webhookForwarder{
		httpClient: &http.Client{Timeout: timeout},
		audit:      audit,
		logger:     logger,
	}
}

func (f *webhookForwarder) Forward(ctx context.Context, tenant *models.Tenant, msg *models.Message) error {
	if tenant.WebhookURL == nil || *tenant.WebhookURL == "" {
		return nil
	}
	url := *tenant.WebhookURL

	payload := ForwardPayload{
		ID:        msg.ID,
		Wamid:     msg.Wamid,
		Phone:     msg.Phone,
		Direction: string(msg.Direction),
		Type:      msg.Type,
		Status:    msg.Status,
		Content:   msg.Content,
		MediaURL:  msg.MediaURL,
		MediaType: msg.MediaType,
		Caption:   msg.Caption,
		CreatedAt: msg.CreatedAt,
	}

	err := f.post(ctx, url, payload)
	if err == nil {
		f.logger.WithFields(logrus.Fields{
			"wamid": msg.Wamid,
			"url":   url,
		}).Info("Forwarded message to tenant webhook")
		return nil
	}

	f.logger.WithError(err).WithFields(logrus.Fields{
		"wamid": msg.Wamid,
		"url":   url,
	}).Error("Failed to forward message to tenant webhook")

	f.audit.Record(ctx, models.AuditWebhookDeliveryFailed, map[string]interface{}{
		"error":   err.Error(),
		"payload": payload,
		"url":     url,
	}, &tenant.ID)

	return err
}

func (f *webhookForwarder) post(ctx context.Context, url string, payload ForwardPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal forward payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook delivery returned status %d", resp.StatusCode)
	}
	return nil
}
