package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"wpconn/internal/cache"
	"wpconn/internal/database"
	"wpconn/internal/models"
	"wpconn/internal/tracing"
	"wpconn/pkg/meta"
	"wpconn/pkg/storage"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// SendRequest is an outbound message submission on behalf of a tenant.
// Either Content or MediaURL must be set; MediaType selects the provider
// message type for media sends and defaults to document.
type SendRequest struct {
	ToNumber  string `json:"to_number"`
	Content   string `json:"content,omitempty"`
	MediaURL  string `json:"media_url,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	Caption   string `json:"caption,omitempty"`
}

// uploadContentTypes maps the coarse provider message type to the content
// type declared when uploading the asset.
var uploadContentTypes = map[string]string{
	"image":    "image/jpeg",
	"video":    "video/mp4",
	"audio":    "audio/mpeg",
	"document": "application/pdf",
}

// SendService pushes outbound messages through the Graph API. Media sends
// dedupe uploads in two layers: a cache keyed by media URL, then the message
// table, so the same asset is uploaded to the provider at most once.
type SendService struct {
	store    *database.Database
	provider meta.Client
	objects  storage.Client
	mediaIDs cache.MediaIDCache
	audit    AuditSink
	http     *http.Client
	logger   *logrus.Logger
}

func NewSendService(store *database.Database, provider meta.Client, objects storage.Client, mediaIDs cache.MediaIDCache, audit AuditSink, httpClient *http.Client, logger *logrus.Logger) *SendService {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &SendService{
		store:    store,
		provider: provider,
		objects:  objects,
		mediaIDs: mediaIDs,
		audit:    audit,
		http:     httpClient,
		logger:   logger,
	}
}

// Send validates the request, persists a pending outbound message, submits
// it to the provider, and records the outcome. The returned message reflects
// the final state; a provider rejection is reported as both a failed message
// row and a non-nil error.
func (s *SendService) Send(ctx context.Context, tenant *models.Tenant, req SendRequest) (*models.Message, error) {
	ctx, span := tracing.StartSpan(ctx, "send_service.send",
		attribute.String("tenant_id", tenant.ID))
	defer span.End()

	if req.ToNumber == "" {
		return nil, fmt.Errorf("to_number is required")
	}
	if req.Content == "" && req.MediaURL == "" {
		return nil, fmt.Errorf("either content or media_url is required")
	}

	msgType := "text"
	var metaMediaID *string
	if req.MediaURL != "" {
		msgType = req.MediaType
		if msgType == "" || !models.MediaTypes[msgType] {
			msgType = "document"
		}
		id, err := s.resolveMediaID(ctx, tenant, req.MediaURL, msgType)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare media: %w", err)
		}
		metaMediaID = &id
	}

	msg := &models.Message{
		TenantID:    tenant.ID,
		Phone:       req.ToNumber,
		Direction:   models.DirectionOutbound,
		Type:        msgType,
		Status:      models.MessageStatusPending,
		MetaMediaID: metaMediaID,
	}
	if req.Content != "" {
		content := req.Content
		msg.Content = &content
	}
	if req.MediaURL != "" {
		mediaURL := req.MediaURL
		msg.MediaURL = &mediaURL
	}
	if req.Caption != "" {
		caption := req.Caption
		msg.Caption = &caption
	}

	if err := s.store.SaveMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to persist outbound message: %w", err)
	}

	payload := meta.SendPayload{
		To:      req.ToNumber,
		Type:    msgType,
		Body:    req.Content,
		Caption: req.Caption,
	}
	if metaMediaID != nil {
		payload.MediaID = *metaMediaID
	}

	resp, err := s.provider.SendMessage(ctx, tenant.Token, tenant.PhoneNumberID, payload)
	if err != nil {
		s.recordSendFailure(ctx, msg, err)
		return msg, fmt.Errorf("provider rejected message: %w", err)
	}
	if len(resp.Messages) == 0 || resp.Messages[0].ID == "" {
		err := fmt.Errorf("provider response carried no message id")
		s.recordSendFailure(ctx, msg, err)
		return msg, err
	}

	wamid := resp.Messages[0].ID
	if err := s.store.UpdateSendResult(ctx, msg.ID, wamid, models.MessageStatusSent, metaMediaID, nil); err != nil {
		return msg, fmt.Errorf("failed to record send result: %w", err)
	}
	msg.Wamid = wamid
	msg.Status = models.MessageStatusSent

	s.logger.WithFields(logrus.Fields{
		"wamid": wamid,
		"to":    req.ToNumber,
		"type":  msgType,
	}).Info("Message sent")

	return msg, nil
}

// resolveMediaID returns the provider media ID for mediaURL, uploading the
// asset only when neither the cache nor the message table has seen it.
func (s *SendService) resolveMediaID(ctx context.Context, tenant *models.Tenant, mediaURL, msgType string) (string, error) {
	if id, ok, err := s.mediaIDs.GetMediaID(ctx, mediaURL); err != nil {
		s.logger.WithError(err).Warn("Media ID cache lookup failed")
	} else if ok {
		return id, nil
	}

	if id, err := s.store.FindCachedMetaMediaID(ctx, mediaURL); err != nil {
		return "", err
	} else if id != nil {
		s.cacheMediaID(ctx, mediaURL, *id)
		return *id, nil
	}

	body, err := s.openMedia(ctx, mediaURL)
	if err != nil {
		return "", err
	}
	defer body.Close()

	contentType, ok := uploadContentTypes[msgType]
	if !ok {
		contentType = "application/octet-stream"
	}

	id, err := s.provider.UploadMedia(ctx, tenant.Token, tenant.PhoneNumberID, body, contentType)
	if err != nil {
		return "", fmt.Errorf("media upload failed: %w", err)
	}

	s.cacheMediaID(ctx, mediaURL, id)
	return id, nil
}

// openMedia streams the asset behind mediaURL: object-store locators go
// through the store, anything http(s) is fetched directly.
func (s *SendService) openMedia(ctx context.Context, mediaURL string) (io.ReadCloser, error) {
	if !strings.HasPrefix(mediaURL, "http://") && !strings.HasPrefix(mediaURL, "https://") {
		if s.objects == nil {
			return nil, fmt.Errorf("no object store configured for locator %q", mediaURL)
		}
		return s.objects.OpenStream(ctx, mediaURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build media request: %w", err)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch media: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("media fetch returned status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func (s *SendService) cacheMediaID(ctx context.Context, mediaURL, id string) {
	if err := s.mediaIDs.StoreMediaID(ctx, mediaURL, id); err != nil {
		s.logger.WithError(err).Warn("Failed to cache media ID")
	}
}

func (s *SendService) recordSendFailure(ctx context.Context, msg *models.Message, cause error) {
	s.logger.WithError(cause).WithFields(logrus.Fields{
		"message_id": msg.ID,
		"to":         msg.Phone,
	}).Error("Message send failed")

	detail := cause.Error()
	if err := s.store.UpdateSendResult(ctx, msg.ID, msg.Wamid, models.MessageStatusFailed, msg.MetaMediaID, &detail); err != nil {
		s.logger.WithError(err).WithField("message_id", msg.ID).Error("Failed to record send failure")
	}
	msg.Status = models.MessageStatusFailed
	msg.ErrorDetail = &detail

	tenantID := msg.TenantID
	s.audit.Record(ctx, models.AuditMessageSendFailed, map[string]string{
		"message_id": msg.ID,
		"to":         msg.Phone,
		"error":      detail,
	}, &tenantID)
}
