package service

import (
	"context"
	"fmt"
	"path"
	"sync"
	"time"

	"wpconn/internal/constants"
	"wpconn/internal/database"
	"wpconn/internal/models"
	"wpconn/internal/tracing"
	"wpconn/pkg/meta"
	"wpconn/pkg/storage"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MediaProcessor copies inbound media out of the provider before its
// short-lived download URL expires. It claims messages stuck in
// media_pending, resolves the provider URL, streams the bytes into the
// object store, and records the durable locator on the message.
//
// Offload failures are terminal for the message (status media_failed with a
// diagnostic), never retried automatically, and never block other messages.
type MediaProcessor struct {
	store    *database.Database
	provider meta.Client
	objects  storage.Client
	audit    AuditSink
	cfg      models.WorkerConfig
	logger   *logrus.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
}

// NewMediaProcessor creates a media offload worker. objects may be nil, in
// which case the provider's resolved URL is recorded as-is.
func NewMediaProcessor(store *database.Database, provider meta.Client, objects storage.Client, audit AuditSink, cfg models.WorkerConfig, logger *logrus.Logger) *MediaProcessor {
	return &MediaProcessor{
		store:    store,
		provider: provider,
		objects:  objects,
		audit:    audit,
		cfg:      cfg,
		logger:   logger,
	}
}

func (p *MediaProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("media processor is already running")
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.running = true

	p.wg.Add(1)
	go p.loop()

	p.logger.WithField("batch_size", p.cfg.MediaBatchSize).Info("Media processor started")
	return nil
}

func (p *MediaProcessor) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	p.cancel()
	p.wg.Wait()
	p.running = false
	p.logger.Info("Media processor stopped")
}

func (p *MediaProcessor) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

func (p *MediaProcessor) loop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		processed, err := p.ProcessBatch(p.ctx)

		var delay time.Duration
		switch {
		case err != nil:
			p.logger.WithError(err).Error("Media offload cycle failed")
			delay = p.cfg.ErrorInterval
		case processed == 0:
			delay = p.cfg.PollInterval
		default:
			continue
		}

		select {
		case <-p.ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// ProcessBatch claims and offloads one batch of media-pending messages.
func (p *MediaProcessor) ProcessBatch(ctx context.Context) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "media_processor.batch")
	defer span.End()

	messages, err := p.store.ClaimMediaPending(ctx, p.cfg.MediaBatchSize, int(p.cfg.ClaimTTL.Seconds()))
	if err != nil {
		return 0, fmt.Errorf("failed to claim media-pending messages: %w", err)
	}
	if len(messages) == 0 {
		return 0, nil
	}

	p.logger.WithField("count", len(messages)).Info("Offloading media")

	for _, msg := range messages {
		if err := p.offload(ctx, &msg); err != nil {
			p.failMedia(ctx, &msg, err)
		}
	}
	return len(messages), nil
}

func (p *MediaProcessor) offload(ctx context.Context, msg *models.Message) error {
	tenant, err := p.store.GetTenantByID(ctx, msg.TenantID)
	if err != nil {
		return fmt.Errorf("tenant lookup failed: %w", err)
	}
	if tenant == nil {
		return fmt.Errorf("tenant %s no longer exists", msg.TenantID)
	}
	if msg.MetaMediaID == nil || *msg.MetaMediaID == "" {
		return fmt.Errorf("message has no provider media id")
	}

	mediaURL, err := p.provider.ResolveMediaURL(ctx, tenant.Token, *msg.MetaMediaID)
	if err != nil {
		return fmt.Errorf("failed to resolve media URL: %w", err)
	}
	if mediaURL == "" {
		return fmt.Errorf("provider returned empty media URL")
	}

	if p.objects == nil {
		// No object store configured: keep the provider URL, expiry and all.
		if err := p.store.CompleteMedia(ctx, msg.ID, mediaURL); err != nil {
			return fmt.Errorf("failed to record media URL: %w", err)
		}
		return nil
	}

	stream, err := p.provider.OpenMediaStream(ctx, tenant.Token, mediaURL)
	if err != nil {
		return fmt.Errorf("failed to open media stream: %w", err)
	}
	defer stream.Close()

	contentType := "application/octet-stream"
	if msg.MediaType != nil && *msg.MediaType != "" {
		contentType = *msg.MediaType
	}
	key := objectKey(msg.TenantID, contentType)

	locator, err := p.objects.WriteStream(ctx, key, stream, contentType)
	if err != nil {
		return fmt.Errorf("failed to store media: %w", err)
	}

	if err := p.store.CompleteMedia(ctx, msg.ID, locator); err != nil {
		return fmt.Errorf("failed to record media locator: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"message_id": msg.ID,
		"locator":    locator,
	}).Info("Media offloaded")
	return nil
}

func (p *MediaProcessor) failMedia(ctx context.Context, msg *models.Message, cause error) {
	p.logger.WithError(cause).WithField("message_id", msg.ID).Error("Media offload failed")

	if err := p.store.FailMedia(ctx, msg.ID, cause.Error()); err != nil {
		p.logger.WithError(err).WithField("message_id", msg.ID).Error("Failed to mark media as failed")
		return
	}

	tenantID := msg.TenantID
	p.audit.Record(ctx, models.AuditMediaOffloadFailed, map[string]string{
		"message_id": msg.ID,
		"wamid":      msg.Wamid,
		"error":      cause.Error(),
	}, &tenantID)
}

// objectKey builds a collision-free store key, partitioned by tenant and
// month so listings stay manageable.
func objectKey(tenantID, contentType string) string {
	ext, ok := constants.MimeExtensions[contentType]
	if !ok {
		ext = ".bin"
	}
	now := time.Now().UTC()
	return path.Join(tenantID, fmt.Sprintf("%04d/%02d", now.Year(), int(now.Month())), uuid.New().String()+ext)
}
