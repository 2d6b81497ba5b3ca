package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"wpconn/internal/database"
	"wpconn/internal/models"
	"wpconn/internal/tracing"

	"github.com/sirupsen/logrus"
)

// EventProcessor drains the webhook-event outbox. Each polling cycle claims a
// batch of pending events, normalizes every payload, applies status updates,
// persists novel inbound messages, relays them to tenant webhooks, and
// resolves each event as processed, retried, or dead-lettered.
//
// Events inside a batch are handled sequentially and in isolation: one
// event's failure never aborts the batch. All durable side effects of one
// event commit in a single transaction; forwarding runs after commit and its
// failures never affect the event's outcome.
type EventProcessor struct {
	store     *database.Database
	forwarder Forwarder
	cfg       models.WorkerConfig
	logger    *logrus.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
}

func NewEventProcessor(store *database.Database, forwarder Forwarder, cfg models.WorkerConfig, logger *logrus.Logger) *EventProcessor {
	return &EventProcessor{
		store:     store,
		forwarder: forwarder,
		cfg:       cfg,
		logger:    logger,
	}
}

// Start begins the background processing loop.
func (p *EventProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("event processor is already running")
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.running = true

	p.wg.Add(1)
	go p.loop()

	p.logger.WithFields(logrus.Fields{
		"batch_size":    p.cfg.BatchSize,
		"max_retries":   p.cfg.MaxRetries,
		"poll_interval": p.cfg.PollInterval,
	}).Info("Event processor started")

	return nil
}

// Stop gracefully stops the processing loop, waiting for the in-flight batch.
func (p *EventProcessor) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	p.cancel()
	p.wg.Wait()
	p.running = false
	p.logger.Info("Event processor stopped")
}

// IsRunning returns whether the processor loop is active.
func (p *EventProcessor) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

func (p *EventProcessor) loop() {
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
			// Infrastructure failure, not a bad event: back off longer so a
			// broken store does not storm the log.
			p.logger.WithError(err).Error("Event processing cycle failed")
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

// ProcessBatch claims and processes one batch. It returns the number of
// events handled; an error means the claim itself failed.
func (p *EventProcessor) ProcessBatch(ctx context.Context) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "event_processor.batch")
	defer span.End()

	events, err := p.store.ClaimPendingEvents(ctx, p.cfg.BatchSize, int(p.cfg.ClaimTTL.Seconds()))
	if err != nil {
		return 0, fmt.Errorf("failed to claim events: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	p.logger.WithField("count", len(events)).Info("Processing webhook events")

	for _, event := range events {
		p.processEvent(ctx, event)
	}
	return len(events), nil
}

// forwardJob is an inbound message persisted in the current event's
// transaction that still needs relaying after commit.
type forwardJob struct {
	tenant  *models.Tenant
	message *models.Message
}

func (p *EventProcessor) processEvent(ctx context.Context, event models.WebhookEvent) {
	var jobs []forwardJob

	err := p.store.WithTx(ctx, func(tx *database.Database) error {
		var txErr error
		jobs, txErr = p.applyEvent(ctx, tx, &event)
		return txErr
	})

	if err != nil {
		status, retries := models.NextEventState(err, event.RetryCount, p.cfg.MaxRetries)
		detail := err.Error()

		logger := p.logger.WithError(err).WithFields(logrus.Fields{
			"event_id":    event.ID,
			"retry_count": retries,
		})
		if status == models.EventStatusFailed {
			logger.Error("Event dead-lettered")
		} else {
			logger.Warn("Event processing failed, will retry")
		}

		if resolveErr := p.store.ResolveEvent(ctx, event.ID, status, retries, &detail); resolveErr != nil {
			p.logger.WithError(resolveErr).WithField("event_id", event.ID).Error("Failed to resolve event")
		}
		return
	}

	// Relay after commit. Forwarding failures are audited inside the
	// forwarder and swallowed here: the persisted message is the unit of
	// durable truth, and the event is already processed.
	for _, job := range jobs {
		_ = p.forwarder.Forward(ctx, job.tenant, job.message)
	}
}

// applyEvent performs all durable work for one event inside tx and resolves
// the event as processed. Returning an error rolls everything back; the
// caller then decides retry versus dead-letter.
func (p *EventProcessor) applyEvent(ctx context.Context, tx *database.Database, event *models.WebhookEvent) ([]forwardJob, error) {
	normalized := NormalizePayload(event.Payload)

	if normalized.PhoneNumberID == "" {
		// Malformed or unrecognized shape: a no-op, not a failure.
		return nil, tx.ResolveEvent(ctx, event.ID, models.EventStatusProcessed, event.RetryCount, nil)
	}

	tenant, err := tx.GetTenantByPhoneNumberID(ctx, normalized.PhoneNumberID)
	if err != nil {
		return nil, fmt.Errorf("tenant lookup failed: %w", err)
	}
	if tenant == nil {
		// No owner, no possible action; retrying cannot change that.
		p.logger.WithField("phone_number_id", normalized.PhoneNumberID).Warn("No tenant for webhook event")
		return nil, tx.ResolveEvent(ctx, event.ID, models.EventStatusProcessed, event.RetryCount, nil)
	}

	for _, update := range normalized.Statuses {
		if err := tx.UpdateMessageStatusByWamid(ctx, update.Wamid, update.Status); err != nil {
			return nil, fmt.Errorf("status update failed: %w", err)
		}
	}

	var jobs []forwardJob
	for _, inbound := range normalized.Messages {
		existing, err := tx.GetMessageByWamid(ctx, inbound.Wamid)
		if err != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", err)
		}
		if existing != nil {
			// Provider redelivery: drop silently.
			continue
		}

		msg := &models.Message{
			TenantID:     tenant.ID,
			Wamid:        inbound.Wamid,
			Phone:        inbound.From,
			Direction:    models.DirectionInbound,
			Type:         inbound.Type,
			Status:       inbound.Status,
			Content:      inbound.Content,
			MediaType:    inbound.MediaType,
			Caption:      inbound.Caption,
			MetaMediaID:  inbound.MetaMediaID,
			ReplyToWamid: inbound.ReplyToWamid,
		}
		if err := tx.SaveMessage(ctx, msg); err != nil {
			return nil, fmt.Errorf("message persist failed: %w", err)
		}
		msg.CreatedAt = time.Now().UTC()

		p.logger.WithFields(logrus.Fields{
			"wamid":  msg.Wamid,
			"from":   msg.Phone,
			"status": msg.Status,
		}).Info("Stored inbound message")

		if tenant.WebhookURL != nil && *tenant.WebhookURL != "" {
			jobs = append(jobs, forwardJob{tenant: tenant, message: msg})
		}
	}

	if err := tx.ResolveEvent(ctx, event.ID, models.EventStatusProcessed, event.RetryCount, nil); err != nil {
		return nil, fmt.Errorf("event resolve failed: %w", err)
	}
	return jobs, nil
}
