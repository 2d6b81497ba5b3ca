package database

// Webhook event queries
const (
	InsertWebhookEventQuery = `
		INSERT INTO webhook_events (id, payload, status)
		VALUES (?, ?, 'pending')
	`

	// ClaimPendingEventsQuery atomically claims a batch. sqlite has no
	// FOR UPDATE SKIP LOCKED, so the claim is one atomic status flip:
	// concurrent claimers can never observe overlapping rows. Rows stuck in
	// 'processing' past the claim TTL were claimed by a worker that died and
	// become claimable again (at-least-once).
	ClaimPendingEventsQuery = `
		UPDATE webhook_events
		SET status = 'processing', claimed_at = CURRENT_TIMESTAMP
		WHERE id IN (
			SELECT id FROM webhook_events
			WHERE status = 'pending'
			   OR (status = 'processing'
			       AND claimed_at <= datetime('now', '-' || ? || ' seconds'))
			ORDER BY created_at ASC, id ASC
			LIMIT ?
		)
		RETURNING id, payload, status, retry_count, error_detail, claimed_at, created_at, updated_at
	`

	ResolveEventQuery = `
		UPDATE webhook_events
		SET status = ?, retry_count = ?, error_detail = ?, claimed_at = NULL
		WHERE id = ?
	`

	SelectEventByIDQuery = `
		SELECT id, payload, status, retry_count, error_detail, claimed_at, created_at, updated_at
		FROM webhook_events
		WHERE id = ?
	`
)

// Message queries
const (
	InsertMessageQuery = `
		INSERT INTO messages (
			id, tenant_id, wamid, phone, direction, type, status,
			content, media_url, media_type, caption, meta_media_id, reply_to_wamid
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	messageColumns = `
		id, tenant_id, wamid, phone, direction, type, status,
		content, media_url, media_type, caption, meta_media_id, reply_to_wamid,
		error_detail, created_at, updated_at
	`

	SelectMessageByWamidQuery = `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE wamid = ?
		LIMIT 1
	`

	SelectMessageByIDQuery = `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE id = ?
	`

	// UpdateStatusByWamidQuery applies a provider delivery-status update.
	// The rank guard rejects out-of-order updates: a stale "sent" can no
	// longer overwrite "read". "failed" always applies. Terminal inbound
	// states (received, media_pending, failed) rank above every delivery
	// status so a delivery update never clobbers them.
	UpdateStatusByWamidQuery = `
		UPDATE messages
		SET status = ?1
		WHERE wamid = ?2
		  AND (
			?1 = 'failed'
			OR ?3 > CASE status
				WHEN 'pending'   THEN 0
				WHEN 'sent'      THEN 1
				WHEN 'delivered' THEN 2
				WHEN 'read'      THEN 3
				ELSE 4
			END
		  )
	`

	// ClaimMediaPendingQuery mirrors the event claim for the media pipeline.
	// The claim lives in media_claimed_at so status stays media_pending and
	// the media-state invariant holds for every reader.
	ClaimMediaPendingQuery = `
		UPDATE messages
		SET media_claimed_at = CURRENT_TIMESTAMP
		WHERE id IN (
			SELECT id FROM messages
			WHERE status = 'media_pending'
			  AND (media_claimed_at IS NULL
			       OR media_claimed_at <= datetime('now', '-' || ? || ' seconds'))
			ORDER BY created_at ASC, id ASC
			LIMIT ?
		)
		RETURNING ` + messageColumns + `
	`

	CompleteMediaQuery = `
		UPDATE messages
		SET status = 'received', media_url = ?, media_claimed_at = NULL
		WHERE id = ? AND status = 'media_pending'
	`

	FailMediaQuery = `
		UPDATE messages
		SET status = 'failed', error_detail = ?, media_claimed_at = NULL
		WHERE id = ? AND status = 'media_pending'
	`

	UpdateSendResultQuery = `
		UPDATE messages
		SET wamid = ?, status = ?, meta_media_id = ?, error_detail = ?
		WHERE id = ?
	`

	SelectCachedMetaMediaIDQuery = `
		SELECT meta_media_id
		FROM messages
		WHERE media_url = ? AND meta_media_id IS NOT NULL
		LIMIT 1
	`

	SelectMessagesQuery = `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE (?1 = '' OR tenant_id = ?1)
		  AND (?2 = '' OR phone LIKE '%' || ?2 || '%')
		  AND (?3 = ''
		       OR content LIKE '%' || ?3 || '%'
		       OR wamid LIKE '%' || ?3 || '%'
		       OR caption LIKE '%' || ?3 || '%')
		ORDER BY created_at DESC
		LIMIT ?4 OFFSET ?5
	`
)

// Tenant queries
const (
	InsertTenantQuery = `
		INSERT INTO tenants (id, name, waba_id, phone_number_id, token, api_key, webhook_url, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, TRUE)
	`

	tenantColumns = `
		id, name, waba_id, phone_number_id, token, api_key, webhook_url, is_active, created_at
	`

	SelectTenantByPhoneNumberIDQuery = `
		SELECT ` + tenantColumns + ` FROM tenants WHERE phone_number_id = ?
	`

	SelectTenantByAPIKeyQuery = `
		SELECT ` + tenantColumns + ` FROM tenants WHERE api_key = ?
	`

	SelectTenantByIDQuery = `
		SELECT ` + tenantColumns + ` FROM tenants WHERE id = ?
	`

	SelectAllTenantsQuery = `
		SELECT ` + tenantColumns + ` FROM tenants ORDER BY created_at ASC
	`

	DeleteTenantQuery = `
		DELETE FROM tenants WHERE id = ?
	`
)

// Audit log queries
const (
	InsertAuditLogQuery = `
		INSERT INTO audit_logs (tenant_id, event, detail)
		VALUES (?, ?, ?)
	`

	SelectAuditLogsQuery = `
		SELECT id, tenant_id, event, detail, created_at
		FROM audit_logs
		WHERE (?1 = '' OR tenant_id = ?1)
		  AND (?2 = '' OR event LIKE '%' || ?2 || '%')
		ORDER BY created_at DESC
		LIMIT ?3 OFFSET ?4
	`
)

// User queries
const (
	InsertUserQuery = `
		INSERT INTO users (id, email, password_hash, name, role)
		VALUES (?, ?, ?, ?, ?)
	`

	SelectUserByEmailQuery = `
		SELECT id, email, password_hash, name, role, is_active, created_at
		FROM users
		WHERE email = ?
	`

	SelectUsersQuery = `
		SELECT id, email, password_hash, name, role, is_active, created_at
		FROM users
		ORDER BY created_at ASC
		LIMIT ? OFFSET ?
	`

	DeleteUserQuery = `
		DELETE FROM users WHERE id = ?
	`
)
