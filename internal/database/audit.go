package database

import (
	"context"
	"database/sql"
	"fmt"

	"wpconn/internal/models"
)

func (d *Database) InsertAuditLog(ctx context.Context, tenantID *string, event, detail string) error {
	_, err := d.q.ExecContext(ctx, InsertAuditLogQuery, tenantID, event, detail)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

func (d *Database) ListAuditLogs(ctx context.Context, tenantID, event string, limit, offset int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := d.q.QueryContext(ctx, SelectAuditLogsQuery, tenantID, event, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []models.AuditLog
	for rows.Next() {
		var entry models.AuditLog
		var tid, detail sql.NullString
		if err := rows.Scan(&entry.ID, &tid, &entry.Event, &detail, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		entry.TenantID = nullableString(tid)
		if detail.Valid {
			entry.Detail = detail.String
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}
