package service

import (
	"context"
	"encoding/json"
	"fmt"

	"wpconn/internal/database"

	"github.com/sirupsen/logrus"
)

// AuditSink records operational events. Best-effort: implementations swallow
// their own failures, callers never branch on them.
type AuditSink interface {
	Record(ctx context.Context, event string, detail interface{}, tenantID *string)
}

// AuditLogger writes audit records straight to the audit_logs table on its
// own write path, never inside a caller's transaction, so a failure record
// survives any later rollback of the work it describes.
type AuditLogger struct {
	db     *database.Database
	logger *logrus.Logger
}

func NewAuditLogger(db *database.Database, logger *logrus.Logger) *AuditLogger {
	return &AuditLogger{db: db, logger: logger}
}

func (a *AuditLogger) Record(ctx context.Context, event string, detail interface{}, tenantID *string) {
	var detailStr string
	switch v := detail.(type) {
	case string:
		detailStr = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			detailStr = fmt.Sprintf("%v", v)
		} else {
			detailStr = string(b)
		}
	}

	if err := a.db.InsertAuditLog(ctx, tenantID, event, detailStr); err != nil {
		a.logger.WithError(err).WithField("event", event).Warn("Failed to write audit log")
	}
}
