package main

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"

	"wpconn/internal/constants"
	"wpconn/internal/models"
)

type contextKey string

const (
	tenantContextKey contextKey = "tenant"
	adminContextKey  contextKey = "admin"
)

// requireAPIKey authenticates API requests by the x-api-key header. The
// configured app secret acts as the master key and grants admin access;
// otherwise the key must belong to an active tenant, which is placed on the
// request context.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("x-api-key")
		if key == "" {
			s.respondError(w, http.StatusUnauthorized, "missing API key")
			return
		}

		if subtle.ConstantTimeCompare([]byte(key), []byte(s.cfg.Security.AppSecret)) == 1 {
			ctx := context.WithValue(r.Context(), adminContextKey, true)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		tenant, err := s.db.GetTenantByAPIKey(r.Context(), key)
		if err != nil {
			s.logger.WithError(err).Error("Tenant key lookup failed")
			s.respondError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if tenant == nil || !tenant.IsActive {
			s.respondError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		ctx := context.WithValue(r.Context(), tenantContextKey, tenant)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin rejects tenant-scoped keys on admin-only routes.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !isAdmin(r.Context()) {
			s.respondError(w, http.StatusForbidden, "admin access required")
			return
		}
		next(w, r)
	}
}

func isAdmin(ctx context.Context) bool {
	admin, _ := ctx.Value(adminContextKey).(bool)
	return admin
}

func tenantFromContext(ctx context.Context) *models.Tenant {
	tenant, _ := ctx.Value(tenantContextKey).(*models.Tenant)
	return tenant
}

// generateAPIKey returns a hex-encoded random key for a new tenant.
func generateAPIKey() (string, error) {
	buf := make([]byte, constants.DefaultAPIKeyByteCount)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate API key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
