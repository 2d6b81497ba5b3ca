package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"wpconn/internal/models"
	"wpconn/internal/service"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
)

// handleWebhookVerify answers Meta's subscription handshake: echo the
// challenge when the verify token matches, 403 otherwise.
func (s *Server) handleWebhookVerify() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		mode := q.Get("hub.mode")
		token := q.Get("hub.verify_token")
		challenge := q.Get("hub.challenge")

		if mode == "subscribe" && token == s.cfg.Security.VerifyToken {
			w.WriteHeader(http.StatusOK)
			if _, err := w.Write([]byte(challenge)); err != nil {
				s.logger.WithError(err).Error("Failed to write challenge")
			}
			return
		}
		s.respondError(w, http.StatusForbidden, "verification failed")
	}
}

// handleWebhookReceive persists the raw payload as a pending event and acks
// immediately. Processing happens in the background worker; a failed insert
// returns 500 so the provider redelivers.
func (s *Server) handleWebhookReceive() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := verifySignature(r, s.cfg.Security.AppSecret)
		if err != nil {
			s.logger.WithError(err).Warn("Webhook signature rejected")
			s.respondError(w, http.StatusUnauthorized, "invalid signature")
			return
		}

		if !json.Valid(body) {
			s.respondError(w, http.StatusBadRequest, "invalid JSON")
			return
		}

		event, err := s.db.InsertWebhookEvent(r.Context(), body)
		if err != nil {
			s.logger.WithError(err).Error("Failed to persist webhook event")
			s.respondError(w, http.StatusInternalServerError, "failed to persist event")
			return
		}

		s.logger.WithField("event_id", event.ID).Debug("Webhook event accepted")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("EVENT_RECEIVED")); err != nil {
			s.logger.WithError(err).Error("Failed to write ack")
		}
	}
}

type createTenantRequest struct {
	Name          string  `json:"name"`
	WabaID        string  `json:"waba_id"`
	PhoneNumberID string  `json:"phone_number_id"`
	Token         string  `json:"token"`
	WebhookURL    *string `json:"webhook_url,omitempty"`
}

func (s *Server) handleCreateTenant() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createTenantRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Name == "" || req.PhoneNumberID == "" || req.Token == "" {
			s.respondError(w, http.StatusBadRequest, "name, phone_number_id and token are required")
			return
		}

		existing, err := s.db.GetTenantByPhoneNumberID(r.Context(), req.PhoneNumberID)
		if err != nil {
			s.respondError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if existing != nil {
			s.respondError(w, http.StatusConflict, "phone_number_id is already registered")
			return
		}

		apiKey, err := generateAPIKey()
		if err != nil {
			s.logger.WithError(err).Error("API key generation failed")
			s.respondError(w, http.StatusInternalServerError, "internal error")
			return
		}

		tenant := &models.Tenant{
			Name:          req.Name,
			WabaID:        req.WabaID,
			PhoneNumberID: req.PhoneNumberID,
			Token:         req.Token,
			APIKey:        apiKey,
			WebhookURL:    req.WebhookURL,
		}
		if err := s.db.CreateTenant(r.Context(), tenant); err != nil {
			s.logger.WithError(err).Error("Failed to create tenant")
			s.respondError(w, http.StatusInternalServerError, "failed to create tenant")
			return
		}

		tenantID := tenant.ID
		s.auditSink.Record(r.Context(), models.AuditTenantCreated, map[string]string{
			"name":            tenant.Name,
			"phone_number_id": tenant.PhoneNumberID,
		}, &tenantID)

		s.respondJSON(w, http.StatusCreated, tenant)
	}
}

func (s *Server) handleListTenants() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenants, err := s.db.ListTenants(r.Context())
		if err != nil {
			s.logger.WithError(err).Error("Failed to list tenants")
			s.respondError(w, http.StatusInternalServerError, "failed to list tenants")
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]interface{}{"tenants": tenants})
	}
}

func (s *Server) handleDeleteTenant() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		deleted, err := s.db.DeleteTenant(r.Context(), id)
		if err != nil {
			s.logger.WithError(err).Error("Failed to delete tenant")
			s.respondError(w, http.StatusInternalServerError, "failed to delete tenant")
			return
		}
		if !deleted {
			s.respondError(w, http.StatusNotFound, "tenant not found")
			return
		}

		// The tenant row is gone, so the record carries the id in the detail
		// instead of the FK column.
		s.auditSink.Record(r.Context(), models.AuditTenantDeleted, map[string]string{"tenant_id": id}, nil)
		s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func (s *Server) handleListMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		tenantID := q.Get("tenant_id")
		if tenant := tenantFromContext(r.Context()); tenant != nil {
			// Tenant keys only ever see their own messages.
			tenantID = tenant.ID
		}

		limit := intQuery(q.Get("limit"), 50)
		offset := intQuery(q.Get("offset"), 0)

		messages, err := s.db.ListMessages(r.Context(), tenantID, q.Get("phone"), q.Get("search"), limit, offset)
		if err != nil {
			s.logger.WithError(err).Error("Failed to list messages")
			s.respondError(w, http.StatusInternalServerError, "failed to list messages")
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
	}
}

func (s *Server) handleSendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := tenantFromContext(r.Context())
		if tenant == nil {
			// Admin keys must name the sending tenant.
			tenantID := r.URL.Query().Get("tenant_id")
			if tenantID == "" {
				s.respondError(w, http.StatusBadRequest, "tenant_id query parameter is required for admin sends")
				return
			}
			var err error
			tenant, err = s.db.GetTenantByID(r.Context(), tenantID)
			if err != nil {
				s.respondError(w, http.StatusInternalServerError, "internal error")
				return
			}
			if tenant == nil {
				s.respondError(w, http.StatusNotFound, "tenant not found")
				return
			}
		}

		var req service.SendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		msg, err := s.sender.Send(r.Context(), tenant, req)
		if err != nil {
			if msg != nil {
				// Persisted but rejected by the provider.
				s.respondJSON(w, http.StatusBadGateway, msg)
				return
			}
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.respondJSON(w, http.StatusCreated, msg)
	}
}

func (s *Server) handleListLogs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		tenantID := q.Get("tenant_id")
		if tenant := tenantFromContext(r.Context()); tenant != nil {
			tenantID = tenant.ID
		}

		limit := intQuery(q.Get("limit"), 50)
		offset := intQuery(q.Get("offset"), 0)

		logs, err := s.db.ListAuditLogs(r.Context(), tenantID, q.Get("event"), limit, offset)
		if err != nil {
			s.logger.WithError(err).Error("Failed to list audit logs")
			s.respondError(w, http.StatusInternalServerError, "failed to list logs")
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]interface{}{"logs": logs})
	}
}

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

func (s *Server) handleCreateUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Email == "" || req.Password == "" {
			s.respondError(w, http.StatusBadRequest, "email and password are required")
			return
		}

		existing, err := s.db.GetUserByEmail(r.Context(), req.Email)
		if err != nil {
			s.respondError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if existing != nil {
			s.respondError(w, http.StatusConflict, "email is already registered")
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			s.logger.WithError(err).Error("Password hashing failed")
			s.respondError(w, http.StatusInternalServerError, "internal error")
			return
		}

		user := &models.User{
			Email:        req.Email,
			PasswordHash: string(hash),
			Name:         req.Name,
			Role:         req.Role,
		}
		if err := s.db.CreateUser(r.Context(), user); err != nil {
			s.logger.WithError(err).Error("Failed to create user")
			s.respondError(w, http.StatusInternalServerError, "failed to create user")
			return
		}
		s.respondJSON(w, http.StatusCreated, user)
	}
}

func (s *Server) handleListUsers() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		users, err := s.db.ListUsers(r.Context(), intQuery(q.Get("limit"), 50), intQuery(q.Get("offset"), 0))
		if err != nil {
			s.logger.WithError(err).Error("Failed to list users")
			s.respondError(w, http.StatusInternalServerError, "failed to list users")
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]interface{}{"users": users})
	}
}

func (s *Server) handleDeleteUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		deleted, err := s.db.DeleteUser(r.Context(), id)
		if err != nil {
			s.logger.WithError(err).Error("Failed to delete user")
			s.respondError(w, http.StatusInternalServerError, "failed to delete user")
			return
		}
		if !deleted {
			s.respondError(w, http.StatusNotFound, "user not found")
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func intQuery(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
