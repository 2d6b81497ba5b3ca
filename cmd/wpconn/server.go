package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"wpconn/internal/database"
	"wpconn/internal/middleware"
	"wpconn/internal/models"
	"wpconn/internal/service"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type Server struct {
	router    *mux.Router
	logger    *logrus.Logger
	cfg       *models.Config
	db        *database.Database
	sender    *service.SendService
	auditSink service.AuditSink
	server    *http.Server
}

func NewServer(cfg *models.Config, db *database.Database, sender *service.SendService, auditSink service.AuditSink, logger *logrus.Logger) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		logger:    logger,
		cfg:       cfg,
		db:        db,
		sender:    sender,
		auditSink: auditSink,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Observability(s.logger))

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)

	// Meta webhook endpoints. GET answers the subscription handshake, POST
	// receives event batches.
	s.router.HandleFunc("/webhook", s.handleWebhookVerify()).Methods(http.MethodGet)
	s.router.HandleFunc("/webhook", s.handleWebhookReceive()).Methods(http.MethodPost)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.requireAPIKey)

	api.HandleFunc("/tenants", s.requireAdmin(s.handleCreateTenant())).Methods(http.MethodPost)
	api.HandleFunc("/tenants", s.requireAdmin(s.handleListTenants())).Methods(http.MethodGet)
	api.HandleFunc("/tenants/{id}", s.requireAdmin(s.handleDeleteTenant())).Methods(http.MethodDelete)

	api.HandleFunc("/messages", s.handleListMessages()).Methods(http.MethodGet)
	api.HandleFunc("/messages/send", s.handleSendMessage()).Methods(http.MethodPost)

	api.HandleFunc("/logs", s.handleListLogs()).Methods(http.MethodGet)

	api.HandleFunc("/users", s.requireAdmin(s.handleCreateUser())).Methods(http.MethodPost)
	api.HandleFunc("/users", s.requireAdmin(s.handleListUsers())).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}", s.requireAdmin(s.handleDeleteUser())).Methods(http.MethodDelete)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	s.logger.WithField("port", s.cfg.Server.Port).Info("Starting HTTP server")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.respondJSON(w, http.StatusOK, map[string]interface{}{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}
