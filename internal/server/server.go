package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/audit"
	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/cache"
	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/storage"
)

const (
	actionUserUpdated    = "USER_UPDATED"
	actionProfileUpdated = "PROFILE_UPDATED"
)

type Deps struct {
	Users     storage.UserRepository
	AuditLogs storage.AuditLogRepository
	UserCache *cache.UserCache
	Recorder  *audit.Recorder
	Logger    *zap.Logger

	MaxBodyBytes int
	MetricsPath  string
}

type Server struct {
	users        storage.UserRepository
	auditLogs    storage.AuditLogRepository
	userCache    *cache.UserCache
	recorder     *audit.Recorder
	logger       *zap.Logger
	maxBodyBytes int
	metricsPath  string

	handler http.Handler
	server  *http.Server
}

func New(d Deps) *Server {
	s := &Server{
		users:        d.Users,
		auditLogs:    d.AuditLogs,
		userCache:    d.UserCache,
		recorder:     d.Recorder,
		logger:       d.Logger.With(zap.String("component", "http")),
		maxBodyBytes: d.MaxBodyBytes,
		metricsPath:  d.MetricsPath,
	}
	if s.metricsPath == "" {
		s.metricsPath = "/metrics"
	}
	s.handler = s.setupRoutes()
	s.server = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     zap.NewStdLog(s.logger),
	}
	return s
}

// Handler is the full middleware chain, for serving or testing.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until Shutdown is called. After Shutdown it returns nil
// immediately.
func (s *Server) Run(port string) error {
	s.server.Addr = ":" + port

	s.logger.Info("HTTP server starting", zap.String("port", port))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server...")
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("HTTP server shutdown completed")
	return nil
}

func (s *Server) setupRoutes() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/users", s.handleListUsers).Methods(http.MethodGet)
	router.Handle("/users/{user_id}", s.audited(actionUserUpdated, "user_id", s.handleUpdateUser)).
		Methods(http.MethodPost)
	router.Handle("/profile", s.auditDependency(actionProfileUpdated)(http.HandlerFunc(s.handleUpdateProfile))).
		Methods(http.MethodPost)
	router.HandleFunc("/audit-logs", s.handleListAuditLogs).Methods(http.MethodGet)
	router.Handle(s.metricsPath, promhttp.Handler()).Methods(http.MethodGet)

	return s.requestLogMiddleware(s.identifyMiddleware(router))
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			zap.L().Error("Failed to encode response", zap.Error(err))
		}
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
