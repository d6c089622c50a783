package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/audit"
	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/repository"
)

type updateUserRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

func (req updateUserRequest) fields() []string {
	fields := make([]string, 0, 2)
	if req.Name != "" {
		fields = append(fields, "name")
	}
	if req.Role != "" {
		fields = append(fields, "role")
	}
	return fields
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context())
	if err != nil {
		s.logger.Error("Failed to list users", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to fetch users")
		return
	}
	if users == nil {
		users = []*repository.User{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Users fetched successfully",
		"data":    users,
	})
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) error {
	id, err := strconv.ParseInt(mux.Vars(r)["user_id"], 10, 64)
	if err != nil || id <= 0 {
		return newHTTPError(http.StatusBadRequest, "Invalid user_id")
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return newHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if scope, ok := audit.ScopeFromContext(r.Context()); ok {
		scope.SetMetadata("fields", req.fields())
	}

	user, err := s.users.UpdateProfile(r.Context(), id, req.Name, req.Role)
	if err != nil {
		if errors.Is(err, repository.ErrObjectNotFound) {
			return newHTTPError(http.StatusNotFound, "User not found")
		}
		return err
	}
	s.userCache.Set(user)

	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	return nil
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	caller, ok := userFromContext(r.Context())
	if !ok {
		w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	scope, _ := audit.ScopeFromContext(r.Context())
	if scope != nil {
		scope.SetResourceID(strconv.FormatInt(caller.ID, 10))
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	// role is not self-service
	req.Role = ""
	if scope != nil {
		scope.SetMetadata("fields", req.fields())
	}

	user, err := s.users.UpdateProfile(r.Context(), caller.ID, req.Name, "")
	if err != nil {
		s.logger.Error("Failed to update profile", zap.Int64("user_id", caller.ID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to update profile")
		return
	}
	s.userCache.Set(user)

	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var filter repository.AuditLogFilter

	if action := query.Get("action"); action != "" {
		filter.Action = &action
	}
	if userIDStr := query.Get("user_id"); userIDStr != "" {
		userID, err := strconv.ParseInt(userIDStr, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid value for 'user_id' parameter")
			return
		}
		filter.UserID = &userID
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid value for 'limit' parameter")
			return
		}
		filter.Limit = limit
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			respondError(w, http.StatusBadRequest, "Invalid value for 'offset' parameter")
			return
		}
		filter.Offset = offset
	}

	logs, err := s.auditLogs.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("Failed to list audit logs", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to fetch audit logs")
		return
	}
	if logs == nil {
		logs = []*repository.AuditLog{}
	}

	respondJSON(w, http.StatusOK, logs)
}
