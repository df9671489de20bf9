package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/arjunkorath02/DigiData/internal/identity"
	"github.com/arjunkorath02/DigiData/internal/logging"
	"github.com/arjunkorath02/DigiData/internal/metrics"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		s.sendError(w, http.StatusBadRequest, "valid email required")
		return
	}
	if len(req.Password) < 8 {
		s.sendError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	u, err := s.users.Register(r.Context(), req.Email, req.Name, req.Password)
	if err == identity.ErrEmailTaken {
		s.sendError(w, http.StatusConflict, "email already registered")
		return
	}
	if err != nil {
		logging.Error("register failed", zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	// Seed the in-memory quota ledger with the account's limit.
	if err := s.drive.SetQuotaLimit(u.ID, u.StorageLimitBytes); err != nil {
		logging.Error("seed quota limit failed", zap.Error(err))
	}

	token, expires, err := s.users.IssueToken(u)
	if err != nil {
		logging.Error("issue token failed", zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	metrics.RecordAuthAttempt(true)
	s.sendJSON(w, http.StatusCreated, map[string]interface{}{
		"token":      token,
		"expires_at": expires,
		"user":       u,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.RecordAuthAttempt(false)
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		metrics.RecordAuthAttempt(false)
		s.sendError(w, http.StatusBadRequest, "email and password required")
		return
	}

	u, err := s.users.Authenticate(r.Context(), strings.ToLower(req.Email), req.Password)
	if err == identity.ErrInvalidCredentials {
		metrics.RecordAuthAttempt(false)
		logging.Warn("login failed", zap.String("email", req.Email))
		s.sendError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		metrics.RecordAuthAttempt(false)
		logging.Error("login database error", zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "database error")
		return
	}

	token, expires, err := s.users.IssueToken(u)
	if err != nil {
		metrics.RecordAuthAttempt(false)
		logging.Error("issue token failed", zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	metrics.RecordAuthAttempt(true)
	logging.Info("login successful", zap.String("user_id", u.ID))
	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"token":      token,
		"expires_at": expires,
		"user":       u,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := identity.GetClaims(r.Context())
	if claims == nil {
		s.sendError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	u, err := s.users.GetUser(r.Context(), claims.UserID)
	if err != nil {
		s.sendError(w, http.StatusNotFound, "user not found")
		return
	}

	used, limit, err := s.drive.QuotaUsage(u.ID)
	if err != nil {
		s.sendDriveError(w, err)
		return
	}

	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"user":        u,
		"used_bytes":  used,
		"limit_bytes": limit,
	})
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	used, limit, err := s.drive.QuotaUsage(principal(r))
	if err != nil {
		s.sendDriveError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"used_bytes":  used,
		"limit_bytes": limit,
	})
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		s.sendJSON(w, http.StatusOK, map[string]interface{}{"items": []struct{}{}})
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	entries, err := s.db.GetActivity(r.Context(), principal(r), limit)
	if err != nil {
		logging.Error("get activity failed", zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "failed to load activity")
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]interface{}{"items": entries})
}
