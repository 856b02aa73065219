package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"nffg-orchestrator/pkg/auth"
	"nffg-orchestrator/pkg/errors"
)

// AuthHandler issues bearer tokens for tenant credentials
type AuthHandler struct {
	resolver     auth.TenantResolver
	generator    *auth.JWTGenerator
	errorHandler *errors.ErrorHandler
	logger       *zap.Logger
}

// NewAuthHandler creates the login handler
func NewAuthHandler(resolver auth.TenantResolver, generator *auth.JWTGenerator, errorHandler *errors.ErrorHandler, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		resolver:     resolver,
		generator:    generator,
		errorHandler: errorHandler,
		logger:       logger,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	TenantID  string    `json:"tenant-id"`
	Username  string    `json:"username"`
}

// Login handles POST /login. Credentials come from the JSON body, with
// the X-Auth-User/X-Auth-Pass header pair kept as a fallback for
// clients of the legacy interface.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if r.Body != nil {
		// Decode errors are ignored here so the header fallback still applies.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Username == "" {
		req.Username = r.Header.Get("X-Auth-User")
		req.Password = r.Header.Get("X-Auth-Pass")
	}
	if req.Username == "" || req.Password == "" {
		h.errorHandler.Handle(w, r, errors.NewUnauthorizedError("username and password are required"))
		return
	}

	user, err := h.resolver.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.logger.Info("Authentication rejected", zap.String("username", req.Username))
		h.errorHandler.Handle(w, r, err)
		return
	}

	token, expiresAt, err := h.generator.GenerateToken(user.TenantID, user.Username, user.Roles)
	if err != nil {
		h.errorHandler.Handle(w, r, errors.NewInternalError("failed to issue token", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(loginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		TenantID:  user.TenantID,
		Username:  user.Username,
	}); err != nil {
		h.logger.Error("Failed to encode login response", zap.Error(err))
	}
}
