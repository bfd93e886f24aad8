package handlers

import (
	"log"
	"net/http"

	"github.com/seawatch/seawatch/internal/api"
	"github.com/seawatch/seawatch/internal/middleware"
)

// AuthHandler handles login and token verification
type AuthHandler struct {
	auth *middleware.JWTAuthMiddleware
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(auth *middleware.JWTAuthMiddleware) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// SetupRoutes configures the authentication routes
func (h *AuthHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/auth/login", h.handleLogin)
	mux.HandleFunc("/auth/verify", h.handleVerify)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
	Username  string `json:"username"`
}

// handleLogin handles POST /auth/login
func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req loginRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !h.auth.ValidateCredentials(req.Username, req.Password) {
		log.Printf("AuthHandler: failed login attempt for %q from %s", req.Username, r.RemoteAddr)
		api.RespondError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	token, err := h.auth.GenerateToken(req.Username)
	if err != nil {
		log.Printf("AuthHandler: failed to generate token: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	api.RespondJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresIn: h.auth.ExpirySeconds(),
		Username:  req.Username,
	})
}

// handleVerify handles GET /auth/verify; the JWT middleware has already
// validated the token by the time this runs
func (h *AuthHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	username := middleware.GetUserFromContext(r.Context())
	if username == "" {
		api.RespondError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	api.RespondJSON(w, http.StatusOK, map[string]string{
		"status":   "valid",
		"username": username,
	})
}
