package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/smartcycle/telemetry-server/internal/auth"
	"github.com/smartcycle/telemetry-server/internal/middleware"
	"github.com/smartcycle/telemetry-server/internal/models"
	"github.com/smartcycle/telemetry-server/internal/store"
)

// AuthHandler handles signup, login and the identity endpoint.
type AuthHandler struct {
	authService *auth.Service
	users       store.UserStore
}

// NewAuthHandler creates a new authentication handler.
func NewAuthHandler(authService *auth.Service, users store.UserStore) *AuthHandler {
	return &AuthHandler{authService: authService, users: users}
}

// Signup handles POST /api/signup.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	var req models.SignupRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Name == "" || req.Email == "" || req.Password == "" || req.Mobile == "" {
		writeError(w, http.StatusBadRequest, "All fields are required")
		return
	}

	hash, err := h.authService.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	user, err := h.users.CreateUser(r.Context(), req.Name, req.Email, req.Mobile, hash)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			writeError(w, http.StatusConflict, "Email already registered")
			return
		}
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	token, err := h.authService.GenerateToken(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusCreated, models.AuthResponse{Token: token, User: *user})
}

// Login handles POST /api/login. Either email or mobile identifies the
// account.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	var req models.LoginRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "Password required")
		return
	}
	if req.Email == "" && req.Mobile == "" {
		writeError(w, http.StatusBadRequest, "Email or mobile number required")
		return
	}

	var user *models.User
	if req.Email != "" {
		user, err = h.users.FindUserByEmail(r.Context(), req.Email)
	} else {
		user, err = h.users.FindUserByMobile(r.Context(), req.Mobile)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	if !h.authService.CheckPassword(req.Password, user.Password) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.authService.GenerateToken(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusOK, models.AuthResponse{Token: token, User: *user})
}

// Me handles GET /api/me (protected).
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "User context not found")
		return
	}

	user, err := h.users.FindUserByID(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
