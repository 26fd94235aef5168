package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/smartcycle/telemetry-server/internal/middleware"
	"github.com/smartcycle/telemetry-server/internal/models"
	"github.com/smartcycle/telemetry-server/internal/store"
)

// GuardianHandler serves the guardian-scoped surface: guardian
// get-or-create, ward provisioning and the authorized bike set.
type GuardianHandler struct {
	guardians store.GuardianStore
	bikes     store.BikeStore
	users     store.UserStore
}

// NewGuardianHandler creates a new guardian handler.
func NewGuardianHandler(guardians store.GuardianStore, bikes store.BikeStore, users store.UserStore) *GuardianHandler {
	return &GuardianHandler{guardians: guardians, bikes: bikes, users: users}
}

// Me handles GET /api/guardian/me, creating the guardian on first
// request.
func (h *GuardianHandler) Me(w http.ResponseWriter, r *http.Request) {
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

	guardian, err := h.guardians.GetOrCreateGuardian(r.Context(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"guardian": guardian})
}

// AddWard handles POST /api/guardian/wards: ward and companion bike are
// provisioned as an atomic pair.
func (h *GuardianHandler) AddWard(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "User context not found")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	var req models.WardRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Name == "" || req.Age == 0 || req.Grade == "" || req.BikeName == "" {
		writeError(w, http.StatusBadRequest, "All fields are required")
		return
	}

	ward, bike, err := h.guardians.AddWard(r.Context(), claims.UserID, req)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Guardian not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Ward added successfully",
		"ward":    ward,
		"bike":    bike,
	})
}

// ListWards handles GET /api/guardian/wards.
func (h *GuardianHandler) ListWards(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "User context not found")
		return
	}

	guardian, err := h.guardians.FindGuardianByUser(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusOK, map[string]interface{}{"wards": []models.Ward{}})
			return
		}
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"wards": guardian.Wards})
}

// ListBikes handles GET /api/guardian/bikes: the current-state rows
// scoped to the caller's authorized bike set.
func (h *GuardianHandler) ListBikes(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "User context not found")
		return
	}

	guardian, err := h.guardians.FindGuardianByUser(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusOK, map[string]interface{}{"bikes": []models.BikeState{}})
			return
		}
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	bikes, err := h.bikes.ListBikesByGuardian(r.Context(), guardian.GuardianID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"bikes": bikes})
}

// ListGuardians handles GET /api/guardians.
func (h *GuardianHandler) ListGuardians(w http.ResponseWriter, r *http.Request) {
	guardians, err := h.guardians.ListGuardians(r.Context())
	if err != nil {
		writeError(w, http.StatusNotFound, "Guardians data not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"guardians": guardians})
}
