package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/smartcycle/telemetry-server/internal/models"
)

func TestGuardianMe_CreatedOnFirstRequest(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "Asha", "asha@example.com", "9999999999")

	w := env.do(t, http.MethodGet, "/api/guardian/me", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Guardian models.Guardian `json:"guardian"`
	}
	decodeBody(t, w, &resp)
	assert.Equal(t, "G001", resp.Guardian.GuardianID)
	assert.Equal(t, 1, resp.Guardian.UserID)
	assert.Equal(t, "9999999999", resp.Guardian.Phone)
	assert.Empty(t, resp.Guardian.Wards)

	// Second call returns the same guardian.
	w = env.do(t, http.MethodGet, "/api/guardian/me", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &resp)
	assert.Equal(t, "G001", resp.Guardian.GuardianID)
}

func TestGuardianMe_RequiresCredential(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/guardian/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAddWard_ProvisionsPair(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "Asha", "asha@example.com", "9999999999")
	env.do(t, http.MethodGet, "/api/guardian/me", token, nil)

	w := env.do(t, http.MethodPost, "/api/guardian/wards", token, map[string]interface{}{
		"name": "Ravi", "age": 10, "grade": "5", "bikeName": "Red Rider",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Ward models.Ward      `json:"ward"`
		Bike models.BikeState `json:"bike"`
	}
	decodeBody(t, w, &resp)
	assert.Equal(t, "W001", resp.Ward.WardID)
	assert.Equal(t, "BIKE001", resp.Ward.BikeID)
	assert.Equal(t, resp.Ward.WardID, resp.Bike.WardID)
	assert.Equal(t, "G001", resp.Bike.GuardianID)
	assert.Equal(t, "Red Rider", resp.Bike.BikeName)
}

func TestAddWard_MissingFields(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "Asha", "asha@example.com", "9999999999")
	env.do(t, http.MethodGet, "/api/guardian/me", token, nil)

	w := env.do(t, http.MethodPost, "/api/guardian/wards", token, map[string]interface{}{
		"name": "Ravi", "age": 10,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAddWard_GuardianNotProvisioned(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "Asha", "asha@example.com", "9999999999")

	// No /api/guardian/me call first, so no guardian record exists.
	w := env.do(t, http.MethodPost, "/api/guardian/wards", token, map[string]interface{}{
		"name": "Ravi", "age": 10, "grade": "5", "bikeName": "Red Rider",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListWards(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "Asha", "asha@example.com", "9999999999")

	// Before provisioning the ward list is empty, not an error.
	w := env.do(t, http.MethodGet, "/api/guardian/wards", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Wards []models.Ward `json:"wards"`
	}
	decodeBody(t, w, &resp)
	assert.Empty(t, resp.Wards)

	env.do(t, http.MethodGet, "/api/guardian/me", token, nil)
	env.do(t, http.MethodPost, "/api/guardian/wards", token, map[string]interface{}{
		"name": "Ravi", "age": 10, "grade": "5", "bikeName": "Red Rider",
	})

	w = env.do(t, http.MethodGet, "/api/guardian/wards", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &resp)
	assert.Len(t, resp.Wards, 1)
	assert.Equal(t, "Ravi", resp.Wards[0].Name)
}

func TestGuardianBikes_ScopedToOwnWards(t *testing.T) {
	env := newTestEnv(t)

	ashaToken := env.signup(t, "Asha", "asha@example.com", "9999999999")
	vikToken := env.signup(t, "Vik", "vik@example.com", "8888888888")
	env.do(t, http.MethodGet, "/api/guardian/me", ashaToken, nil)
	env.do(t, http.MethodGet, "/api/guardian/me", vikToken, nil)

	env.do(t, http.MethodPost, "/api/guardian/wards", ashaToken, map[string]interface{}{
		"name": "Ravi", "age": 10, "grade": "5", "bikeName": "Red Rider",
	})
	env.do(t, http.MethodPost, "/api/guardian/wards", vikToken, map[string]interface{}{
		"name": "Mira", "age": 12, "grade": "7", "bikeName": "Blue Bolt",
	})

	var resp struct {
		Bikes []models.BikeState `json:"bikes"`
	}

	w := env.do(t, http.MethodGet, "/api/guardian/bikes", ashaToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &resp)
	assert.Len(t, resp.Bikes, 1)
	assert.Equal(t, "G001", resp.Bikes[0].GuardianID)

	w = env.do(t, http.MethodGet, "/api/guardian/bikes", vikToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &resp)
	assert.Len(t, resp.Bikes, 1)
	assert.Equal(t, "G002", resp.Bikes[0].GuardianID)

	// The two wards drew distinct bike IDs from the shared sequence.
	assert.NotEqual(t, "BIKE001", resp.Bikes[0].BikeID)
}

func TestListGuardians(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "Asha", "asha@example.com", "9999999999")
	env.do(t, http.MethodGet, "/api/guardian/me", token, nil)

	w := env.do(t, http.MethodGet, "/api/guardians", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Guardians []models.Guardian `json:"guardians"`
	}
	decodeBody(t, w, &resp)
	assert.Len(t, resp.Guardians, 1)
}
