package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/smartcycle/telemetry-server/internal/models"
)

func TestSignup_CreatesAccountAndToken(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/signup", "", map[string]string{
		"name": "Asha", "email": "asha@example.com", "password": "secret123", "mobile": "9999999999",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	var resp models.AuthResponse
	decodeBody(t, w, &resp)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, 1, resp.User.ID)
	assert.Equal(t, "asha@example.com", resp.User.Email)
	assert.NotContains(t, w.Body.String(), "password", "password hash must never be serialized")
}

func TestSignup_MissingFields(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/signup", "", map[string]string{
		"name": "Asha", "email": "asha@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSignup_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "Asha", "asha@example.com", "9999999999")

	w := env.do(t, http.MethodPost, "/api/signup", "", map[string]string{
		"name": "Other", "email": "asha@example.com", "password": "secret123", "mobile": "8888888888",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLogin_ByEmail(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "Asha", "asha@example.com", "9999999999")

	w := env.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"email": "asha@example.com", "password": "secret123",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.AuthResponse
	decodeBody(t, w, &resp)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "Asha", resp.User.Name)
}

func TestLogin_ByMobile(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "Asha", "asha@example.com", "9999999999")

	w := env.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"mobile": "9999999999", "password": "secret123",
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogin_BadCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "Asha", "asha@example.com", "9999999999")

	w := env.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"email": "asha@example.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"email": "nobody@example.com", "password": "secret123",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogin_MissingIdentifiers(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/login", "", map[string]string{"password": "secret123"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/login", "", map[string]string{"email": "asha@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMe_RequiresCredential(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "Asha", "asha@example.com", "9999999999")

	w := env.do(t, http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/api/me", "garbage-token", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodGet, "/api/me", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var user models.User
	decodeBody(t, w, &user)
	assert.Equal(t, "asha@example.com", user.Email)
}
