package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/smartcycle/telemetry-server/internal/auth"
	"github.com/smartcycle/telemetry-server/internal/ingest"
	"github.com/smartcycle/telemetry-server/internal/middleware"
	"github.com/smartcycle/telemetry-server/internal/store"
)

type capturePublisher struct {
	events []string
}

func (c *capturePublisher) Broadcast(event string, payload interface{}) {
	c.events = append(c.events, event)
}

func (c *capturePublisher) ClientCount() int { return 0 }

type testEnv struct {
	mux   *http.ServeMux
	store *store.FileStore
	pub   *capturePublisher
}

// newTestEnv wires the full HTTP surface against a file store in a
// temporary directory, mirroring the production route table.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("JWT_EXPIRY", "")

	fs, err := store.OpenFileStore(t.TempDir())
	assert.NoError(t, err)

	authService, err := auth.NewService()
	assert.NoError(t, err)
	authMW := middleware.NewAuthMiddleware(authService)

	pub := &capturePublisher{}
	ingestSvc := ingest.NewService(fs, fs, pub)

	telemetryHandler := NewTelemetryHandler(ingestSvc, fs, fs)
	authHandler := NewAuthHandler(authService, fs)
	guardianHandler := NewGuardianHandler(fs, fs, fs)
	healthHandler := NewHealthHandler(pub)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/bike/data", telemetryHandler.ReceiveData)
	mux.HandleFunc("GET /api/bikes", telemetryHandler.ListBikes)
	mux.HandleFunc("GET /api/bikes/{bikeId}", telemetryHandler.GetBike)
	mux.HandleFunc("GET /api/bikes/{bikeId}/latest", telemetryHandler.GetLatest)
	mux.HandleFunc("GET /api/history", telemetryHandler.ListDates)
	mux.HandleFunc("GET /api/history/{date}", telemetryHandler.GetDay)
	mux.HandleFunc("POST /api/signup", authHandler.Signup)
	mux.HandleFunc("POST /api/login", authHandler.Login)
	mux.Handle("GET /api/me", authMW.Authenticate(http.HandlerFunc(authHandler.Me)))
	mux.Handle("GET /api/guardian/me", authMW.Authenticate(http.HandlerFunc(guardianHandler.Me)))
	mux.Handle("POST /api/guardian/wards", authMW.Authenticate(http.HandlerFunc(guardianHandler.AddWard)))
	mux.Handle("GET /api/guardian/wards", authMW.Authenticate(http.HandlerFunc(guardianHandler.ListWards)))
	mux.Handle("GET /api/guardian/bikes", authMW.Authenticate(http.HandlerFunc(guardianHandler.ListBikes)))
	mux.HandleFunc("GET /api/guardians", guardianHandler.ListGuardians)
	mux.HandleFunc("GET /health", healthHandler.Health)

	return &testEnv{mux: mux, store: fs, pub: pub}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		assert.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

// signup registers an account and returns its bearer token.
func (e *testEnv) signup(t *testing.T, name, email, mobile string) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/signup", "", map[string]string{
		"name": name, "email": email, "password": "secret123", "mobile": mobile,
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Token string `json:"token"`
	}
	decodeBody(t, w, &resp)
	assert.NotEmpty(t, resp.Token)
	return resp.Token
}

func telemetryBody(bikeID string, avgSpeed, battery float64) map[string]interface{} {
	return map[string]interface{}{
		"bikeId": bikeID,
		"data": map[string]interface{}{
			"avgSpeed": avgSpeed,
			"location": map[string]float64{"lat": 19.07, "lng": 72.87},
			"battery":  battery,
		},
	}
}
