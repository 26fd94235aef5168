package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/smartcycle/telemetry-server/internal/ingest"
	"github.com/smartcycle/telemetry-server/internal/models"
	"github.com/smartcycle/telemetry-server/internal/store"
)

// TelemetryHandler serves the ingestion endpoint and the bike/history
// read surface.
type TelemetryHandler struct {
	ingestSvc *ingest.Service
	bikes     store.BikeStore
	ledger    store.LedgerStore
}

// NewTelemetryHandler creates a new telemetry handler.
func NewTelemetryHandler(ingestSvc *ingest.Service, bikes store.BikeStore, ledger store.LedgerStore) *TelemetryHandler {
	return &TelemetryHandler{ingestSvc: ingestSvc, bikes: bikes, ledger: ledger}
}

// ReceiveData handles POST /api/bike/data. The acknowledgement is sent
// once validation passes, regardless of persistence outcome.
func (h *TelemetryHandler) ReceiveData(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	var payload models.TelemetryPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if _, err := h.ingestSvc.Ingest(r.Context(), payload); err != nil {
		if errors.Is(err, ingest.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "data received"})
}

// ListBikes handles GET /api/bikes.
func (h *TelemetryHandler) ListBikes(w http.ResponseWriter, r *http.Request) {
	bikes, err := h.bikes.ListBikes(r.Context())
	if err != nil {
		writeError(w, http.StatusNotFound, "Bikes data not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"bikes": bikes})
}

// GetBike handles GET /api/bikes/{bikeId}.
func (h *TelemetryHandler) GetBike(w http.ResponseWriter, r *http.Request) {
	bike, err := h.bikes.FindBike(r.Context(), r.PathValue("bikeId"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Bike not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"bike": bike})
}

// GetLatest handles GET /api/bikes/{bikeId}/latest: the most recent of
// today's ledger entries for the bike.
func (h *TelemetryHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	bikeID := r.PathValue("bikeId")

	entries, err := h.ledger.Day(r.Context(), store.DayKey(time.Now()))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "No data found for today")
			return
		}
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	var latest *models.TelemetryEvent
	for i := range entries {
		if entries[i].BikeID != bikeID {
			continue
		}
		if latest == nil || entries[i].Timestamp.After(latest.Timestamp) {
			latest = &entries[i]
		}
	}
	if latest == nil {
		writeError(w, http.StatusNotFound, "No data found for this bike today")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"latestData": latest})
}

// ListDates handles GET /api/history.
func (h *TelemetryHandler) ListDates(w http.ResponseWriter, r *http.Request) {
	dates, err := h.ledger.Dates(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"availableDates": dates})
}

// GetDay handles GET /api/history/{date}.
func (h *TelemetryHandler) GetDay(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")

	entries, err := h.ledger.Day(r.Context(), date)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "No data found for this date")
			return
		}
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"date": date, "data": entries})
}
