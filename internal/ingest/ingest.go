// Package ingest accepts raw telemetry readings, enriches them with
// server-side timestamps and drives persistence and fan-out.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/smartcycle/telemetry-server/internal/models"
	"github.com/smartcycle/telemetry-server/internal/store"
)

// ErrValidation marks a malformed or incomplete reading. Wrapped errors
// carry the reason.
var ErrValidation = errors.New("invalid telemetry")

// Publisher pushes an event to every connected subscriber session.
type Publisher interface {
	Broadcast(event string, payload interface{})
}

// Service is the ingestion pipeline shared by the HTTP endpoint and the
// MQTT bridge.
type Service struct {
	bikes  store.BikeStore
	ledger store.LedgerStore
	pub    Publisher
}

// NewService wires the pipeline.
func NewService(bikes store.BikeStore, ledger store.LedgerStore, pub Publisher) *Service {
	return &Service{bikes: bikes, ledger: ledger, pub: pub}
}

func validate(p models.TelemetryPayload) error {
	if p.BikeID == "" || p.Data == nil {
		return fmt.Errorf("%w: required: bikeId, data", ErrValidation)
	}
	if p.Data.AvgSpeed == nil || p.Data.Location == nil || p.Data.Battery == nil {
		return fmt.Errorf("%w: required: avgSpeed, location, battery", ErrValidation)
	}
	return nil
}

// Ingest validates and enriches a reading, then runs the side effects in
// order: current-state upsert, ledger append, broadcast. Each side
// effect is isolated: a persistence failure is logged and does not stop
// the later steps, and the caller is acknowledged once validation
// passes. Accepted is deliberately decoupled from durably stored.
func (s *Service) Ingest(ctx context.Context, p models.TelemetryPayload) (*models.TelemetryEvent, error) {
	if err := validate(p); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	ev := models.TelemetryEvent{
		BikeID:          p.BikeID,
		Data:            *p.Data,
		Timestamp:       now,
		ServerTimestamp: now,
		ReceivedAt:      now.UnixMilli(),
	}

	// The inbound wire name is "battery"; the persisted current-state
	// field is "batteryLevel".
	err := s.bikes.UpsertTelemetry(ctx, ev.BikeID, *ev.Data.Location, *ev.Data.AvgSpeed, *ev.Data.Battery, now)
	if err != nil {
		log.WithError(err).WithField("bikeId", ev.BikeID).Error("Failed to update bike state")
	}

	if err := s.ledger.Append(ctx, store.DayKey(now), ev); err != nil {
		log.WithError(err).WithField("bikeId", ev.BikeID).Error("Failed to append to daily ledger")
	}

	s.pub.Broadcast("bikeData", ev)
	s.pub.Broadcast("bikeUpdate", models.BikeUpdate{
		BikeID:    ev.BikeID,
		Data:      ev.Data,
		Timestamp: ev.Timestamp,
	})

	log.WithFields(log.Fields{
		"bikeId":   ev.BikeID,
		"avgSpeed": *ev.Data.AvgSpeed,
		"battery":  *ev.Data.Battery,
	}).Info("Telemetry received")

	return &ev, nil
}
