package models

import "time"

// TelemetryPayload is the raw reading submitted by a bike tracker, either
// over HTTP or MQTT. Pointer fields distinguish "absent" from zero values
// during validation.
type TelemetryPayload struct {
	BikeID string         `json:"bikeId"`
	Data   *TelemetryData `json:"data"`
}

// TelemetryData carries the measured values of a single reading.
type TelemetryData struct {
	AvgSpeed *float64  `bson:"avgSpeed" json:"avgSpeed"`
	Location *Location `bson:"location" json:"location"`
	Battery  *float64  `bson:"battery" json:"battery"`
}

// TelemetryEvent is an accepted reading enriched with server-side
// timestamps. Events are immutable once appended to a daily ledger.
type TelemetryEvent struct {
	BikeID          string        `bson:"bikeId" json:"bikeId"`
	Data            TelemetryData `bson:"data" json:"data"`
	Timestamp       time.Time     `bson:"timestamp" json:"timestamp"`
	ServerTimestamp time.Time     `bson:"serverTimestamp" json:"serverTimestamp"`
	ReceivedAt      int64         `bson:"receivedAt" json:"receivedAt"`
}

// BikeUpdate is the reduced summary event broadcast alongside the full
// enriched event.
type BikeUpdate struct {
	BikeID    string        `json:"bikeId"`
	Data      TelemetryData `json:"data"`
	Timestamp time.Time     `json:"timestamp"`
}
